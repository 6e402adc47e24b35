// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package store implements the balance store (spec C4): the sole owner of
// the three persisted tables (balances, snapshot_meta, claim_requests) and
// the only code path allowed to flip a balance row's consumed flag. It is
// backed by modernc.org/sqlite, a pure-Go SQLite driver, run in WAL mode for
// reader/writer concurrency — the same embedded-relational-database shape
// several sibling services in this codebase use for small, single-node
// stores, chosen over the teacher repo's goleveldb KV store because the
// claim log and conditional-update semantics here are inherently relational.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/unicitynetwork/alpha-faucet/faucetz"
)

// Exists reports whether a file already exists at path, used by the
// snapshot builder (C6) to refuse to overwrite an existing database
// (spec.md §4.6 step 1).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

const schema = `
CREATE TABLE IF NOT EXISTS balances (
	l1_address     TEXT PRIMARY KEY,
	initial_amount INTEGER NOT NULL,
	consumed       INTEGER NOT NULL DEFAULT 0,
	destination_id TEXT,
	relay_tx_id    TEXT,
	consumed_at    TEXT,
	created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE INDEX IF NOT EXISTS idx_balances_consumed ON balances(consumed);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	block_height      INTEGER NOT NULL,
	address_count     INTEGER NOT NULL,
	total_amount      INTEGER NOT NULL,
	rpc_source        TEXT,
	upstream_endpoint TEXT,
	created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS claim_requests (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	l1_address       TEXT NOT NULL,
	destination_id   TEXT NOT NULL,
	amount           INTEGER NOT NULL,
	signature        TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	error_message    TEXT,
	upstream_response TEXT,
	created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	processed_at     TEXT
);
CREATE INDEX IF NOT EXISTS idx_claims_address ON claim_requests(l1_address);
CREATE INDEX IF NOT EXISTS idx_claims_status ON claim_requests(status);
`

// Balance is a row of the balances table.
type Balance struct {
	Address        string
	InitialAmount  uint64
	Consumed       bool
	DestinationID  sql.NullString
	RelayTxID      sql.NullString
	ConsumedAt     sql.NullString
	CreatedAt      string
}

// SnapshotMeta is the singleton snapshot_meta row.
type SnapshotMeta struct {
	BlockHeight      uint64
	AddressCount     uint64
	TotalAmount      uint64
	RPCSource        string
	UpstreamEndpoint string
	CreatedAt        string
}

// ClaimRequestStatus enumerates claim_requests.status values.
type ClaimRequestStatus string

const (
	StatusPending ClaimRequestStatus = "pending"
	StatusSuccess ClaimRequestStatus = "success"
	StatusFailed  ClaimRequestStatus = "failed"
)

// ConsumeOutcome is the result of AtomicConsume.
type ConsumeOutcome int

const (
	// ConsumeOK means this call performed the reservation.
	ConsumeOK ConsumeOutcome = iota
	// ConsumeAlreadyConsumed means the row was already consumed, whether
	// before this call or by a concurrent call that won the race.
	ConsumeAlreadyConsumed
	// ConsumeNotFound means no row exists for the address.
	ConsumeNotFound
)

// Store wraps a *sql.DB opened against a single SQLite file, exposing only
// the operations spec.md §4.4 allows; nothing outside this package may
// touch the balances.consumed flag.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the SQLite database at path, enables WAL
// mode and foreign keys, and ensures the schema exists. The schema is
// applied with CREATE ... IF NOT EXISTS on every call. Callers that must not
// touch an existing file (e.g. the snapshot builder) check Exists first.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "opening store at %s", path)
	}
	db.SetMaxOpenConns(1) // serializes writers; SQLite has no real multi-writer concurrency anyway

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "applying schema at %s", path)
	}

	log.Infof("opened balance store at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Find looks up a balance row by address (case-insensitively). It returns
// (nil, nil) when the row is absent.
func (s *Store) Find(ctx context.Context, addr string) (*Balance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT l1_address, initial_amount, consumed, destination_id, relay_tx_id, consumed_at, created_at
		FROM balances WHERE l1_address = ?`, normalize(addr))

	var b Balance
	var consumed int
	if err := row.Scan(&b.Address, &b.InitialAmount, &consumed, &b.DestinationID, &b.RelayTxID, &b.ConsumedAt, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "looking up %s", addr)
	}
	b.Consumed = consumed != 0
	return &b, nil
}

// BulkInsertBalances inserts every (address, amount) pair in a single
// transaction, used only by the snapshot builder (spec.md §4.4). The whole
// batch is rejected if any primary-key collision occurs.
func (s *Store) BulkInsertBalances(ctx context.Context, balances map[string]uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return faucetz.Wrap(faucetz.KindStoreFailure, err, "beginning bulk insert transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO balances (l1_address, initial_amount) VALUES (?, ?)`)
	if err != nil {
		return faucetz.Wrap(faucetz.KindStoreFailure, err, "preparing bulk insert statement")
	}
	defer stmt.Close()

	for addr, amount := range balances {
		if amount == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, normalize(addr), amount); err != nil {
			return faucetz.Wrap(faucetz.KindStoreFailure, err, "inserting balance for %s", addr)
		}
	}

	if err := tx.Commit(); err != nil {
		return faucetz.Wrap(faucetz.KindStoreFailure, err, "committing bulk insert")
	}
	log.Infof("bulk-inserted %d balance rows", len(balances))
	return nil
}

// AtomicConsume is the single line of defense against double-spend under
// parallel claimants (spec.md §4.4/§5). It runs as one transaction on the
// store's single connection: read, branch, and a conditional UPDATE guarded
// by `WHERE consumed = 0`, so of any two concurrent callers racing the same
// row exactly one observes rowsAffected == 1. The transaction is begun in
// SQLite's default deferred mode, not BEGIN IMMEDIATE: the write lock is
// taken at the UPDATE, not when the transaction starts.
func (s *Store) AtomicConsume(ctx context.Context, addr, destinationID, txIDPlaceholder string) (ConsumeOutcome, *Balance, error) {
	addr = normalize(addr)

	// A single open connection (SetMaxOpenConns(1)) already serializes every
	// transaction against this handle, so the conditional UPDATE below is
	// the only guard needed against a concurrent winner.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ConsumeNotFound, nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "beginning consume transaction")
	}
	defer tx.Rollback()

	var b Balance
	var consumed int
	row := tx.QueryRowContext(ctx, `
		SELECT l1_address, initial_amount, consumed, destination_id, relay_tx_id, consumed_at, created_at
		FROM balances WHERE l1_address = ?`, addr)
	if err := row.Scan(&b.Address, &b.InitialAmount, &consumed, &b.DestinationID, &b.RelayTxID, &b.ConsumedAt, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ConsumeNotFound, nil, nil
		}
		return ConsumeNotFound, nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "looking up %s for consume", addr)
	}
	b.Consumed = consumed != 0

	if b.Consumed {
		if err := tx.Commit(); err != nil {
			return ConsumeAlreadyConsumed, &b, faucetz.Wrap(faucetz.KindStoreFailure, err, "committing read-only consume check")
		}
		return ConsumeAlreadyConsumed, &b, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET consumed = 1, destination_id = ?, relay_tx_id = ?, consumed_at = ?
		WHERE l1_address = ? AND consumed = 0`,
		destinationID, txIDPlaceholder, now, addr)
	if err != nil {
		return ConsumeNotFound, nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "reserving %s", addr)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ConsumeNotFound, nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "reading rows affected for %s", addr)
	}
	if affected == 0 {
		// Lost the race: another transaction flipped consumed between our
		// read and our conditional update.
		if err := tx.Commit(); err != nil {
			return ConsumeAlreadyConsumed, &b, faucetz.Wrap(faucetz.KindStoreFailure, err, "committing raced consume")
		}
		log.Debugf("lost consume race for %s", addr)
		return ConsumeAlreadyConsumed, &b, nil
	}

	if err := tx.Commit(); err != nil {
		return ConsumeNotFound, nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "committing reservation for %s", addr)
	}

	b.Consumed = true
	b.DestinationID = sql.NullString{String: destinationID, Valid: true}
	b.RelayTxID = sql.NullString{String: txIDPlaceholder, Valid: true}
	b.ConsumedAt = sql.NullString{String: now, Valid: true}
	log.Infof("reserved %s for destination %s", addr, destinationID)
	return ConsumeOK, &b, nil
}

// FinalizeRelayTxId sets relay_tx_id on the matching, already-consumed row.
// It is idempotent under identical inputs (spec.md §4.4).
func (s *Store) FinalizeRelayTxId(ctx context.Context, addr, destinationID, txID string) error {
	addr = normalize(addr)
	res, err := s.db.ExecContext(ctx, `
		UPDATE balances SET relay_tx_id = ?
		WHERE l1_address = ? AND destination_id = ?`, txID, addr, destinationID)
	if err != nil {
		return faucetz.Wrap(faucetz.KindStoreFailure, err, "finalizing relay tx for %s", addr)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return faucetz.New(faucetz.KindStoreFailure, "no reserved row found to finalize for %s/%s", addr, destinationID)
	}
	return nil
}

// LogClaimRequest inserts a pending claim_requests row and returns its id
// (spec.md §4.4). Every incoming claim, including rejected ones that
// reached the coordinator, gets exactly one such row.
func (s *Store) LogClaimRequest(ctx context.Context, addr, destinationID string, amount uint64, sigHex string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO claim_requests (l1_address, destination_id, amount, signature, status)
		VALUES (?, ?, ?, ?, 'pending')`, normalize(addr), destinationID, amount, sigHex)
	if err != nil {
		return 0, faucetz.Wrap(faucetz.KindStoreFailure, err, "logging claim request for %s", addr)
	}
	return res.LastInsertId()
}

// UpdateClaimRequest finalizes a claim_requests row exactly once
// (spec.md §4.4/§3 "Lifecycles").
func (s *Store) UpdateClaimRequest(ctx context.Context, id int64, status ClaimRequestStatus, errText, upstreamResponse string) error {
	var errArg, upArg any
	if errText != "" {
		errArg = errText
	}
	if upstreamResponse != "" {
		upArg = upstreamResponse
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		UPDATE claim_requests
		SET status = ?, error_message = ?, upstream_response = ?, processed_at = ?
		WHERE id = ?`, string(status), errArg, upArg, now, id)
	if err != nil {
		return faucetz.Wrap(faucetz.KindStoreFailure, err, "updating claim request %d", id)
	}
	return nil
}

// CountTotal returns the number of balance rows.
func (s *Store) CountTotal(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM balances`).Scan(&n); err != nil {
		return 0, faucetz.Wrap(faucetz.KindStoreFailure, err, "counting balances")
	}
	return n, nil
}

// CountUnconsumed returns the number of balance rows not yet consumed.
func (s *Store) CountUnconsumed(ctx context.Context) (uint64, error) {
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM balances WHERE consumed = 0`).Scan(&n); err != nil {
		return 0, faucetz.Wrap(faucetz.KindStoreFailure, err, "counting unconsumed balances")
	}
	return n, nil
}

// GetSnapshotMeta reads the singleton snapshot_meta row. It returns
// (nil, nil) if the snapshot has not been created yet.
func (s *Store) GetSnapshotMeta(ctx context.Context) (*SnapshotMeta, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT block_height, address_count, total_amount, rpc_source, upstream_endpoint, created_at
		FROM snapshot_meta WHERE id = 1`)

	var m SnapshotMeta
	var rpcSource, upstream sql.NullString
	if err := row.Scan(&m.BlockHeight, &m.AddressCount, &m.TotalAmount, &rpcSource, &upstream, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, faucetz.Wrap(faucetz.KindStoreFailure, err, "reading snapshot metadata")
	}
	m.RPCSource = rpcSource.String
	m.UpstreamEndpoint = upstream.String
	return &m, nil
}

// SetSnapshotMeta writes the singleton snapshot_meta row. It is written
// once by the snapshot builder (C6) and never mutated afterward: a second
// call fails on the singleton primary key.
func (s *Store) SetSnapshotMeta(ctx context.Context, m SnapshotMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshot_meta (id, block_height, address_count, total_amount, rpc_source, upstream_endpoint)
		VALUES (1, ?, ?, ?, ?, ?)`,
		m.BlockHeight, m.AddressCount, m.TotalAmount, m.RPCSource, m.UpstreamEndpoint)
	if err != nil {
		return faucetz.Wrap(faucetz.KindStoreFailure, err, "writing snapshot metadata")
	}
	return nil
}

// Path returns the filesystem path this store was opened against.
func (s *Store) Path() string { return s.path }
