// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package claim implements the claim coordinator (spec C5): the
// verify -> reserve -> relay -> finalize pipeline with well-defined
// unwinding on every failure mode (spec.md §4.5). It is the one place that
// calls across C1 (address), C3 (sigverify) and C4 (store), mirroring the
// single-orchestrator-over-single-writer-store shape the teacher repo uses
// for its own settlement flows.
package claim

import (
	"context"
	"errors"
	"strings"

	"github.com/unicitynetwork/alpha-faucet/address"
	"github.com/unicitynetwork/alpha-faucet/faucetz"
	"github.com/unicitynetwork/alpha-faucet/mintclient"
	"github.com/unicitynetwork/alpha-faucet/sigverify"
	"github.com/unicitynetwork/alpha-faucet/store"
	"github.com/unicitynetwork/alpha-faucet/tokencfg"
)

// pendingTxIDPlaceholder is written into relay_tx_id between reservation
// and a successful relay (spec.md §3 "consumed=true ⇒ ... relay_tx_id is
// non-null once the upstream relay succeeds").
const pendingTxIDPlaceholder = "pending"

// Request is the input to Execute.
type Request struct {
	AddressRaw    string
	DestinationID string
	Amount        uint64
	SignatureHex  string
}

// Result is the successful outcome of a claim, mirroring the finalize
// payload in spec.md §4.5 step 12.
type Result struct {
	Address        string
	DestinationID  string
	Amount         uint64
	AmountCoins    float64
	RelayTxID      string
	RecoveredPubkey string
}

// Coordinator executes the full claim pipeline against a single store and
// a single upstream mint client.
type Coordinator struct {
	Store  *store.Store
	Mint   *mintclient.Client
	HRP    string
	Token  string // token name/coin symbol sent to the upstream mint
}

// New returns a Coordinator. hrp is the bech32 human-readable prefix this
// deployment validates addresses against; token is the coin name relayed
// to the upstream mint (spec.md §6).
func New(st *store.Store, mint *mintclient.Client, hrp, token string) *Coordinator {
	return &Coordinator{Store: st, Mint: mint, HRP: hrp, Token: token}
}

// Execute runs the full pipeline described in spec.md §4.5. Every failure
// after the claim is logged is recorded against the same log row before
// propagating, and every error returned is a *faucetz.Error so the HTTP
// layer can map it to a status code in one place.
func (c *Coordinator) Execute(ctx context.Context, req Request) (Result, error) {
	// Step 1: canonicalize.
	validation := address.Validate(req.AddressRaw, c.HRP)
	if !validation.Valid {
		return Result{}, faucetz.New(faucetz.KindInvalidAddress, "invalid address: %s", validation.Reason)
	}
	addr := validation.Normalized

	// Step 2: validate destination.
	dest := strings.TrimSpace(req.DestinationID)
	if dest == "" {
		return Result{}, faucetz.New(faucetz.KindInvalidInput, "destination id must not be empty")
	}

	// Step 3: validate amount.
	if req.Amount == 0 {
		return Result{}, faucetz.New(faucetz.KindInvalidInput, "amount must be greater than zero")
	}

	// Step 4: log ingress. All subsequent failures must update this row
	// before propagating.
	reqID, err := c.Store.LogClaimRequest(ctx, addr, dest, req.Amount, req.SignatureHex)
	if err != nil {
		return Result{}, err
	}

	result, err := c.executeAfterLogging(ctx, reqID, addr, dest, req.Amount, req.SignatureHex)
	if err != nil {
		fe := asFaucetzError(err)
		_ = c.Store.UpdateClaimRequest(ctx, reqID, store.StatusFailed, fe.Error(), "")
		return Result{}, err
	}
	return result, nil
}

func (c *Coordinator) executeAfterLogging(ctx context.Context, reqID int64, addr, dest string, amount uint64, sigHex string) (Result, error) {
	// Step 5: lookup.
	row, err := c.Store.Find(ctx, addr)
	if err != nil {
		return Result{}, err
	}
	if row == nil {
		return Result{}, faucetz.New(faucetz.KindNotFound, "address %s is not in the snapshot", addr)
	}

	// Step 6: already-consumed short circuit.
	if row.Consumed {
		return Result{}, faucetz.New(faucetz.KindAlreadyConsumed, "address %s was already consumed for destination %s", addr, row.DestinationID.String)
	}

	// Step 7: amount equality.
	if amount != row.InitialAmount {
		return Result{}, faucetz.New(faucetz.KindAmountMismatch, "requested amount %d does not match available balance %d", amount, row.InitialAmount)
	}

	// Step 8: verify signature.
	verifyResult, err := sigverify.Verify(addr, dest, amount, sigHex, c.HRP)
	if err != nil {
		return Result{}, mapSigverifyError(err)
	}

	// Step 9: reserve.
	outcome, _, err := c.Store.AtomicConsume(ctx, addr, dest, pendingTxIDPlaceholder)
	if err != nil {
		return Result{}, err
	}
	switch outcome {
	case store.ConsumeAlreadyConsumed:
		return Result{}, faucetz.New(faucetz.KindAlreadyConsumed, "address %s was consumed by a concurrent claim", addr)
	case store.ConsumeNotFound:
		return Result{}, faucetz.New(faucetz.KindNotFound, "address %s disappeared from the snapshot", addr)
	}

	// Step 10: relay to upstream mint. Any failure leaves the reservation
	// in place by design (spec.md §4.5 step 10) — it is not undone here.
	coinAmount := tokencfg.ToCoinUnits(amount)
	relayResult, err := c.Mint.Relay(ctx, dest, c.Token, coinAmount)
	if err != nil {
		log.Errorf("upstream relay failed for %s, reservation left in place: %v", addr, err)
		return Result{}, faucetz.Wrap(faucetz.KindUpstreamFailure, err, "relaying claim for %s to upstream mint", addr)
	}

	// Step 11: finalize.
	if err := c.Store.FinalizeRelayTxId(ctx, addr, dest, relayResult.RelayTxID); err != nil {
		return Result{}, err
	}
	if err := c.Store.UpdateClaimRequest(ctx, reqID, store.StatusSuccess, "", relayResult.ResponseJSON); err != nil {
		return Result{}, err
	}

	// Step 12: return.
	return Result{
		Address:         addr,
		DestinationID:   dest,
		Amount:          amount,
		AmountCoins:     coinAmount,
		RelayTxID:       relayResult.RelayTxID,
		RecoveredPubkey: verifyResult.RecoveredPubkeyHex,
	}, nil
}

// mapSigverifyError translates a sigverify.Error into the equivalent
// faucetz.Error kind (spec.md §7).
func mapSigverifyError(err error) error {
	var sigErr *sigverify.Error
	if !errors.As(err, &sigErr) {
		return faucetz.Wrap(faucetz.KindInternal, err, "signature verification failed")
	}
	switch sigErr.Kind {
	case sigverify.KindAddressMismatch:
		return faucetz.New(faucetz.KindAddressMismatch, "%s", sigErr.Reason)
	case sigverify.KindMathCheckFailed:
		return faucetz.New(faucetz.KindMathCheckFailed, "%s", sigErr.Reason)
	default:
		return faucetz.New(faucetz.KindBadSignature, "%s", sigErr.Reason)
	}
}

// asFaucetzError normalizes any error returned within the pipeline into a
// *faucetz.Error so the claim log always records a consistent message.
func asFaucetzError(err error) *faucetz.Error {
	if fe, ok := err.(*faucetz.Error); ok {
		return fe
	}
	return faucetz.Wrap(faucetz.KindInternal, err, "unexpected pipeline failure")
}
