// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package snapshot implements the snapshot builder (spec C6): a one-shot,
// non-incremental walk of the source chain's UTXO set at a pinned height,
// aggregating per-address satoshi sums into a fresh balance store. It is
// the only writer of balance rows and the metadata row (spec.md §3
// "Ownership"), and it refuses to run against an output path that already
// exists.
package snapshot

import (
	"context"
	"math"
	"strings"

	"github.com/unicitynetwork/alpha-faucet/faucetz"
	"github.com/unicitynetwork/alpha-faucet/l1rpc"
	"github.com/unicitynetwork/alpha-faucet/store"
)

// Params configures a snapshot run (spec.md §4.6).
type Params struct {
	RPC         *l1rpc.Client
	RPCEndpoint string // recorded into snapshot_meta, not used for calls
	Upstream    string // recorded into snapshot_meta
	BlockHeight int64
	HRP         string
	OutDBPath   string
	BatchSize   int // not read by Build; all balances are inserted in one transaction
}

// Summary is returned on a successful Build.
type Summary struct {
	BlockHeight  int64
	AddressCount uint64
	TotalAmount  uint64
}

// addrPrefix returns true if addr belongs to our address family, i.e. its
// textual form starts with "<hrp>1" (spec.md §4.6 step 4b).
func addrPrefix(addr, hrp string) bool {
	return strings.HasPrefix(strings.ToLower(addr), strings.ToLower(hrp)+"1")
}

// roundToSatoshis converts a coin-unit amount to an integer satoshi count,
// matching the `round(coin_amount * 10^8)` rule of spec.md §4.6.
func roundToSatoshis(coinAmount float64) uint64 {
	return uint64(math.Round(coinAmount * 100_000_000))
}

// Build runs the full snapshot procedure: refuse-if-exists, height check,
// UTXO-set scan with block-replay fallback, then a single bulk insert plus
// the singleton metadata row (spec.md §4.6).
func Build(ctx context.Context, p Params) (Summary, error) {
	if store.Exists(p.OutDBPath) {
		return Summary{}, faucetz.New(faucetz.KindInvalidInput, "refusing to overwrite existing database at %s", p.OutDBPath)
	}

	info, err := p.RPC.GetBlockchainInfo(ctx)
	if err != nil {
		return Summary{}, faucetz.Wrap(faucetz.KindInternal, err, "querying chain height")
	}
	if p.BlockHeight > info.Blocks {
		return Summary{}, faucetz.New(faucetz.KindInvalidInput, "requested height %d exceeds current chain height %d", p.BlockHeight, info.Blocks)
	}

	blockHash, err := p.RPC.GetBlockHash(ctx, p.BlockHeight)
	if err != nil {
		return Summary{}, faucetz.Wrap(faucetz.KindInternal, err, "resolving block hash for height %d", p.BlockHeight)
	}

	balances, err := scanUTXOSet(ctx, p.RPC, p.HRP, p.BlockHeight)
	if err != nil {
		log.Warnf("UTXO-set scan failed (%v), falling back to block-by-block replay", err)
		balances, err = replayBlocks(ctx, p.RPC, p.HRP, p.BlockHeight)
		if err != nil {
			return Summary{}, faucetz.Wrap(faucetz.KindInternal, err, "block-by-block replay failed")
		}
	}

	st, err := store.Open(p.OutDBPath)
	if err != nil {
		return Summary{}, err
	}
	defer st.Close()

	if err := st.BulkInsertBalances(ctx, balances); err != nil {
		return Summary{}, err
	}

	var total uint64
	for _, v := range balances {
		total += v
	}

	if err := st.SetSnapshotMeta(ctx, store.SnapshotMeta{
		BlockHeight:      uint64(p.BlockHeight),
		AddressCount:     uint64(len(balances)),
		TotalAmount:      total,
		RPCSource:        p.RPCEndpoint,
		UpstreamEndpoint: p.Upstream,
	}); err != nil {
		return Summary{}, err
	}

	log.Infof("snapshot built at height %d (hash %s): %d addresses, %d total satoshis", p.BlockHeight, blockHash, len(balances), total)
	return Summary{BlockHeight: p.BlockHeight, AddressCount: uint64(len(balances)), TotalAmount: total}, nil
}

// scanUTXOSet is the primary path: a whole-UTXO-set scan over all output
// descriptors (spec.md §4.6 step 4).
func scanUTXOSet(ctx context.Context, rpc *l1rpc.Client, hrp string, blockHeight int64) (map[string]uint64, error) {
	result, err := rpc.ScanTxOutSet(ctx, []string{"combo(*)"})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, faucetz.New(faucetz.KindInternal, "scantxoutset reported failure")
	}

	balances := make(map[string]uint64)
	for _, u := range result.Unspents {
		if u.Height > blockHeight {
			continue
		}
		if !addrPrefix(u.Address, hrp) {
			continue
		}
		balances[strings.ToLower(u.Address)] += roundToSatoshis(u.Amount)
	}
	return balances, nil
}

// outpoint identifies a transaction output for the replay fallback's spent
// set (spec.md §4.6 step 5).
type outpoint struct {
	txid string
	vout uint32
}

// replayBlocks is the fallback path: walk every block from genesis to
// blockHeight, mark spent outputs, and aggregate the unspent remainder
// (spec.md §4.6 step 5).
func replayBlocks(ctx context.Context, rpc *l1rpc.Client, hrp string, blockHeight int64) (map[string]uint64, error) {
	type utxo struct {
		addr string
		sats uint64
	}
	balances := make(map[string]uint64)
	spent := make(map[outpoint]struct{})
	// unspent holds every matching output seen so far; an input in a later
	// block removes the output it spends.
	unspent := make(map[outpoint]utxo)

	for h := int64(0); h <= blockHeight; h++ {
		hash, err := rpc.GetBlockHash(ctx, h)
		if err != nil {
			return nil, faucetz.Wrap(faucetz.KindInternal, err, "resolving hash for height %d", h)
		}
		block, err := rpc.GetBlockVerbose(ctx, hash)
		if err != nil {
			return nil, faucetz.Wrap(faucetz.KindInternal, err, "fetching block at height %d", h)
		}

		// Mark every input across the block as spent before accounting for
		// outputs, so an intra-block spend of an earlier transaction's
		// output is still recognized (spec.md §4.6 step 5).
		for _, tx := range block.Tx {
			for _, in := range tx.Vin {
				if in.TxID == "" {
					continue // coinbase input
				}
				op := outpoint{txid: in.TxID, vout: in.Vout}
				spent[op] = struct{}{}
				delete(unspent, op)
			}
		}
		for _, tx := range block.Tx {
			for idx, out := range tx.Vout {
				op := outpoint{txid: tx.TxID, vout: uint32(idx)}
				if _, isSpent := spent[op]; isSpent {
					continue
				}
				addr := out.ScriptPubKey.Address
				if !addrPrefix(addr, hrp) {
					continue
				}
				unspent[op] = utxo{addr: strings.ToLower(addr), sats: roundToSatoshis(out.Value)}
			}
		}
	}
	for _, u := range unspent {
		balances[u.addr] += u.sats
	}
	return balances, nil
}
