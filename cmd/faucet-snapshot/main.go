// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command faucet-snapshot is the operator CLI for building the one-shot
// balance snapshot (spec C6 / spec.md §6 "Operator CLI for snapshot").
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/unicitynetwork/alpha-faucet/l1rpc"
	"github.com/unicitynetwork/alpha-faucet/snapshot"
)

type options struct {
	RPC       string `long:"rpc" description:"source-chain JSON-RPC endpoint" required:"true"`
	Block     int64  `long:"block" description:"target block height to snapshot at" required:"true"`
	RPCUser   string `long:"rpc-user" description:"JSON-RPC basic auth username"`
	RPCPass   string `long:"rpc-pass" description:"JSON-RPC basic auth password"`
	Output    string `long:"output" description:"output database path" required:"true"`
	BatchSize int    `long:"batch-size" description:"bulk insert batch size; has no effect, all balances are inserted in one transaction" default:"1000"`
	HRP       string `long:"hrp" description:"bech32 human-readable prefix to filter addresses by" default:"alpha"`
	Upstream  string `long:"upstream" description:"upstream mint endpoint recorded into snapshot metadata"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1) // flags.Parse already printed the usage/error
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "faucet-snapshot:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	rpc := l1rpc.New(opts.RPC, opts.RPCUser, opts.RPCPass)

	summary, err := snapshot.Build(context.Background(), snapshot.Params{
		RPC:         rpc,
		RPCEndpoint: opts.RPC,
		Upstream:    opts.Upstream,
		BlockHeight: opts.Block,
		HRP:         opts.HRP,
		OutDBPath:   opts.Output,
		BatchSize:   opts.BatchSize,
	})
	if err != nil {
		return err
	}

	fmt.Printf("snapshot complete: height=%d addresses=%d total_satoshis=%d\n",
		summary.BlockHeight, summary.AddressCount, summary.TotalAmount)
	return nil
}
