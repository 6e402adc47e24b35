// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the L1 network parameters the faucet needs to
// validate addresses against — principally the bech32 human-readable
// prefix. It is a deliberately small slice of the full btcsuite chaincfg
// surface: the faucet never validates blocks or transactions, only
// addresses and RPC responses from an L1 node it treats as an oracle.
package chaincfg

import "fmt"

// Params holds the subset of L1 network parameters the faucet core needs.
type Params struct {
	// Name is a human-readable identifier for the network, reported by the
	// /health endpoint.
	Name string

	// Bech32HRPSegwit is the human-readable prefix bech32 P2WPKH addresses
	// on this network must start with (spec.md §4.1). Defaults to "alpha".
	Bech32HRPSegwit string
}

// DefaultHRP is the human-readable prefix used when none is configured.
const DefaultHRP = "alpha"

// MainNetParams defines the parameters for the production Alpha network.
var MainNetParams = Params{
	Name:            "mainnet",
	Bech32HRPSegwit: DefaultHRP,
}

// TestNetParams defines the parameters for the Alpha test network.
var TestNetParams = Params{
	Name:            "testnet",
	Bech32HRPSegwit: "talpha",
}

// RegressionNetParams defines the parameters for local regression testing.
var RegressionNetParams = Params{
	Name:            "regtest",
	Bech32HRPSegwit: "rtalpha",
}

// WithHRP returns a copy of p with its Bech32HRPSegwit overridden, for
// operators who run a custom HRP (spec.md §4.1 "configurable human-readable
// prefix").
func (p Params) WithHRP(hrp string) Params {
	p.Bech32HRPSegwit = hrp
	return p
}

// registered networks, keyed by Bech32HRPSegwit, so a config-supplied HRP
// can be resolved back to a known Params value when it matches one.
var registered = map[string]Params{
	MainNetParams.Bech32HRPSegwit:       MainNetParams,
	TestNetParams.Bech32HRPSegwit:       TestNetParams,
	RegressionNetParams.Bech32HRPSegwit: RegressionNetParams,
}

// ParamsForHRP returns the registered Params for a given HRP, or a bare
// Params carrying just that HRP if it isn't one of the known networks —
// the faucet operator is free to run an arbitrary HRP (spec.md §4.1).
func ParamsForHRP(hrp string) Params {
	if p, ok := registered[hrp]; ok {
		return p
	}
	return Params{Name: fmt.Sprintf("custom(%s)", hrp), Bech32HRPSegwit: hrp}
}
