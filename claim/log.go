// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import "github.com/btcsuite/btclog"

// log is the subsystem logger for the claim coordinator.
var log = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}
