// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import "github.com/btcsuite/btclog"

// log is the subsystem logger for this package. It is disabled by default
// and wired to a real backend by cmd/faucetd via UseLogger, the same
// per-package logging convention the teacher repo uses throughout its own
// subsystems.
var log = btclog.Disabled

// UseLogger sets the subsystem logger used by this package. Should be
// called before the package is used; it is not safe for concurrent use.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all library log output.
func DisableLog() {
	log = btclog.Disabled
}
