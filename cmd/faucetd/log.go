// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/unicitynetwork/alpha-faucet/address"
	"github.com/unicitynetwork/alpha-faucet/api"
	"github.com/unicitynetwork/alpha-faucet/claim"
	"github.com/unicitynetwork/alpha-faucet/l1rpc"
	"github.com/unicitynetwork/alpha-faucet/message"
	"github.com/unicitynetwork/alpha-faucet/mintclient"
	"github.com/unicitynetwork/alpha-faucet/sigverify"
	"github.com/unicitynetwork/alpha-faucet/snapshot"
	"github.com/unicitynetwork/alpha-faucet/store"
)

// logRotator rotates the on-disk log file, the same jrick/logrotate-backed
// approach the teacher repo uses for its own daemon log.
var logRotator *rotator.Rotator

// backendLog is the root btclog backend every subsystem logger is derived
// from.
var backendLog = btclog.NewBackend(logWriter{})

// logWriter forwards to both stdout and the rotator, once initLogRotator
// has been called; until then it writes only to stdout.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

// initLogRotator opens (creating as needed) the rotating log file at
// logFile.
func initLogRotator(logFile string) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return err
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return err
	}
	logRotator = r
	return nil
}

// Subsystem loggers, one per package, matching the teacher repo's
// per-package log.go / UseLogger convention (spec.md §6 ambient stack).
var (
	addrLog  = backendLog.Logger("ADDR")
	msgLog   = backendLog.Logger("MSG ")
	sigLog   = backendLog.Logger("SIG ")
	storeLog = backendLog.Logger("STOR")
	claimLog = backendLog.Logger("CLAM")
	snapLog  = backendLog.Logger("SNAP")
	mintLog  = backendLog.Logger("MINT")
	rpcLog   = backendLog.Logger("RPC ")
	apiLog   = backendLog.Logger("API ")
)

// useLoggers wires every package's subsystem logger and sets the shared
// level, mirroring the teacher repo's setLogLevels.
func useLoggers(level string) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		lvl = btclog.LevelInfo
	}

	for _, l := range []btclog.Logger{addrLog, msgLog, sigLog, storeLog, claimLog, snapLog, mintLog, rpcLog, apiLog} {
		l.SetLevel(lvl)
	}

	address.UseLogger(addrLog)
	message.UseLogger(msgLog)
	sigverify.UseLogger(sigLog)
	store.UseLogger(storeLog)
	claim.UseLogger(claimLog)
	snapshot.UseLogger(snapLog)
	mintclient.UseLogger(mintLog)
	l1rpc.UseLogger(rpcLog)
	api.UseLogger(apiLog)
}
