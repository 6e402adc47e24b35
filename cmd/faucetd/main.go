// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command faucetd serves the claim HTTP surface described in spec.md §6:
// balance lookups, claim submission, and stats, backed by a SQLite balance
// store and an upstream mint relay client.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unicitynetwork/alpha-faucet/api"
	"github.com/unicitynetwork/alpha-faucet/claim"
	"github.com/unicitynetwork/alpha-faucet/config"
	"github.com/unicitynetwork/alpha-faucet/mintclient"
	"github.com/unicitynetwork/alpha-faucet/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	if err := initLogRotator("./logs/faucetd.log"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not initialize log rotation: %v\n", err)
	}
	useLoggers(cfg.LogLevel)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening balance store: %w", err)
	}
	defer st.Close()

	mint := mintclient.New(cfg.UpstreamMintURL, mintclient.DefaultTimeout)
	coordinator := claim.New(st, mint, cfg.HRP, cfg.TokenName)

	server := &api.Server{
		Coordinator: coordinator,
		Store:       st,
		HRP:         cfg.HRP,
		CORSOrigin:  cfg.CORSOrigin,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		apiLog.Infof("faucetd listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-sigCh:
		apiLog.Infof("shutting down, waiting for in-flight claims to finish")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
