// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads the faucet server's runtime configuration from the
// environment, optionally seeded from a .env file via joho/godotenv — the
// same env-first, file-optional convention the rest of this codebase's
// services use rather than a flags-only setup, since the server is meant
// to run unattended under a process supervisor or container.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every value spec.md §6 enumerates as optional-with-defaults.
type Config struct {
	Port int

	DBPath string

	UpstreamMintURL string
	TokenName       string

	L1RPCURL  string
	L1RPCUser string
	L1RPCPass string

	CORSOrigin string
	LogLevel   string

	HRP string
}

// Defaults matches spec.md §6's enumerated defaults.
func Defaults() Config {
	return Config{
		Port:            3000,
		DBPath:          "./faucet.db",
		UpstreamMintURL: "http://localhost:4000",
		TokenName:       "ALPHA",
		L1RPCURL:        "http://localhost:8332",
		CORSOrigin:      "*",
		LogLevel:        "info",
		HRP:             "alpha",
	}
}

// Load reads environment variables over the defaults. If a .env file is
// present at the working directory it is loaded first (and silently
// ignored if absent), matching joho/godotenv's typical usage.
func Load() Config {
	_ = godotenv.Load()

	cfg := Defaults()

	if v := os.Getenv("FAUCET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("FAUCET_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FAUCET_UPSTREAM_MINT_URL"); v != "" {
		cfg.UpstreamMintURL = v
	}
	if v := os.Getenv("FAUCET_TOKEN_NAME"); v != "" {
		cfg.TokenName = v
	}
	if v := os.Getenv("FAUCET_L1_RPC_URL"); v != "" {
		cfg.L1RPCURL = v
	}
	if v := os.Getenv("FAUCET_L1_RPC_USER"); v != "" {
		cfg.L1RPCUser = v
	}
	if v := os.Getenv("FAUCET_L1_RPC_PASS"); v != "" {
		cfg.L1RPCPass = v
	}
	if v := os.Getenv("FAUCET_CORS_ORIGIN"); v != "" {
		cfg.CORSOrigin = v
	}
	if v := os.Getenv("FAUCET_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FAUCET_HRP"); v != "" {
		cfg.HRP = v
	}

	return cfg
}
