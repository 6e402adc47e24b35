// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadUsesDefaultsWhenUnset(t *testing.T) {
	t.Setenv("FAUCET_PORT", "")
	cfg := Load()
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, "alpha", cfg.HRP)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("FAUCET_PORT", "8080")
	t.Setenv("FAUCET_HRP", "testalpha")
	cfg := Load()
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "testalpha", cfg.HRP)
}
