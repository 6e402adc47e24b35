// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mintclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRelaySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"requestId":"req-123"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	result, err := c.Relay(context.Background(), "dead", "ALPHA", 1.5)
	require.NoError(t, err)
	require.Equal(t, "req-123", result.RelayTxID)
}

func TestRelayFallsBackToTxId(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"txId":"tx-456"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	result, err := c.Relay(context.Background(), "dead", "ALPHA", 1.0)
	require.NoError(t, err)
	require.Equal(t, "tx-456", result.RelayTxID)
}

func TestRelayUnknownWhenNoIdsPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	result, err := c.Relay(context.Background(), "dead", "ALPHA", 1.0)
	require.NoError(t, err)
	require.Equal(t, "unknown", result.RelayTxID)
}

func TestRelayNonSuccessStatusIsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.Relay(context.Background(), "dead", "ALPHA", 1.0)
	require.Error(t, err)
}
