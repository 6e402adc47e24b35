// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/unicitynetwork/alpha-faucet/address"
	"github.com/unicitynetwork/alpha-faucet/claim"
	"github.com/unicitynetwork/alpha-faucet/mintclient"
	"github.com/unicitynetwork/alpha-faucet/sigverify"
	"github.com/unicitynetwork/alpha-faucet/store"
)

const testHRP = "alpha"

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "faucet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mintSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"requestId":"req-1"}}`))
	}))
	t.Cleanup(mintSrv.Close)

	mint := mintclient.New(mintSrv.URL, 0)
	coordinator := claim.New(st, mint, testHRP, "ALPHA")

	return &Server{Coordinator: coordinator, Store: st, HRP: testHRP, CORSOrigin: "*"}, st
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBalanceEndpointNotInSnapshot(t *testing.T) {
	s, _ := newTestServer(t)
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := address.FromPubkey(priv.PubKey().SerializeCompressed(), testHRP)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/faucet/balance/"+addr, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, false, body["inSnapshot"])
}

func TestBalanceEndpointInvalidAddress(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/faucet/balance/not-an-address", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestEndpointHappyPath(t *testing.T) {
	s, st := newTestServer(t)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := address.FromPubkey(priv.PubKey().SerializeCompressed(), testHRP)
	require.NoError(t, err)
	require.NoError(t, st.BulkInsertBalances(context.Background(), map[string]uint64{addr: 150_000_000}))

	sigHex, err := sigverify.Sign(priv, addr, "0xDEAD", 150_000_000)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"l1_addr":   addr,
		"unicityId": "0xDEAD",
		"amount":    150_000_000,
		"signature": sigHex,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/faucet/request", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, true, resp["success"])
	require.Equal(t, "req-1", resp["relayTxId"])
}

func TestRequestEndpointRejectsBadAmount(t *testing.T) {
	s, _ := newTestServer(t)
	body, err := json.Marshal(map[string]any{
		"l1_addr":   "alpha1abc",
		"unicityId": "dead",
		"amount":    0,
		"signature": "00",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/faucet/request", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, st := newTestServer(t)
	require.NoError(t, st.BulkInsertBalances(context.Background(), map[string]uint64{"alpha1abc": 10, "alpha1def": 20}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/faucet/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, float64(2), resp["totalAddresses"])
}
