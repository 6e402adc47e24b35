// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package claim

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/unicitynetwork/alpha-faucet/address"
	"github.com/unicitynetwork/alpha-faucet/faucetz"
	"github.com/unicitynetwork/alpha-faucet/mintclient"
	"github.com/unicitynetwork/alpha-faucet/sigverify"
	"github.com/unicitynetwork/alpha-faucet/store"
)

const testHRP = "alpha"

func newTestCoordinator(t *testing.T, mintHandler http.HandlerFunc) (*Coordinator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "faucet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if mintHandler == nil {
		mintHandler = func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":true,"data":{"requestId":"req-1"}}`))
		}
	}
	srv := httptest.NewServer(mintHandler)
	t.Cleanup(srv.Close)

	mint := mintclient.New(srv.URL, 0)
	return New(st, mint, testHRP, "ALPHA"), st
}

func seedAddress(t *testing.T, st *store.Store, amount uint64) (string, *btcec.PrivateKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := address.FromPubkey(priv.PubKey().SerializeCompressed(), testHRP)
	require.NoError(t, err)
	require.NoError(t, st.BulkInsertBalances(context.Background(), map[string]uint64{addr: amount}))
	return addr, priv
}

func TestExecuteHappyPath(t *testing.T) {
	c, st := newTestCoordinator(t, nil)
	addr, priv := seedAddress(t, st, 150_000_000)

	sigHex, err := sigverify.Sign(priv, addr, "0xDEAD", 150_000_000)
	require.NoError(t, err)

	result, err := c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        150_000_000,
		SignatureHex:  sigHex,
	})
	require.NoError(t, err)
	require.Equal(t, "req-1", result.RelayTxID)
	require.Equal(t, 1.5, result.AmountCoins)

	// Second claim against the same address must be rejected.
	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        150_000_000,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindAlreadyConsumed, fe.Kind)
}

func TestExecuteAmountMismatch(t *testing.T) {
	c, st := newTestCoordinator(t, nil)
	addr, priv := seedAddress(t, st, 150_000_000)

	sigHex, err := sigverify.Sign(priv, addr, "0xDEAD", 149_999_999)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        149_999_999,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindAmountMismatch, fe.Kind)
}

func TestExecuteWrongSigner(t *testing.T) {
	c, st := newTestCoordinator(t, nil)
	addrA, _ := seedAddress(t, st, 100)
	_, privB := seedAddress(t, st, 200)

	sigHex, err := sigverify.Sign(privB, addrA, "0xDEAD", 100)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addrA,
		DestinationID: "0xDEAD",
		Amount:        100,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindAddressMismatch, fe.Kind)
}

func TestExecuteNotInSnapshot(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := address.FromPubkey(priv.PubKey().SerializeCompressed(), testHRP)
	require.NoError(t, err)

	sigHex, err := sigverify.Sign(priv, addr, "0xDEAD", 100)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        100,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindNotFound, fe.Kind)
}

func TestExecuteConcurrentRaceYieldsOneSuccess(t *testing.T) {
	c, st := newTestCoordinator(t, nil)
	addr, priv := seedAddress(t, st, 100)
	sigHex, err := sigverify.Sign(priv, addr, "0xDEAD", 100)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Execute(context.Background(), Request{
				AddressRaw:    addr,
				DestinationID: "0xDEAD",
				Amount:        100,
				SignatureHex:  sigHex,
			})
			results[i] = err
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, err := range results {
		if err == nil {
			successCount++
		}
	}
	require.Equal(t, 1, successCount)
}

func TestExecuteUpstreamFailureLeavesReservationStuck(t *testing.T) {
	c, st := newTestCoordinator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	addr, priv := seedAddress(t, st, 100)
	sigHex, err := sigverify.Sign(priv, addr, "0xDEAD", 100)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        100,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.True(t, errors.As(err, &fe))
	require.Equal(t, faucetz.KindUpstreamFailure, fe.Kind)

	row, err := st.Find(context.Background(), addr)
	require.NoError(t, err)
	require.True(t, row.Consumed)
	require.Equal(t, "pending", row.RelayTxID.String)

	// A second claim against the same, now-stuck-pending address must be
	// rejected as already consumed.
	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        100,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	require.True(t, errors.As(err, &fe))
	require.Equal(t, faucetz.KindAlreadyConsumed, fe.Kind)
}

func TestExecuteRejectsEmptyDestination(t *testing.T) {
	c, st := newTestCoordinator(t, nil)
	addr, priv := seedAddress(t, st, 100)
	sigHex, err := sigverify.Sign(priv, addr, "", 100)
	require.NoError(t, err)

	_, err = c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "",
		Amount:        100,
		SignatureHex:  sigHex,
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindInvalidInput, fe.Kind)
}

func TestExecuteRejectsZeroAmount(t *testing.T) {
	c, st := newTestCoordinator(t, nil)
	addr, _ := seedAddress(t, st, 100)

	_, err := c.Execute(context.Background(), Request{
		AddressRaw:    addr,
		DestinationID: "0xDEAD",
		Amount:        0,
		SignatureHex:  "00",
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindInvalidInput, fe.Kind)
}

func TestExecuteRejectsInvalidAddress(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)
	_, err := c.Execute(context.Background(), Request{
		AddressRaw:    "not-an-address",
		DestinationID: "0xDEAD",
		Amount:        100,
		SignatureHex:  "00",
	})
	require.Error(t, err)
	var fe *faucetz.Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, faucetz.KindInvalidAddress, fe.Kind)
}
