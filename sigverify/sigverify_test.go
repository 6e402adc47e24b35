// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sigverify

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/unicitynetwork/alpha-faucet/address"
)

const testHRP = "alpha"

func mustAddr(t rapid.TB, priv *btcec.PrivateKey) string {
	addr, err := address.FromPubkey(priv.PubKey().SerializeCompressed(), testHRP)
	require.NoError(t, err)
	return addr
}

func TestVerifySignRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		priv, err := btcec.NewPrivateKey()
		require.NoError(rt, err)
		addr := mustAddr(rt, priv)
		dest := rapid.StringMatching(`[0-9a-f]{4,16}`).Draw(rt, "dest")
		amount := rapid.Uint64Range(1, 1_000_000_000).Draw(rt, "amount")

		sigHex, err := Sign(priv, addr, dest, amount)
		require.NoError(rt, err)

		result, err := Verify(addr, dest, amount, sigHex, testHRP)
		require.NoError(rt, err)
		require.Equal(rt, strings.ToLower(addr), result.DerivedAddress)
	})
}

func TestVerifyRejectsFlippedAmount(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr := mustAddr(t, priv)

	sigHex, err := Sign(priv, addr, "dead", 100)
	require.NoError(t, err)

	_, err = Verify(addr, "dead", 101, sigHex, testHRP)
	require.Error(t, err)
}

func TestVerifyRejectsAlteredDestination(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr := mustAddr(t, priv)

	sigHex, err := Sign(priv, addr, "dead", 100)
	require.NoError(t, err)

	_, err = Verify(addr, "beef", 100, sigHex, testHRP)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	privA, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	privB, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	addrA := mustAddr(t, privA)

	sigHex, err := Sign(privB, addrA, "dead", 100)
	require.NoError(t, err)

	_, err = Verify(addrA, "dead", 100, sigHex, testHRP)
	require.Error(t, err)
	var sigErr *Error
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, KindAddressMismatch, sigErr.Kind)
}

func TestParseRejectsNonHex(t *testing.T) {
	_, err := Parse(strings.Repeat("z", 130))
	require.Error(t, err)
}

func TestParseRejectsWrongLength(t *testing.T) {
	_, err := Parse("deadbeef")
	require.Error(t, err)
}

func TestParseRejectsBadRecoveryTag(t *testing.T) {
	sig := "ff" + strings.Repeat("11", 64)
	_, err := Parse(sig)
	require.Error(t, err)
	var sigErr *Error
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, KindBadSignature, sigErr.Kind)
}

func TestParseRejectsUncompressedTag(t *testing.T) {
	sig := "1b" + strings.Repeat("11", 64)
	_, err := Parse(sig)
	require.Error(t, err)
	var sigErr *Error
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, KindUnsupportedKey, sigErr.Kind)
}

func TestParseRejectsHighS(t *testing.T) {
	n := btcec.S256().N
	nMinus1 := new(big.Int).Sub(n, big.NewInt(1))

	sigBytes := make([]byte, 65)
	sigBytes[0] = 31
	r := padTo32ForTest(big.NewInt(1))
	s := padTo32ForTest(nMinus1)
	copy(sigBytes[1:33], r)
	copy(sigBytes[33:65], s)

	_, err := Parse(hex.EncodeToString(sigBytes))
	require.Error(t, err)
	var sigErr *Error
	require.ErrorAs(t, err, &sigErr)
	require.Equal(t, KindNonCanonicalSignature, sigErr.Kind)
}

func padTo32ForTest(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
