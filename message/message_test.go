// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package message

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDigestDeterministic(t *testing.T) {
	d1, err := Digest("alpha1abc:dest:100")
	require.NoError(t, err)
	d2, err := Digest("alpha1abc:dest:100")
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestDigestDiffersOnAmountChange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		addr := rapid.StringMatching(`alpha1[a-z0-9]{10,20}`).Draw(rt, "addr")
		dest := rapid.StringMatching(`[0-9a-f]{1,16}`).Draw(rt, "dest")
		amount := rapid.Uint64Range(1, 1_000_000_000).Draw(rt, "amount")

		base, err := ClaimDigest(addr, dest, amount)
		require.NoError(rt, err)

		flipped, err := ClaimDigest(addr, dest, amount+1)
		require.NoError(rt, err)
		require.NotEqual(rt, base, flipped)
	})
}

func TestCanonicalFormat(t *testing.T) {
	require.Equal(t, "alpha1xyz:dead:42", Canonical("alpha1xyz", "dead", 42))
}

func TestAppendCompactSizeRanges(t *testing.T) {
	small, err := appendCompactSize(nil, 10)
	require.NoError(t, err)
	require.Equal(t, []byte{10}, small)

	mid, err := appendCompactSize(nil, 300)
	require.NoError(t, err)
	require.Equal(t, byte(0xFD), mid[0])

	big, err := appendCompactSize(nil, 1<<20)
	require.NoError(t, err)
	require.Equal(t, byte(0xFE), big[0])
}
