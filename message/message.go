// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package message builds the canonical claim message and its digest (spec
// C2). The digest follows the same double-SHA256-of-a-length-prefixed-blob
// construction the teacher repo uses via chaincfg/chainhash.DoubleHashB,
// applied here to Bitcoin's "signed message" framing instead of a block or
// transaction.
package message

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/unicitynetwork/alpha-faucet/chaincfg/chainhash"
)

// Prefix is prepended to every signed message, mirroring Bitcoin's
// "Bitcoin Signed Message:\n" convention (spec.md §4.2).
const Prefix = "Alpha Signed Message:\n"

// ErrTooLarge is returned when a length does not fit CompactSize's encodable
// range (spec.md §4.2 step 1: "larger → error").
var ErrTooLarge = errors.New("message: length exceeds CompactSize range")

// Canonical builds the ASCII claim message "<addr>:<destination_id>:<amount>"
// (spec.md §4.2). amount must already be validated as non-negative.
func Canonical(addr, destinationID string, amount uint64) string {
	return fmt.Sprintf("%s:%s:%s", addr, destinationID, strconv.FormatUint(amount, 10))
}

// Digest computes the 32-byte claim digest for msg: SHA256(SHA256(
// varint(|prefix|) || prefix || varint(|msg|) || msg)) (spec.md §4.2).
func Digest(msg string) ([32]byte, error) {
	var buf []byte
	buf, err := appendCompactSize(buf, uint64(len(Prefix)))
	if err != nil {
		return [32]byte{}, err
	}
	buf = append(buf, Prefix...)
	buf, err = appendCompactSize(buf, uint64(len(msg)))
	if err != nil {
		return [32]byte{}, err
	}
	buf = append(buf, msg...)
	return [32]byte(chainhash.DoubleHashH(buf)), nil
}

// ClaimDigest is a convenience wrapper combining Canonical and Digest for
// the three fields that make up a claim (spec.md §4.2/§4.5).
func ClaimDigest(addr, destinationID string, amount uint64) ([32]byte, error) {
	return Digest(Canonical(addr, destinationID, amount))
}

// appendCompactSize appends n encoded as a Bitcoin-style CompactSize varint
// to buf (spec.md §4.2 step 1).
func appendCompactSize(buf []byte, n uint64) ([]byte, error) {
	switch {
	case n < 253:
		return append(buf, byte(n)), nil
	case n <= math.MaxUint16:
		return append(buf, 0xFD, byte(n), byte(n>>8)), nil
	case n <= math.MaxUint32:
		return append(buf, 0xFE, byte(n), byte(n>>8), byte(n>>16), byte(n>>24)), nil
	default:
		return nil, ErrTooLarge
	}
}
