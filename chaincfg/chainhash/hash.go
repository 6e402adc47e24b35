// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the double-SHA256 digest primitives used to
// build the faucet's canonical claim-message hash (spec C2).
package chainhash

import "crypto/sha256"

// HashSize is the number of bytes in a hash produced by this package.
const HashSize = sha256.Size

// Hash is a 32-byte double-SHA256 digest.
type Hash [HashSize]byte

// HashB calculates the SHA256 hash of the given data and returns it as a
// byte slice.
func HashB(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// HashH calculates the SHA256 hash of the given data and returns it as a
// Hash.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// DoubleHashB calculates SHA256(SHA256(data)) and returns it as a byte
// slice.
func DoubleHashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// DoubleHashH calculates SHA256(SHA256(data)) and returns it as a Hash.
func DoubleHashH(b []byte) Hash {
	first := sha256.Sum256(b)
	return Hash(sha256.Sum256(first[:]))
}

// String returns the hex-encoded hash with byte order unreversed (this
// package never interprets hashes as block/tx identifiers, so no byte-order
// flip is applied, unlike the wire-protocol chainhash.Hash this is modeled
// on).
func (h Hash) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, HashSize*2)
	for i, b := range h {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
