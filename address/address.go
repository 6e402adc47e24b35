// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package address implements bech32 P2WPKH address encoding, decoding, and
// derivation for the Alpha L1 (spec C1). It generalizes the teacher's
// witness-version-1 (taproot) bech32 address type down to witness version 0
// with a 20-byte program and a configurable human-readable prefix.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

// WitnessVersion is the only witness version this faucet accepts: P2WPKH,
// witness version 0 (spec.md §1 "Non-goals" excludes taproot and scripts).
const WitnessVersion = 0

// ProgramLen is the required length, in bytes, of a P2WPKH witness program
// (a 20-byte HASH160 of a compressed public key).
const ProgramLen = 20

// minAddrLen and maxAddrLen bound the textual address length per spec.md
// §4.1 check (3): "length ∈ [14, 74]".
const (
	minAddrLen = 14
	maxAddrLen = 74
)

// ErrInvalidAddress is the sentinel family for all address-validation
// failures. Use errors.As with *InvalidAddressError to recover the reason.
var ErrInvalidAddress = errors.New("invalid address")

// InvalidAddressError carries the specific reason Validate/Decode rejected
// an address (spec.md §4.1 "Failure mode").
type InvalidAddressError struct {
	Reason string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address: %s", e.Reason)
}

func (e *InvalidAddressError) Unwrap() error { return ErrInvalidAddress }

func invalid(reason string) error {
	return &InvalidAddressError{Reason: reason}
}

// ValidateResult is the outcome of Validate.
type ValidateResult struct {
	Valid      bool
	Normalized string
	Reason     string
}

// Validate checks addr against every rule in spec.md §4.1 and returns the
// lowercased, canonical form on success. It never returns an error; failures
// are reported through the Valid/Reason fields so callers that only need a
// yes/no answer (e.g. HTTP input validation) don't have to unwrap errors.
func Validate(addr string, hrp string) ValidateResult {
	if addr == "" {
		return ValidateResult{Reason: "empty address"}
	}
	normalized := strings.ToLower(addr)

	prefix := hrp + "1"
	if !strings.HasPrefix(normalized, prefix) {
		return ValidateResult{Reason: fmt.Sprintf("address must start with %q", prefix)}
	}
	if len(normalized) < minAddrLen || len(normalized) > maxAddrLen {
		return ValidateResult{Reason: fmt.Sprintf("address length %d out of range [%d,%d]", len(normalized), minAddrLen, maxAddrLen)}
	}
	if !bech32CharsetOnly(normalized[len(hrp)+1:]) {
		return ValidateResult{Reason: "address contains characters outside the bech32 alphabet"}
	}

	decodedHRP, data, err := bech32.Decode(normalized)
	if err != nil {
		return ValidateResult{Reason: fmt.Sprintf("bech32 decode failed: %v", err)}
	}
	if decodedHRP != hrp {
		return ValidateResult{Reason: fmt.Sprintf("unexpected hrp %q, want %q", decodedHRP, hrp)}
	}
	if len(data) < 1 {
		return ValidateResult{Reason: "empty bech32 data section"}
	}
	if data[0] != WitnessVersion {
		return ValidateResult{Reason: fmt.Sprintf("unsupported witness version %d", data[0])}
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return ValidateResult{Reason: fmt.Sprintf("witness program conversion failed: %v", err)}
	}
	if len(program) != ProgramLen {
		return ValidateResult{Reason: fmt.Sprintf("witness program is %d bytes, want %d", len(program), ProgramLen)}
	}

	return ValidateResult{Valid: true, Normalized: normalized}
}

// bech32CharsetOnly reports whether s contains only characters from the
// bech32 data-part alphabet (BIP-173), excluding the "1" separator itself.
func bech32CharsetOnly(s string) bool {
	const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"
	for _, r := range s {
		if !strings.ContainsRune(charset, r) {
			return false
		}
	}
	return true
}

// Decoded is the result of a successful Decode.
type Decoded struct {
	WitnessVersion byte
	PubKeyHash     [ProgramLen]byte
}

// Decode parses addr, assumed already Validate()-checked, into its witness
// version and 20-byte pubkey hash.
func Decode(addr string, hrp string) (Decoded, error) {
	res := Validate(addr, hrp)
	if !res.Valid {
		return Decoded{}, invalid(res.Reason)
	}
	_, data, err := bech32.Decode(res.Normalized)
	if err != nil {
		return Decoded{}, invalid(err.Error())
	}
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return Decoded{}, invalid(err.Error())
	}
	var out Decoded
	out.WitnessVersion = data[0]
	copy(out.PubKeyHash[:], program)
	return out, nil
}

// Encode builds a bech32 P2WPKH address from a 20-byte pubkey hash.
func Encode(pubKeyHash []byte, hrp string) (string, error) {
	if len(pubKeyHash) != ProgramLen {
		return "", invalid(fmt.Sprintf("pubkey hash is %d bytes, want %d", len(pubKeyHash), ProgramLen))
	}
	conv, err := bech32.ConvertBits(pubKeyHash, 8, 5, true)
	if err != nil {
		return "", invalid(err.Error())
	}
	data := append([]byte{WitnessVersion}, conv...)
	encoded, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", invalid(err.Error())
	}
	return encoded, nil
}

// FromPubkey derives the bech32 P2WPKH address for a 33-byte compressed
// public key: HASH160 = RIPEMD160(SHA256(pubkey)), then Encode (spec.md
// §4.1). btcutil.Hash160 is the same RIPEMD160(SHA256(x)) helper the teacher
// repo's GenerateShellAddress uses for its own P2PKH derivation.
func FromPubkey(compressedPubkey []byte, hrp string) (string, error) {
	if len(compressedPubkey) != 33 {
		return "", invalid(fmt.Sprintf("compressed pubkey is %d bytes, want 33", len(compressedPubkey)))
	}
	hash := btcutil.Hash160(compressedPubkey)
	return Encode(hash, hrp)
}
