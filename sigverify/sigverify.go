// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sigverify parses and verifies the recoverable ECDSA signatures
// claimants submit to prove control of an L1 address (spec C3). It is built
// on btcec/v2's RecoverCompact, the same public-key-recovery primitive the
// teacher repo's settlement and liquidity packages use for their own
// "27+recoveryID" compact-signature conventions, extended here to accept
// the spec's two additional header-byte ranges.
package sigverify

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/unicitynetwork/alpha-faucet/address"
	"github.com/unicitynetwork/alpha-faucet/message"
)

// Kind identifies the specific way a claim's signature failed to verify, so
// the HTTP layer can map it to the right status code (spec.md §7).
type Kind int

const (
	// KindBadSignature covers hex/length/range/recovery-tag parse failures.
	KindBadSignature Kind = iota
	// KindUnsupportedKey is returned for uncompressed-key recovery tags.
	KindUnsupportedKey
	// KindNonCanonicalSignature is returned when s > n/2 (BIP-62).
	KindNonCanonicalSignature
	// KindAddressMismatch is returned when the recovered address doesn't
	// match the claimed one.
	KindAddressMismatch
	// KindMathCheckFailed is returned when the defense-in-depth ECDSA
	// verify fails despite a successful recovery.
	KindMathCheckFailed
)

// Error is returned by Verify and Parse on any failure.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func newErr(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// ParsedSignature is a signature broken into its recoverable components
// (spec.md §4.3 "Signature parsing").
type ParsedSignature struct {
	RecoveryID byte
	R          *big.Int
	S          *big.Int
}

// halfOrder is n/2, the BIP-62 low-S threshold.
var halfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// Parse decodes a 65-byte recoverable signature encoded as 130 hex
// characters (with an optional "0x" prefix) per spec.md §4.3.
func Parse(sigHex string) (ParsedSignature, error) {
	s := strings.TrimPrefix(sigHex, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) != 130 {
		return ParsedSignature{}, newErr(KindBadSignature, "signature must be 130 hex characters, got %d", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ParsedSignature{}, newErr(KindBadSignature, "signature is not valid hex: %v", err)
	}

	v := raw[0]
	r := new(big.Int).SetBytes(raw[1:33])
	sVal := new(big.Int).SetBytes(raw[33:65])

	var recID byte
	switch {
	case v >= 27 && v <= 30:
		return ParsedSignature{}, newErr(KindUnsupportedKey, "uncompressed recovery tag %d is not supported", v)
	case v >= 31 && v <= 34:
		recID = v - 31
	case v >= 39 && v <= 42:
		// 39–42 is accepted as a second compressed-key tag range alongside
		// 31–34; both map to recovery ids 0–3.
		recID = v - 39
	default:
		return ParsedSignature{}, newErr(KindBadSignature, "recovery tag %d out of range", v)
	}

	n := btcec.S256().N
	one := big.NewInt(1)
	nMinus1 := new(big.Int).Sub(n, one)
	if r.Cmp(one) < 0 || r.Cmp(nMinus1) > 0 {
		return ParsedSignature{}, newErr(KindBadSignature, "signature r out of range")
	}
	if sVal.Cmp(one) < 0 || sVal.Cmp(nMinus1) > 0 {
		return ParsedSignature{}, newErr(KindBadSignature, "signature s out of range")
	}
	if sVal.Cmp(halfOrder) > 0 {
		return ParsedSignature{}, newErr(KindNonCanonicalSignature, "signature s is not canonical (low-S required)")
	}

	return ParsedSignature{RecoveryID: recID, R: r, S: sVal}, nil
}

// Result is the output of a successful Verify.
type Result struct {
	RecoveredPubkeyHex string
	DerivedAddress     string
}

// Verify checks that sigHex is a valid recoverable signature over the
// canonical claim message for (addr, destinationID, amount), and that it
// was produced by the key controlling addr (spec.md §4.3).
func Verify(addr, destinationID string, amount uint64, sigHex string, hrp string) (Result, error) {
	parsed, err := Parse(sigHex)
	if err != nil {
		return Result{}, err
	}

	digest, err := message.ClaimDigest(addr, destinationID, amount)
	if err != nil {
		return Result{}, newErr(KindBadSignature, "failed to build claim digest: %v", err)
	}

	compactSig := make([]byte, 65)
	compactSig[0] = 31 + parsed.RecoveryID // always request the compressed-key recovery
	copy(compactSig[1:33], padTo32(parsed.R))
	copy(compactSig[33:65], padTo32(parsed.S))

	pubKey, _, err := ecdsa.RecoverCompact(compactSig, digest[:])
	if err != nil {
		return Result{}, newErr(KindBadSignature, "public key recovery failed: %v", err)
	}

	pubkeyBytes := pubKey.SerializeCompressed()
	derivedAddr, err := address.FromPubkey(pubkeyBytes, hrp)
	if err != nil {
		return Result{}, newErr(KindBadSignature, "failed to derive address from recovered key: %v", err)
	}

	if !strings.EqualFold(derivedAddr, addr) {
		log.Debugf("address mismatch: recovered %s claimed %s", derivedAddr, addr)
		return Result{}, newErr(KindAddressMismatch, "recovered address %s does not match claimed address %s", derivedAddr, addr)
	}

	sig := ecdsa.NewSignature(bigToModNScalar(parsed.R), bigToModNScalar(parsed.S))
	if !sig.Verify(digest[:], pubKey) {
		return Result{}, newErr(KindMathCheckFailed, "ECDSA verification failed for recovered key")
	}

	return Result{
		RecoveredPubkeyHex: hex.EncodeToString(pubkeyBytes),
		DerivedAddress:     strings.ToLower(derivedAddr),
	}, nil
}

// Sign is a deterministic test helper (spec.md §4.3 "Test helper"): it signs
// the claim digest with priv, normalizes to low-S, and brute-forces the
// recovery index that rederives the signer's own public key.
func Sign(priv *btcec.PrivateKey, addr, destinationID string, amount uint64) (string, error) {
	digest, err := message.ClaimDigest(addr, destinationID, amount)
	if err != nil {
		return "", err
	}

	sig := signLowS(priv, digest[:])
	wantPub := priv.PubKey().SerializeCompressed()

	for k := byte(0); k < 4; k++ {
		compactSig := make([]byte, 65)
		compactSig[0] = 31 + k
		copy(compactSig[1:33], padTo32(sig.R))
		copy(compactSig[33:65], padTo32(sig.S))

		recovered, _, err := ecdsa.RecoverCompact(compactSig, digest[:])
		if err != nil {
			continue
		}
		if string(recovered.SerializeCompressed()) == string(wantPub) {
			out := make([]byte, 0, 65)
			out = append(out, 31+k)
			out = append(out, padTo32(sig.R)...)
			out = append(out, padTo32(sig.S)...)
			return hex.EncodeToString(out), nil
		}
	}
	return "", errors.New("sigverify: could not find recovery id for signature")
}

// bigToModNScalar converts a big.Int in [0, n) into a btcec.ModNScalar, the
// internal scalar type btcec/v2/ecdsa.Signature is built from.
func bigToModNScalar(b *big.Int) *btcec.ModNScalar {
	var scalar btcec.ModNScalar
	scalar.SetByteSlice(padTo32(b))
	return &scalar
}

type rsSig struct {
	R *big.Int
	S *big.Int
}

// signLowS produces a deterministic ECDSA signature (RFC 6979 via btcec's
// Sign) normalized so s <= n/2 (BIP-62).
func signLowS(priv *btcec.PrivateKey, hash []byte) rsSig {
	sig := ecdsa.Sign(priv, hash)
	r, s := sigRS(sig)
	if s.Cmp(halfOrder) > 0 {
		s = new(big.Int).Sub(btcec.S256().N, s)
	}
	return rsSig{R: r, S: s}
}

// sigRS extracts R and S from a btcec/v2/ecdsa.Signature via its DER
// encoding, since the package does not export raw accessors directly.
func sigRS(sig *ecdsa.Signature) (*big.Int, *big.Int) {
	der := sig.Serialize()
	// DER: 0x30 len 0x02 rlen R 0x02 slen S
	rlen := int(der[3])
	r := new(big.Int).SetBytes(der[4 : 4+rlen])
	sOff := 4 + rlen + 2
	slen := int(der[4+rlen+1])
	s := new(big.Int).SetBytes(der[sOff : sOff+slen])
	return r, s
}

func padTo32(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
