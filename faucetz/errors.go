// Copyright (c) 2025 Alpha Faucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package faucetz holds the error-kind hierarchy shared by every layer of
// the faucet (spec.md §7 and §9 "Custom error hierarchy"). It plays the
// role the teacher repo gives to a single flat error-kind type per
// subsystem, except here one hierarchy is shared end to end so the HTTP
// layer can make the kind-to-status mapping in exactly one place.
package faucetz

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the user-visible category of a faucet error.
type Kind int

const (
	// KindInvalidInput covers schema/shape/amount/destination failures.
	KindInvalidInput Kind = iota
	// KindInvalidAddress covers C1 validation failures.
	KindInvalidAddress
	// KindBadSignature covers hex/length/range/low-S/recovery parse failures.
	KindBadSignature
	// KindAddressMismatch is a cryptographic identity failure.
	KindAddressMismatch
	// KindMathCheckFailed is a cryptographic identity failure (ECDSA verify).
	KindMathCheckFailed
	// KindNotFound means the address is absent from the snapshot.
	KindNotFound
	// KindAmountMismatch means the requested amount differs from the
	// snapshotted balance.
	KindAmountMismatch
	// KindAlreadyConsumed covers both a previously consumed row and a lost
	// race against a concurrent claim for the same row.
	KindAlreadyConsumed
	// KindUpstreamFailure means the mint relay timed out or returned a
	// non-success status.
	KindUpstreamFailure
	// KindStoreFailure is a persistence-layer failure.
	KindStoreFailure
	// KindInternal is the catch-all for anything else.
	KindInternal
)

// String returns the wire/log name of the kind, matching spec.md §7.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidAddress:
		return "InvalidAddress"
	case KindBadSignature:
		return "BadSignature"
	case KindAddressMismatch:
		return "AddressMismatch"
	case KindMathCheckFailed:
		return "MathCheckFailed"
	case KindNotFound:
		return "NotFound"
	case KindAmountMismatch:
		return "AmountMismatch"
	case KindAlreadyConsumed:
		return "AlreadyConsumed"
	case KindUpstreamFailure:
		return "UpstreamFailure"
	case KindStoreFailure:
		return "StoreFailure"
	default:
		return "Internal"
	}
}

// HTTPStatus returns the status code the HTTP layer maps this kind to
// (spec.md §7).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindInvalidAddress, KindBadSignature,
		KindAddressMismatch, KindMathCheckFailed, KindAmountMismatch:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyConsumed:
		return http.StatusConflict
	case KindUpstreamFailure:
		return http.StatusBadGateway
	case KindStoreFailure, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error type carried through the claim pipeline. Every
// component that needs to signal a user-visible failure constructs one via
// New or Wrap rather than returning an ad hoc error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error that carries cause as its underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind from err if it is, or wraps, a *Error;
// otherwise it returns KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}
