// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-kms.
//
// go-kms is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package signing

import (
	"errors"
	"fmt"
)

var (
	// ErrSignerRequired indicates a nil signer was provided
	ErrSignerRequired = errors.New("signing: signer is required")

	// ErrNoProvider indicates no provider is registered for a chain
	ErrNoProvider = errors.New("signing: no provider for chain")

	// ErrDuplicateChain indicates a chain was registered twice
	ErrDuplicateChain = errors.New("signing: chain already has a provider")

	// ErrBackendNotCompiled indicates a provider whose build tag was not enabled
	ErrBackendNotCompiled = errors.New("signing: backend not compiled into this binary")

	// ErrClosed indicates the provider was closed
	ErrClosed = errors.New("signing: provider closed")
)

// ErrorKind classifies signing failures.
type ErrorKind int

const (
	// ErrorIo is a failure reading key material or reaching a backend.
	ErrorIo ErrorKind = iota + 1
	// ErrorKeyInvalid is malformed or unsupported key material.
	ErrorKeyInvalid
	// ErrorParse is key material or a backend response that could not be
	// parsed.
	ErrorParse
	// ErrorProvider is a failure inside the signing backend.
	ErrorProvider
	// ErrorSignatureInvalid is a signature that failed verification.
	ErrorSignatureInvalid
	// ErrorAccess is a rejected login or PIN on a hardware token.
	ErrorAccess
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorIo:
		return "I/O error"
	case ErrorKeyInvalid:
		return "invalid key"
	case ErrorParse:
		return "parse error"
	case ErrorProvider:
		return "provider error"
	case ErrorSignatureInvalid:
		return "signature invalid"
	case ErrorAccess:
		return "access denied"
	default:
		return "unknown error"
	}
}

// Error is a classified signing failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError returns an Error of kind with a formatted cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "signing: " + e.Kind.String()
	}
	return fmt.Sprintf("signing: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
