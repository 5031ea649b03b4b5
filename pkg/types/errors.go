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

package types

import "fmt"

// ErrorKind classifies failures while interpreting consensus data.
type ErrorKind int

const (
	// ErrorCrypto indicates a cryptographic operation failed.
	ErrorCrypto ErrorKind = iota + 1
	// ErrorInvalidKey indicates malformed key material.
	ErrorInvalidKey
	// ErrorIo indicates an input/output failure.
	ErrorIo
	// ErrorProtocol indicates a protocol violation.
	ErrorProtocol
	// ErrorLength indicates a value of the wrong length.
	ErrorLength
	// ErrorParse indicates a value that could not be parsed.
	ErrorParse
	// ErrorOutOfRange indicates a value outside its permitted range.
	ErrorOutOfRange
	// ErrorSignatureInvalid indicates a signature that does not verify.
	ErrorSignatureInvalid
)

// String returns the display text of the kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorCrypto:
		return "cryptographic error"
	case ErrorInvalidKey:
		return "invalid key"
	case ErrorIo:
		return "I/O error"
	case ErrorProtocol:
		return "protocol error"
	case ErrorLength:
		return "length error"
	case ErrorParse:
		return "parse error"
	case ErrorOutOfRange:
		return "value out of range"
	case ErrorSignatureInvalid:
		return "bad signature"
	default:
		return "unknown error"
	}
}

// Error is a consensus data error.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError creates an Error of the given kind with a formatted cause.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "types: " + e.Kind.String()
	}
	return fmt.Sprintf("types: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError reports a structurally invalid vote or proposal.
type ValidationError struct {
	Field  string
	Reason string
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("types: invalid %s: %s", e.Field, e.Reason)
}
