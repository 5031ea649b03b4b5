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

package amino

import (
	"errors"
	"fmt"
)

var (
	// ErrPrefixTooShort is returned when fewer than PrefixLen non-zero bytes
	// survive the prefix filtering of a type name digest.
	ErrPrefixTooShort = errors.New("amino: not enough non-zero digest bytes for a type prefix")

	// ErrDuplicatePrefix is returned when two registered names hash to the same prefix.
	ErrDuplicatePrefix = errors.New("amino: duplicate type prefix")

	// ErrUnregistered is returned when a type name has no registered prefix.
	ErrUnregistered = errors.New("amino: type not registered")
)

// DecodeError reports a malformed binary message.
type DecodeError struct {
	Reason string
	Err    error
}

// NewDecodeError creates a DecodeError with the given reason.
func NewDecodeError(reason string) *DecodeError {
	return &DecodeError{Reason: reason}
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("amino: decode: %s: %v", e.Reason, e.Err)
	}
	return "amino: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError reports a message that could not be encoded.
type EncodeError struct {
	Reason string
	Err    error
}

// NewEncodeError creates an EncodeError with the given reason.
func NewEncodeError(reason string) *EncodeError {
	return &EncodeError{Reason: reason}
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("amino: encode: %s: %v", e.Reason, e.Err)
	}
	return "amino: encode: " + e.Reason
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
