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

package kmserror

import "fmt"

const unknownPanicCause = "unknown cause"

// FromPanic converts a value recovered from a panic into a PanicError. The
// message is kept when the value is a string or an error.
func FromPanic(v any) *Error {
	switch p := v.(type) {
	case string:
		return &Error{Kind: PanicError, Msg: p}
	case error:
		return &Error{Kind: PanicError, Err: p}
	case fmt.Stringer:
		return &Error{Kind: PanicError, Msg: p.String()}
	default:
		return &Error{Kind: PanicError, Msg: unknownPanicCause}
	}
}

// Recover stores a PanicError in *errp if the calling goroutine is
// panicking. It must be called directly by a deferred statement:
//
//	func handle() (err error) {
//		defer kmserror.Recover(&err)
//		...
//	}
func Recover(errp *error) {
	if r := recover(); r != nil {
		*errp = FromPanic(r)
	}
}
