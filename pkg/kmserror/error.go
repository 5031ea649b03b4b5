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

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a classified failure. Msg describes the failure site and Err holds
// the underlying cause, if any.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind. It returns nil if err is nil. An err that is
// already an *Error keeps its own kind.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr
	}
	return &Error{Kind: kind, Err: err}
}

// Wrapf is like Wrap but adds a message describing the failure site.
func Wrapf(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	e := Wrap(kind, err)
	if e.Err == err {
		e.Msg = fmt.Sprintf(format, args...)
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Causes returns the messages of the cause chain below this error, outermost
// first.
func (e *Error) Causes() []string {
	var out []string
	for err := e.Err; err != nil; err = errors.Unwrap(err) {
		out = append(out, err.Error())
	}
	return out
}

// KindOf returns the kind of err and whether it could be classified.
func KindOf(err error) (Kind, bool) {
	e, ok := From(err)
	if !ok {
		return 0, false
	}
	return e.Kind, true
}
