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

package chainstate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownChain indicates no state is registered for a chain
	ErrUnknownChain = errors.New("chainstate: unknown chain")

	// ErrHookOutput indicates the hook printed something other than the
	// expected JSON object
	ErrHookOutput = errors.New("chainstate: malformed hook output")
)

// StateErrorKind describes how a requested consensus state conflicts with the
// last signed one.
type StateErrorKind int

const (
	// HeightRegression is a request below the last signed height.
	HeightRegression StateErrorKind = iota + 1
	// RoundRegression is a request below the last signed round at the same
	// height.
	RoundRegression
	// StepRegression is a request below the last signed step at the same
	// height and round.
	StepRegression
	// ConflictingBlock is a request for a different block at the last signed
	// height, round and step.
	ConflictingBlock
)

func (k StateErrorKind) String() string {
	switch k {
	case HeightRegression:
		return "height regression"
	case RoundRegression:
		return "round regression"
	case StepRegression:
		return "step regression"
	case ConflictingBlock:
		return "double sign"
	default:
		return "unknown conflict"
	}
}

// StateError reports a request that would sign a message conflicting with
// one already signed. Every StateError is a double sign attempt.
type StateError struct {
	Kind      StateErrorKind
	ChainID   string
	Last      ConsensusState
	Requested ConsensusState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("chainstate: %s on %s: last signed %s, requested %s",
		e.Kind, e.ChainID, e.Last, e.Requested)
}

// HookError reports a failed state hook command.
type HookError struct {
	Cmd string
	Err error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("chainstate: hook %q: %v", e.Cmd, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
