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

package rpc

import (
	"fmt"
	"io"

	"github.com/jeremyhahn/go-kms/pkg/amino"
)

var (
	// ErrNotEnoughBytes is returned when a read yields fewer bytes than a
	// length field and type prefix need.
	ErrNotEnoughBytes = fmt.Errorf("rpc: did not read enough bytes to continue: %w", io.ErrUnexpectedEOF)

	// ErrShortRead is returned when the read ends before the declared frame
	// length.
	ErrShortRead = fmt.Errorf("rpc: frame shorter than its declared length: %w", io.ErrUnexpectedEOF)

	// ErrMessageTooLarge is returned for frames declaring more than
	// MaxMsgLen bytes.
	ErrMessageTooLarge = amino.NewDecodeError("rpc message too large")

	// ErrUnknownMessage is returned for frames whose type prefix matches no
	// known message.
	ErrUnknownMessage = amino.NewDecodeError("received unknown rpc message")

	// ErrUnexpectedMessage is returned alongside ErrUnknownMessage when a
	// registered message arrives in the wrong direction.
	ErrUnexpectedMessage = amino.NewDecodeError("unexpected rpc message")
)
