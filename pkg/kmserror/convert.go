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
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"os"
	"syscall"

	"github.com/jeremyhahn/go-kms/pkg/amino"
	"github.com/jeremyhahn/go-kms/pkg/chainstate"
	"github.com/jeremyhahn/go-kms/pkg/signing"
	"github.com/jeremyhahn/go-kms/pkg/types"
)

// From classifies err. The second result is false when err is nil or belongs
// to no known failure domain; such errors must be classified explicitly with
// Wrap at the failure site.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}

	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr, true
	}

	var kind Kind
	if errors.As(err, &kind) {
		if err == error(kind) {
			return &Error{Kind: kind}, true
		}
		return &Error{Kind: kind, Err: err}, true
	}

	var stateErr *chainstate.StateError
	if errors.As(err, &stateErr) {
		return &Error{Kind: DoubleSign, Err: err}, true
	}

	var hookErr *chainstate.HookError
	if errors.As(err, &hookErr) {
		return &Error{Kind: HookError, Err: err}, true
	}

	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return &Error{Kind: InvalidMessageError, Err: err}, true
	}

	var typesErr *types.Error
	if errors.As(err, &typesErr) {
		if kind, ok := fromTypesKind(typesErr.Kind); ok {
			return &Error{Kind: kind, Err: err}, true
		}
		return nil, false
	}

	var signingErr *signing.Error
	if errors.As(err, &signingErr) {
		if kind, ok := fromSigningKind(signingErr.Kind); ok {
			return &Error{Kind: kind, Err: err}, true
		}
		return nil, false
	}

	var decodeErr *amino.DecodeError
	var encodeErr *amino.EncodeError
	if errors.As(err, &decodeErr) || errors.As(err, &encodeErr) {
		return &Error{Kind: ProtocolError, Err: err}, true
	}

	if isSerialization(err) {
		return &Error{Kind: SerializationError, Err: err}, true
	}

	if isIO(err) {
		return &Error{Kind: IoError, Err: err}, true
	}

	return nil, false
}

func fromTypesKind(k types.ErrorKind) (Kind, bool) {
	switch k {
	case types.ErrorCrypto:
		return CryptoError, true
	case types.ErrorInvalidKey:
		return InvalidKey, true
	case types.ErrorIo:
		return IoError, true
	case types.ErrorProtocol:
		return ProtocolError, true
	case types.ErrorLength, types.ErrorParse, types.ErrorOutOfRange:
		return ParseError, true
	case types.ErrorSignatureInvalid:
		return VerificationError, true
	default:
		return 0, false
	}
}

func fromSigningKind(k signing.ErrorKind) (Kind, bool) {
	switch k {
	case signing.ErrorIo:
		return IoError, true
	case signing.ErrorKeyInvalid:
		return InvalidKey, true
	case signing.ErrorParse:
		return ParseError, true
	case signing.ErrorProvider:
		return SigningError, true
	case signing.ErrorSignatureInvalid:
		return VerificationError, true
	case signing.ErrorAccess:
		return AccessError, true
	default:
		return 0, false
	}
}

func isSerialization(err error) bool {
	var (
		syntaxErr      *json.SyntaxError
		typeErr        *json.UnmarshalTypeError
		marshalerErr   *json.MarshalerError
		unsupportedTyp *json.UnsupportedTypeError
		unsupportedVal *json.UnsupportedValueError
	)
	return errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr) ||
		errors.As(err, &marshalerErr) ||
		errors.As(err, &unsupportedTyp) ||
		errors.As(err, &unsupportedVal)
}

func isIO(err error) bool {
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var (
		netErr  net.Error
		pathErr *fs.PathError
		linkErr *os.LinkError
		sysErr  *os.SyscallError
		errno   syscall.Errno
	)
	return errors.As(err, &netErr) ||
		errors.As(err, &pathErr) ||
		errors.As(err, &linkErr) ||
		errors.As(err, &sysErr) ||
		errors.As(err, &errno)
}
