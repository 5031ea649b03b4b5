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

// Kind is a failure class. Kind implements error so it can be used as an
// errors.Is target.
type Kind int32

const (
	// ConfigError is an invalid or unreadable configuration.
	ConfigError Kind = iota + 1
	// PanicError is a recovered runtime panic.
	PanicError
	// CryptoError is a failed cryptographic operation.
	CryptoError
	// HookError is a failed chain state hook command.
	HookError
	// InvalidKey is malformed key material.
	InvalidKey
	// InvalidMessageError is a consensus message that failed validation.
	InvalidMessageError
	// IoError is an input/output failure, including timeouts and closed
	// connections.
	IoError
	// ParseError is a value that could not be parsed.
	ParseError
	// ProtocolError is a malformed or unknown wire message.
	ProtocolError
	// SerializationError is a structured data encoding failure.
	SerializationError
	// SigningError is a signing backend failure.
	SigningError
	// VerificationError is a signature that did not verify.
	VerificationError
	// DoubleSign is an attempt to sign a message conflicting with one
	// already signed.
	DoubleSign
	// ExceedMaxHeight is a request to sign above the configured stop height.
	ExceedMaxHeight
	// AccessError is a hardware token login or permission failure.
	AccessError
)

// Kinds lists every kind in code order.
var Kinds = []Kind{
	ConfigError, PanicError, CryptoError, HookError, InvalidKey,
	InvalidMessageError, IoError, ParseError, ProtocolError, SerializationError,
	SigningError, VerificationError, DoubleSign, ExceedMaxHeight, AccessError,
}

// String returns the display text of the kind.
func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "config error"
	case PanicError:
		return "internal crash"
	case CryptoError:
		return "cryptographic error"
	case HookError:
		return "subcommand hook failed"
	case InvalidKey:
		return "invalid key"
	case InvalidMessageError:
		return "invalid consensus message"
	case IoError:
		return "I/O error"
	case ParseError:
		return "parse error"
	case ProtocolError:
		return "protocol error"
	case SerializationError:
		return "serialization error"
	case SigningError:
		return "signing operation failed"
	case VerificationError:
		return "verification failed"
	case DoubleSign:
		return "attempted double sign"
	case ExceedMaxHeight:
		return "requested signature above stop height"
	case AccessError:
		return "access denied"
	default:
		return "unknown error"
	}
}

// Label returns a stable snake_case name for metrics and structured logs.
func (k Kind) Label() string {
	switch k {
	case ConfigError:
		return "config"
	case PanicError:
		return "panic"
	case CryptoError:
		return "crypto"
	case HookError:
		return "hook"
	case InvalidKey:
		return "invalid_key"
	case InvalidMessageError:
		return "invalid_message"
	case IoError:
		return "io"
	case ParseError:
		return "parse"
	case ProtocolError:
		return "protocol"
	case SerializationError:
		return "serialization"
	case SigningError:
		return "signing"
	case VerificationError:
		return "verification"
	case DoubleSign:
		return "double_sign"
	case ExceedMaxHeight:
		return "exceed_max_height"
	case AccessError:
		return "access"
	default:
		return "unknown"
	}
}

func (k Kind) Error() string {
	return k.String()
}

// Code is the numeric form of the kind carried in remote signer errors.
func (k Kind) Code() int32 {
	return int32(k)
}

// IsFatal reports whether an error of this kind must stop the process
// instead of being retried.
func (k Kind) IsFatal() bool {
	switch k {
	case DoubleSign, ExceedMaxHeight, ConfigError:
		return true
	default:
		return false
	}
}
