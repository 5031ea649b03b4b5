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

// Package account derives validator account ids from public keys.
package account

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/jeremyhahn/go-kms/pkg/types"
)

// Size is the length of an account id in bytes.
const Size = 20

// ID is the truncated SHA-256 digest of a public key.
type ID [Size]byte

// FromPublicKey digests raw public key bytes.
func FromPublicKey(pub []byte) ID {
	digest := sha256.Sum256(pub)
	var id ID
	copy(id[:], digest[:Size])
	return id
}

// FromSecp256k1 digests the compressed encoding of a secp256k1 key.
func FromSecp256k1(pub *btcec.PublicKey) ID {
	return FromPublicKey(pub.SerializeCompressed())
}

// FromHexPublicKey decodes a hex public key and derives its id. Keys that
// parse as secp256k1 points, compressed or not, are digested in compressed
// form; anything else is digested as given.
func FromHexPublicKey(s string) (ID, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return ID{}, types.NewError(types.ErrorParse, "public key: %v", err)
	}
	if len(raw) == 0 {
		return ID{}, types.NewError(types.ErrorLength, "empty public key")
	}
	if len(raw) == secp256k1.PubKeyBytesLenCompressed || len(raw) == secp256k1.PubKeyBytesLenUncompressed {
		if pub, err := btcec.ParsePubKey(raw); err == nil {
			return FromSecp256k1(pub), nil
		}
	}
	return FromPublicKey(raw), nil
}

// Parse decodes a 40-character hex id in either case.
func Parse(s string) (ID, error) {
	if len(s) != hex.EncodedLen(Size) {
		return ID{}, types.NewError(types.ErrorParse, "account id has %d characters, want %d", len(s), hex.EncodedLen(Size))
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, types.NewError(types.ErrorParse, "account id: %v", err)
	}
	return id, nil
}

// Bytes returns a copy of the id.
func (id ID) Bytes() []byte {
	return append([]byte(nil), id[:]...)
}

// String returns the id as upper-case hex.
func (id ID) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// GoString formats the id for %#v.
func (id ID) GoString() string {
	return fmt.Sprintf("account.ID(%s)", id)
}

// Equal compares two ids in constant time.
func (id ID) Equal(other ID) bool {
	return subtle.ConstantTimeCompare(id[:], other[:]) == 1
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
