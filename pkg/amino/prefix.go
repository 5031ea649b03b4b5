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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// PrefixLen is the size of a type prefix in bytes.
	PrefixLen = 4

	// disambLen is the number of surviving digest bytes skipped before the prefix.
	disambLen = 3
)

// Prefix identifies a registered type on the wire.
type Prefix [PrefixLen]byte

// String returns the prefix as upper-case hex.
func (p Prefix) String() string {
	return strings.ToUpper(hex.EncodeToString(p[:]))
}

// IsZero reports whether p is the zero prefix. No registered type has a zero
// byte in its prefix, so the zero prefix never matches.
func (p Prefix) IsZero() bool {
	return p == Prefix{}
}

// ComputePrefix derives the type prefix for the given registered name.
func ComputePrefix(name string) (Prefix, error) {
	digest := sha256.Sum256([]byte(name))
	p, err := prefixFromDigest(digest[:])
	if err != nil {
		return Prefix{}, fmt.Errorf("%w: %q", err, name)
	}
	return p, nil
}

// prefixFromDigest filters zero bytes, skips the disambiguation bytes,
// filters zero bytes a second time and takes the next PrefixLen bytes.
func prefixFromDigest(digest []byte) (Prefix, error) {
	survivors := nonZero(digest)
	if len(survivors) < disambLen {
		return Prefix{}, ErrPrefixTooShort
	}
	survivors = nonZero(survivors[disambLen:])
	if len(survivors) < PrefixLen {
		return Prefix{}, ErrPrefixTooShort
	}

	var p Prefix
	copy(p[:], survivors[:PrefixLen])
	return p, nil
}

func nonZero(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c != 0x00 {
			out = append(out, c)
		}
	}
	return out
}
