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

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// HashSize is the size of block and part set hashes.
const HashSize = 32

// PartSetHeader identifies the parts of a block.
type PartSetHeader struct {
	Total int64
	Hash  []byte
}

// BlockID identifies a block by hash and part set header.
type BlockID struct {
	Hash        []byte
	PartsHeader *PartSetHeader
}

// IsZero reports whether the block id is absent, as in a nil vote.
func (id *BlockID) IsZero() bool {
	if id == nil {
		return true
	}
	return len(id.Hash) == 0 && (id.PartsHeader == nil || (id.PartsHeader.Total == 0 && len(id.PartsHeader.Hash) == 0))
}

// IsComplete reports whether every field of the block id is populated.
func (id *BlockID) IsComplete() bool {
	return id != nil && len(id.Hash) == HashSize &&
		id.PartsHeader != nil && id.PartsHeader.Total > 0 && len(id.PartsHeader.Hash) == HashSize
}

// Equal reports whether two block ids are identical. Two zero ids are equal.
func (id *BlockID) Equal(other *BlockID) bool {
	if id.IsZero() || other.IsZero() {
		return id.IsZero() && other.IsZero()
	}
	if !bytes.Equal(id.Hash, other.Hash) {
		return false
	}
	a, b := id.PartsHeader, other.PartsHeader
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Total == b.Total && bytes.Equal(a.Hash, b.Hash)
}

// String returns the block hash as upper-case hex, or an empty string for a
// zero block id.
func (id *BlockID) String() string {
	if id.IsZero() {
		return ""
	}
	return strings.ToUpper(hex.EncodeToString(id.Hash))
}

// ValidateBasic checks hash sizes and counts.
func (id *BlockID) ValidateBasic() error {
	if id == nil {
		return nil
	}
	if len(id.Hash) != 0 && len(id.Hash) != HashSize {
		return newValidationError("block_id", "hash is %d bytes, want %d", len(id.Hash), HashSize)
	}
	if ph := id.PartsHeader; ph != nil {
		if ph.Total < 0 {
			return newValidationError("block_id", "negative part set total %d", ph.Total)
		}
		if len(ph.Hash) != 0 && len(ph.Hash) != HashSize {
			return newValidationError("block_id", "part set hash is %d bytes, want %d", len(ph.Hash), HashSize)
		}
	}
	return nil
}

// MarshalAmino encodes the block id body.
func (id *BlockID) MarshalAmino() []byte {
	var e amino.Encoder
	e.PutBytes(1, id.Hash)
	if id.PartsHeader != nil {
		var ph amino.Encoder
		ph.PutVarint(1, id.PartsHeader.Total)
		ph.PutBytes(2, id.PartsHeader.Hash)
		e.PutMessage(2, ph.Encoded())
	}
	return e.Encoded()
}

// UnmarshalAmino decodes a block id body.
func (id *BlockID) UnmarshalAmino(b []byte) error {
	r := amino.NewFieldReader(b)
	for {
		f, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			id.Hash, err = f.Bytes()
		case 2:
			var body []byte
			if body, err = f.Message(); err == nil {
				id.PartsHeader = &PartSetHeader{}
				err = id.PartsHeader.unmarshalAmino(body)
			}
		}
		if err != nil {
			return err
		}
	}
}

func (ph *PartSetHeader) unmarshalAmino(b []byte) error {
	r := amino.NewFieldReader(b)
	for {
		f, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			ph.Total, err = f.Int64()
		case 2:
			ph.Hash, err = f.Bytes()
		}
		if err != nil {
			return err
		}
	}
}

// canonical encodes the block id as it appears in sign bytes. The part set
// header lists its hash before its total.
func (id *BlockID) canonical() []byte {
	var e amino.Encoder
	e.PutBytes(1, id.Hash)
	if id.PartsHeader != nil {
		var ph amino.Encoder
		ph.PutBytes(1, id.PartsHeader.Hash)
		ph.PutVarint(2, id.PartsHeader.Total)
		e.PutMessage(2, ph.Encoded())
	}
	return e.Encoded()
}
