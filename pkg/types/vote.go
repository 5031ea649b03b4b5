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
	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// SignedMsgType is the type byte of a signed consensus message.
type SignedMsgType uint32

const (
	// PrevoteType is a prevote.
	PrevoteType SignedMsgType = 0x01
	// PrecommitType is a precommit.
	PrecommitType SignedMsgType = 0x02
	// ProposalType is a block proposal.
	ProposalType SignedMsgType = 0x20
)

// String returns the lower-case message type name.
func (t SignedMsgType) String() string {
	switch t {
	case PrevoteType:
		return "prevote"
	case PrecommitType:
		return "precommit"
	case ProposalType:
		return "proposal"
	default:
		return "unknown"
	}
}

// AddressSize is the size of a validator address.
const AddressSize = 20

// Vote is a prevote or precommit for a block.
type Vote struct {
	Type             SignedMsgType
	Height           int64
	Round            int64
	Timestamp        *Timestamp
	BlockID          *BlockID
	ValidatorAddress []byte
	ValidatorIndex   int64
	Signature        []byte
}

// ValidateBasic performs stateless checks on the vote.
func (v *Vote) ValidateBasic() error {
	if v.Type != PrevoteType && v.Type != PrecommitType {
		return newValidationError("type", "unexpected vote type 0x%02x", uint32(v.Type))
	}
	if v.Height < 0 {
		return newValidationError("height", "negative height %d", v.Height)
	}
	if v.Round < 0 {
		return newValidationError("round", "negative round %d", v.Round)
	}
	if v.ValidatorIndex < 0 {
		return newValidationError("validator_index", "negative index %d", v.ValidatorIndex)
	}
	if len(v.ValidatorAddress) != AddressSize {
		return newValidationError("validator_address", "address is %d bytes, want %d", len(v.ValidatorAddress), AddressSize)
	}
	return v.BlockID.ValidateBasic()
}

// SignBytes returns the length-prefixed canonical encoding of the vote for
// the given chain.
func (v *Vote) SignBytes(chainID string) ([]byte, error) {
	if _, err := ParseChainID(chainID); err != nil {
		return nil, err
	}

	var e amino.Encoder
	e.PutUvarint(1, uint64(v.Type))
	e.PutSfixed64(2, v.Height)
	e.PutSfixed64(3, v.Round)
	if !v.BlockID.IsZero() {
		e.PutMessage(4, v.BlockID.canonical())
	}
	if v.Timestamp != nil {
		e.PutMessage(5, v.Timestamp.MarshalAmino())
	}
	e.PutString(6, chainID)
	return amino.LengthDelimited(e.Encoded()), nil
}

// MarshalAmino encodes the vote body.
func (v *Vote) MarshalAmino() []byte {
	var e amino.Encoder
	e.PutUvarint(1, uint64(v.Type))
	e.PutVarint(2, v.Height)
	e.PutVarint(3, v.Round)
	if v.Timestamp != nil {
		e.PutMessage(4, v.Timestamp.MarshalAmino())
	}
	if v.BlockID != nil {
		e.PutMessage(5, v.BlockID.MarshalAmino())
	}
	e.PutBytes(6, v.ValidatorAddress)
	e.PutVarint(7, v.ValidatorIndex)
	e.PutBytes(8, v.Signature)
	return e.Encoded()
}

// UnmarshalAmino decodes a vote body.
func (v *Vote) UnmarshalAmino(b []byte) error {
	r := amino.NewFieldReader(b)
	for {
		f, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			var t uint32
			t, err = f.Uint32()
			v.Type = SignedMsgType(t)
		case 2:
			v.Height, err = f.Int64()
		case 3:
			v.Round, err = f.Int64()
		case 4:
			var body []byte
			if body, err = f.Message(); err == nil {
				v.Timestamp = &Timestamp{}
				err = v.Timestamp.UnmarshalAmino(body)
			}
		case 5:
			var body []byte
			if body, err = f.Message(); err == nil {
				v.BlockID = &BlockID{}
				err = v.BlockID.UnmarshalAmino(body)
			}
		case 6:
			v.ValidatorAddress, err = f.Bytes()
		case 7:
			v.ValidatorIndex, err = f.Int64()
		case 8:
			v.Signature, err = f.Bytes()
		}
		if err != nil {
			return err
		}
	}
}
