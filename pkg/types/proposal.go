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

// Proposal is a block proposal for a height and round.
type Proposal struct {
	Type      SignedMsgType
	Height    int64
	Round     int64
	POLRound  int64
	BlockID   *BlockID
	Timestamp *Timestamp
	Signature []byte
}

// ValidateBasic performs stateless checks on the proposal.
func (p *Proposal) ValidateBasic() error {
	if p.Type != ProposalType {
		return newValidationError("type", "unexpected proposal type 0x%02x", uint32(p.Type))
	}
	if p.Height < 0 {
		return newValidationError("height", "negative height %d", p.Height)
	}
	if p.Round < 0 {
		return newValidationError("round", "negative round %d", p.Round)
	}
	if p.POLRound < -1 {
		return newValidationError("pol_round", "pol round %d below -1", p.POLRound)
	}
	if p.POLRound >= 0 && p.POLRound >= p.Round {
		return newValidationError("pol_round", "pol round %d not below round %d", p.POLRound, p.Round)
	}
	if err := p.BlockID.ValidateBasic(); err != nil {
		return err
	}
	if !p.BlockID.IsComplete() {
		return newValidationError("block_id", "expected a complete block id")
	}
	return nil
}

// SignBytes returns the length-prefixed canonical encoding of the proposal
// for the given chain.
func (p *Proposal) SignBytes(chainID string) ([]byte, error) {
	if _, err := ParseChainID(chainID); err != nil {
		return nil, err
	}

	var e amino.Encoder
	e.PutUvarint(1, uint64(p.Type))
	e.PutSfixed64(2, p.Height)
	e.PutSfixed64(3, p.Round)
	e.PutSfixed64(4, p.POLRound)
	if !p.BlockID.IsZero() {
		e.PutMessage(5, p.BlockID.canonical())
	}
	if p.Timestamp != nil {
		e.PutMessage(6, p.Timestamp.MarshalAmino())
	}
	e.PutString(7, chainID)
	return amino.LengthDelimited(e.Encoded()), nil
}

// MarshalAmino encodes the proposal body.
func (p *Proposal) MarshalAmino() []byte {
	var e amino.Encoder
	e.PutUvarint(1, uint64(p.Type))
	e.PutVarint(2, p.Height)
	e.PutVarint(3, p.Round)
	e.PutVarint(4, p.POLRound)
	if p.BlockID != nil {
		e.PutMessage(5, p.BlockID.MarshalAmino())
	}
	if p.Timestamp != nil {
		e.PutMessage(6, p.Timestamp.MarshalAmino())
	}
	e.PutBytes(7, p.Signature)
	return e.Encoded()
}

// UnmarshalAmino decodes a proposal body.
func (p *Proposal) UnmarshalAmino(b []byte) error {
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
			p.Type = SignedMsgType(t)
		case 2:
			p.Height, err = f.Int64()
		case 3:
			p.Round, err = f.Int64()
		case 4:
			p.POLRound, err = f.Int64()
		case 5:
			var body []byte
			if body, err = f.Message(); err == nil {
				p.BlockID = &BlockID{}
				err = p.BlockID.UnmarshalAmino(body)
			}
		case 6:
			var body []byte
			if body, err = f.Message(); err == nil {
				p.Timestamp = &Timestamp{}
				err = p.Timestamp.UnmarshalAmino(body)
			}
		case 7:
			p.Signature, err = f.Bytes()
		}
		if err != nil {
			return err
		}
	}
}
