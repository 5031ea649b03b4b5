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
	"crypto/ed25519"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-kms/pkg/amino"
	"github.com/jeremyhahn/go-kms/pkg/chainstate"
	"github.com/jeremyhahn/go-kms/pkg/types"
)

// Request is a message sent by the validator. The set of implementations is
// closed: *SignVoteRequest, *SignProposalRequest, *PubKeyRequest and
// *PingRequest.
type Request interface {
	// Name returns the registered amino name.
	Name() string
	// MarshalAmino encodes the request body.
	MarshalAmino() []byte

	isRequest()
}

// SignableRequest is a request carrying a consensus message to sign.
type SignableRequest interface {
	Request

	// ValidateBasic performs stateless checks on the consensus message.
	ValidateBasic() error
	// SignBytes returns the bytes to sign for chainID.
	SignBytes(chainID string) ([]byte, error)
	// ConsensusState returns the position of the message for double sign
	// checks.
	ConsensusState() chainstate.ConsensusState
	// MsgType returns the consensus message type.
	MsgType() types.SignedMsgType
	// SetSignature stores the signature on the consensus message.
	SetSignature(sig []byte)
	// BuildResponse moves the consensus message into its response. The
	// request must not be used afterwards.
	BuildResponse() SignedResponse
}

// SignVoteRequest asks for a vote signature.
type SignVoteRequest struct {
	Vote *types.Vote
}

func (*SignVoteRequest) isRequest() {}

// Name returns the registered amino name.
func (*SignVoteRequest) Name() string { return SignVoteRequestName }

// MarshalAmino encodes the request body.
func (r *SignVoteRequest) MarshalAmino() []byte {
	var e amino.Encoder
	if r.Vote != nil {
		e.PutMessage(1, r.Vote.MarshalAmino())
	}
	return e.Encoded()
}

// UnmarshalAmino decodes the request body.
func (r *SignVoteRequest) UnmarshalAmino(b []byte) error {
	return decodeSingle(b, func(body []byte) error {
		r.Vote = &types.Vote{}
		return r.Vote.UnmarshalAmino(body)
	})
}

// ValidateBasic checks the vote.
func (r *SignVoteRequest) ValidateBasic() error {
	if r.Vote == nil {
		return &types.ValidationError{Field: "vote", Reason: "missing"}
	}
	return r.Vote.ValidateBasic()
}

// SignBytes returns the canonical vote sign bytes.
func (r *SignVoteRequest) SignBytes(chainID string) ([]byte, error) {
	if r.Vote == nil {
		return nil, &types.ValidationError{Field: "vote", Reason: "missing"}
	}
	return r.Vote.SignBytes(chainID)
}

// ConsensusState returns the height, round, step and block of the vote.
func (r *SignVoteRequest) ConsensusState() chainstate.ConsensusState {
	step := chainstate.StepPrevote
	if r.Vote.Type == types.PrecommitType {
		step = chainstate.StepPrecommit
	}
	return chainstate.ConsensusState{
		Height:  r.Vote.Height,
		Round:   r.Vote.Round,
		Step:    step,
		BlockID: r.Vote.BlockID.String(),
	}
}

// MsgType returns the vote type.
func (r *SignVoteRequest) MsgType() types.SignedMsgType {
	if r.Vote == nil {
		return 0
	}
	return r.Vote.Type
}

// SetSignature stores sig on the vote.
func (r *SignVoteRequest) SetSignature(sig []byte) {
	r.Vote.Signature = sig
}

// BuildResponse echoes the vote in a SignedVoteResponse.
func (r *SignVoteRequest) BuildResponse() SignedResponse {
	resp := &SignedVoteResponse{Vote: r.Vote}
	r.Vote = nil
	return resp
}

// SignProposalRequest asks for a proposal signature.
type SignProposalRequest struct {
	Proposal *types.Proposal
}

func (*SignProposalRequest) isRequest() {}

// Name returns the registered amino name.
func (*SignProposalRequest) Name() string { return SignProposalRequestName }

// MarshalAmino encodes the request body.
func (r *SignProposalRequest) MarshalAmino() []byte {
	var e amino.Encoder
	if r.Proposal != nil {
		e.PutMessage(1, r.Proposal.MarshalAmino())
	}
	return e.Encoded()
}

// UnmarshalAmino decodes the request body.
func (r *SignProposalRequest) UnmarshalAmino(b []byte) error {
	return decodeSingle(b, func(body []byte) error {
		r.Proposal = &types.Proposal{}
		return r.Proposal.UnmarshalAmino(body)
	})
}

// ValidateBasic checks the proposal.
func (r *SignProposalRequest) ValidateBasic() error {
	if r.Proposal == nil {
		return &types.ValidationError{Field: "proposal", Reason: "missing"}
	}
	return r.Proposal.ValidateBasic()
}

// SignBytes returns the canonical proposal sign bytes.
func (r *SignProposalRequest) SignBytes(chainID string) ([]byte, error) {
	if r.Proposal == nil {
		return nil, &types.ValidationError{Field: "proposal", Reason: "missing"}
	}
	return r.Proposal.SignBytes(chainID)
}

// ConsensusState returns the height, round and block of the proposal.
func (r *SignProposalRequest) ConsensusState() chainstate.ConsensusState {
	return chainstate.ConsensusState{
		Height:  r.Proposal.Height,
		Round:   r.Proposal.Round,
		Step:    chainstate.StepPropose,
		BlockID: r.Proposal.BlockID.String(),
	}
}

// MsgType returns ProposalType.
func (r *SignProposalRequest) MsgType() types.SignedMsgType {
	return types.ProposalType
}

// SetSignature stores sig on the proposal.
func (r *SignProposalRequest) SetSignature(sig []byte) {
	r.Proposal.Signature = sig
}

// BuildResponse echoes the proposal in a SignedProposalResponse.
func (r *SignProposalRequest) BuildResponse() SignedResponse {
	resp := &SignedProposalResponse{Proposal: r.Proposal}
	r.Proposal = nil
	return resp
}

// PubKeyRequest asks for the validator's consensus public key.
type PubKeyRequest struct{}

func (*PubKeyRequest) isRequest() {}

// Name returns the registered amino name.
func (*PubKeyRequest) Name() string { return PubKeyRequestName }

// MarshalAmino encodes the empty request body.
func (*PubKeyRequest) MarshalAmino() []byte { return nil }

// UnmarshalAmino checks that the body is well formed. Its fields are
// ignored.
func (*PubKeyRequest) UnmarshalAmino(b []byte) error {
	r := amino.NewFieldReader(b)
	for {
		_, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
	}
}

// Respond builds the response carrying pub.
func (*PubKeyRequest) Respond(pub ed25519.PublicKey) *PubKeyResponse {
	return &PubKeyResponse{PubKeyEd25519: pub}
}

// PingRequest keeps the connection alive. Its body is opaque and echoed in
// the response.
type PingRequest struct {
	Payload []byte
}

func (*PingRequest) isRequest() {}

// Name returns the registered amino name.
func (*PingRequest) Name() string { return PingRequestName }

// MarshalAmino returns the payload.
func (r *PingRequest) MarshalAmino() []byte { return r.Payload }

// BuildResponse moves the payload into a PingResponse.
func (r *PingRequest) BuildResponse() *PingResponse {
	resp := &PingResponse{Payload: r.Payload}
	r.Payload = nil
	return resp
}

// decodeSingle decodes a body whose only field of interest is the embedded
// message 1.
func decodeSingle(b []byte, fn func(body []byte) error) error {
	r := amino.NewFieldReader(b)
	for {
		f, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		if f.Num != 1 {
			continue
		}
		body, err := f.Message()
		if err != nil {
			return err
		}
		if err := fn(body); err != nil {
			return err
		}
	}
}

// DecodeRequest identifies the type of frame and decodes its body.
func DecodeRequest(f *Frame) (Request, error) {
	body := f.Body()
	switch f.Prefix {
	case signVotePrefix:
		req := &SignVoteRequest{}
		if err := req.UnmarshalAmino(body); err != nil {
			return nil, err
		}
		return req, nil
	case signProposalPrefix:
		req := &SignProposalRequest{}
		if err := req.UnmarshalAmino(body); err != nil {
			return nil, err
		}
		return req, nil
	case pubKeyPrefix:
		req := &PubKeyRequest{}
		if err := req.UnmarshalAmino(body); err != nil {
			return nil, err
		}
		return req, nil
	case pingPrefix:
		return &PingRequest{Payload: append([]byte(nil), body...)}, nil
	}

	if name, ok := Registry.Name(f.Prefix); ok {
		return nil, fmt.Errorf("%w: %w: %s is not a request", ErrUnknownMessage, ErrUnexpectedMessage, name)
	}
	return nil, fmt.Errorf("%w: prefix %s", ErrUnknownMessage, f.Prefix)
}

// ReadRequest reads one frame from r and decodes it as a request.
func ReadRequest(r io.Reader) (Request, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeRequest(f)
}

// WriteRequest encodes req as a single frame.
func WriteRequest(w io.Writer, req Request) error {
	p, err := Registry.Prefix(req.Name())
	if err != nil {
		return err
	}
	return writeFrame(w, p, req.MarshalAmino())
}
