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
	"github.com/jeremyhahn/go-kms/pkg/types"
)

// Response is a message sent back to the validator.
type Response interface {
	// Name returns the registered amino name.
	Name() string
	// MarshalAmino encodes the response body.
	MarshalAmino() []byte

	isResponse()
}

// SignedResponse is the response to a SignableRequest.
type SignedResponse interface {
	Response

	// SetError replaces the signed message outcome with err and clears any
	// signature.
	SetError(err *types.RemoteSignerError)
	// RemoteError returns the error carried by the response, if any.
	RemoteError() *types.RemoteSignerError
}

// SignedVoteResponse carries a signed vote or an error.
type SignedVoteResponse struct {
	Vote *types.Vote
	Err  *types.RemoteSignerError
}

func (*SignedVoteResponse) isResponse() {}

// Name returns the registered amino name.
func (*SignedVoteResponse) Name() string { return SignedVoteResponseName }

// MarshalAmino encodes the response body.
func (r *SignedVoteResponse) MarshalAmino() []byte {
	var e amino.Encoder
	if r.Vote != nil {
		e.PutMessage(1, r.Vote.MarshalAmino())
	}
	if r.Err != nil {
		e.PutMessage(2, r.Err.MarshalAmino())
	}
	return e.Encoded()
}

// UnmarshalAmino decodes the response body.
func (r *SignedVoteResponse) UnmarshalAmino(b []byte) error {
	return decodePair(b, func(body []byte) error {
		r.Vote = &types.Vote{}
		return r.Vote.UnmarshalAmino(body)
	}, &r.Err)
}

// SetError records err and clears the vote signature.
func (r *SignedVoteResponse) SetError(err *types.RemoteSignerError) {
	r.Err = err
	if r.Vote != nil {
		r.Vote.Signature = nil
	}
}

// RemoteError returns the carried error.
func (r *SignedVoteResponse) RemoteError() *types.RemoteSignerError { return r.Err }

// SignedProposalResponse carries a signed proposal or an error.
type SignedProposalResponse struct {
	Proposal *types.Proposal
	Err      *types.RemoteSignerError
}

func (*SignedProposalResponse) isResponse() {}

// Name returns the registered amino name.
func (*SignedProposalResponse) Name() string { return SignedProposalResponseName }

// MarshalAmino encodes the response body.
func (r *SignedProposalResponse) MarshalAmino() []byte {
	var e amino.Encoder
	if r.Proposal != nil {
		e.PutMessage(1, r.Proposal.MarshalAmino())
	}
	if r.Err != nil {
		e.PutMessage(2, r.Err.MarshalAmino())
	}
	return e.Encoded()
}

// UnmarshalAmino decodes the response body.
func (r *SignedProposalResponse) UnmarshalAmino(b []byte) error {
	return decodePair(b, func(body []byte) error {
		r.Proposal = &types.Proposal{}
		return r.Proposal.UnmarshalAmino(body)
	}, &r.Err)
}

// SetError records err and clears the proposal signature.
func (r *SignedProposalResponse) SetError(err *types.RemoteSignerError) {
	r.Err = err
	if r.Proposal != nil {
		r.Proposal.Signature = nil
	}
}

// RemoteError returns the carried error.
func (r *SignedProposalResponse) RemoteError() *types.RemoteSignerError { return r.Err }

// PubKeyResponse carries the consensus public key.
type PubKeyResponse struct {
	PubKeyEd25519 ed25519.PublicKey
	Err           *types.RemoteSignerError
}

func (*PubKeyResponse) isResponse() {}

// Name returns the registered amino name.
func (*PubKeyResponse) Name() string { return PubKeyResponseName }

// MarshalAmino encodes the response body.
func (r *PubKeyResponse) MarshalAmino() []byte {
	var e amino.Encoder
	e.PutBytes(1, r.PubKeyEd25519)
	if r.Err != nil {
		e.PutMessage(2, r.Err.MarshalAmino())
	}
	return e.Encoded()
}

// UnmarshalAmino decodes the response body.
func (r *PubKeyResponse) UnmarshalAmino(b []byte) error {
	fr := amino.NewFieldReader(b)
	for {
		f, ok, err := fr.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			var key []byte
			if key, err = f.Bytes(); err == nil {
				r.PubKeyEd25519 = ed25519.PublicKey(key)
			}
		case 2:
			err = decodeRemoteError(f, &r.Err)
		}
		if err != nil {
			return err
		}
	}
}

// PingResponse echoes the payload of a PingRequest.
type PingResponse struct {
	Payload []byte
}

func (*PingResponse) isResponse() {}

// Name returns the registered amino name.
func (*PingResponse) Name() string { return PingResponseName }

// MarshalAmino returns the payload.
func (r *PingResponse) MarshalAmino() []byte { return r.Payload }

func decodePair(b []byte, msg func(body []byte) error, errp **types.RemoteSignerError) error {
	fr := amino.NewFieldReader(b)
	for {
		f, ok, err := fr.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			var body []byte
			if body, err = f.Message(); err == nil {
				err = msg(body)
			}
		case 2:
			err = decodeRemoteError(f, errp)
		}
		if err != nil {
			return err
		}
	}
}

func decodeRemoteError(f amino.Field, errp **types.RemoteSignerError) error {
	body, err := f.Message()
	if err != nil {
		return err
	}
	*errp = &types.RemoteSignerError{}
	return (*errp).UnmarshalAmino(body)
}

// DecodeResponse identifies the type of frame and decodes its body.
func DecodeResponse(f *Frame) (Response, error) {
	body := f.Body()
	var resp interface {
		Response
		UnmarshalAmino([]byte) error
	}
	switch f.Prefix {
	case signedVotePrefix:
		resp = &SignedVoteResponse{}
	case signedProposalPrefix:
		resp = &SignedProposalResponse{}
	case pubKeyResponsePrefix:
		resp = &PubKeyResponse{}
	case pingResponsePrefix:
		return &PingResponse{Payload: append([]byte(nil), body...)}, nil
	default:
		if name, ok := Registry.Name(f.Prefix); ok {
			return nil, fmt.Errorf("%w: %w: %s is not a response", ErrUnknownMessage, ErrUnexpectedMessage, name)
		}
		return nil, fmt.Errorf("%w: prefix %s", ErrUnknownMessage, f.Prefix)
	}
	if err := resp.UnmarshalAmino(body); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadResponse reads one frame from r and decodes it as a response.
func ReadResponse(r io.Reader) (Response, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(f)
}

// WriteResponse encodes resp as a single frame.
func WriteResponse(w io.Writer, resp Response) error {
	p, err := Registry.Prefix(resp.Name())
	if err != nil {
		return err
	}
	return writeFrame(w, p, resp.MarshalAmino())
}
