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

package session

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-kms/pkg/chainstate"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/rpc"
	"github.com/jeremyhahn/go-kms/pkg/signing"
	"github.com/jeremyhahn/go-kms/pkg/storage/memory"
	"github.com/jeremyhahn/go-kms/pkg/types"
)

const testChain = "test-chain"

type harness struct {
	client   net.Conn
	done     chan error
	provider *signing.SignerProvider
	state    *chainstate.State
	cancel   context.CancelFunc
}

func newProvider(t *testing.T) *signing.SignerProvider {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	p, err := signing.NewSignerProvider(priv, nil)
	require.NoError(t, err)
	return p
}

func start(t *testing.T, cfg Config, provider signing.Provider) *harness {
	t.Helper()
	if cfg.ChainID == "" {
		cfg.ChainID = testChain
	}
	if cfg.Validator == "" {
		cfg.Validator = "pipe"
	}

	state, err := chainstate.Load(cfg.ChainID, memory.New())
	require.NoError(t, err)

	server, client := net.Pipe()
	s, err := New(cfg, server, provider, state, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{client: client, done: make(chan error, 1), state: state, cancel: cancel}
	if sp, ok := provider.(*signing.SignerProvider); ok {
		h.provider = sp
	}
	go func() { h.done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		client.Close()
	})
	return h
}

func (h *harness) roundTrip(t *testing.T, req rpc.Request) rpc.Response {
	t.Helper()
	require.NoError(t, rpc.WriteRequest(h.client, req))
	resp, err := rpc.ReadResponse(h.client)
	require.NoError(t, err)
	return resp
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		require.Error(t, err)
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func vote(height, round int64, typ types.SignedMsgType, hash byte) *types.Vote {
	v := &types.Vote{
		Type:             typ,
		Height:           height,
		Round:            round,
		Timestamp:        &types.Timestamp{Seconds: 1700000000},
		ValidatorAddress: bytes.Repeat([]byte{0x01}, types.AddressSize),
	}
	if hash != 0 {
		v.BlockID = &types.BlockID{
			Hash:        bytes.Repeat([]byte{hash}, types.HashSize),
			PartsHeader: &types.PartSetHeader{Total: 1, Hash: bytes.Repeat([]byte{hash}, types.HashSize)},
		}
	}
	return v
}

func proposal(height, round int64) *types.Proposal {
	return &types.Proposal{
		Type:     types.ProposalType,
		Height:   height,
		Round:    round,
		POLRound: -1,
		BlockID: &types.BlockID{
			Hash:        bytes.Repeat([]byte{0xAA}, types.HashSize),
			PartsHeader: &types.PartSetHeader{Total: 2, Hash: bytes.Repeat([]byte{0xBB}, types.HashSize)},
		},
		Timestamp: &types.Timestamp{Seconds: 1700000000},
	}
}

func TestNew_Validation(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	state, err := chainstate.Load(testChain, memory.New())
	require.NoError(t, err)

	_, err = New(Config{ChainID: testChain}, server, nil, state, nil)
	assert.ErrorIs(t, err, kmserror.ConfigError)

	_, err = New(Config{ChainID: "other"}, server, newProvider(t), state, nil)
	assert.ErrorIs(t, err, kmserror.ConfigError)

	_, err = New(Config{ChainID: testChain}, server, newProvider(t), nil, nil)
	assert.ErrorIs(t, err, kmserror.ConfigError)
}

func TestSession_Ping(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	resp := h.roundTrip(t, &rpc.PingRequest{Payload: []byte{0x00}})
	ping, ok := resp.(*rpc.PingResponse)
	require.True(t, ok, "got %T", resp)
	assert.Equal(t, []byte{0x00}, ping.Payload)
}

func TestSession_PubKey(t *testing.T) {
	p := newProvider(t)
	h := start(t, Config{}, p)

	resp := h.roundTrip(t, &rpc.PubKeyRequest{})
	pk, ok := resp.(*rpc.PubKeyResponse)
	require.True(t, ok, "got %T", resp)
	assert.Equal(t, p.PublicKey(), pk.PubKeyEd25519)
	assert.Nil(t, pk.Err)
}

func TestSession_SignVote(t *testing.T) {
	h := start(t, Config{}, newProvider(t))
	v := vote(10, 0, types.PrevoteType, 0xAB)

	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: v})
	sv, ok := resp.(*rpc.SignedVoteResponse)
	require.True(t, ok, "got %T", resp)
	require.Nil(t, sv.Err)

	signBytes, err := v.SignBytes(testChain)
	require.NoError(t, err)
	assert.NoError(t, types.VerifySignature(h.provider.PublicKey(), signBytes, sv.Vote.Signature))

	cur := h.state.Current()
	assert.Equal(t, int64(10), cur.Height)
	assert.Equal(t, chainstate.StepPrevote, cur.Step)
	assert.Equal(t, v.BlockID.String(), cur.BlockID)

	// Re-signing the same vote is allowed.
	resp = h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(10, 0, types.PrevoteType, 0xAB)})
	assert.Nil(t, resp.(*rpc.SignedVoteResponse).Err)
}

func TestSession_SignProposal(t *testing.T) {
	h := start(t, Config{}, newProvider(t))
	p := proposal(5, 1)

	resp := h.roundTrip(t, &rpc.SignProposalRequest{Proposal: p})
	sp, ok := resp.(*rpc.SignedProposalResponse)
	require.True(t, ok, "got %T", resp)
	require.Nil(t, sp.Err)

	signBytes, err := p.SignBytes(testChain)
	require.NoError(t, err)
	assert.NoError(t, types.VerifySignature(h.provider.PublicKey(), signBytes, sp.Proposal.Signature))
	assert.Equal(t, chainstate.StepPropose, h.state.Current().Step)
}

func TestSession_DoubleSignIsFatal(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(10, 0, types.PrecommitType, 0xAB)})
	require.Nil(t, resp.(*rpc.SignedVoteResponse).Err)

	resp = h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(10, 0, types.PrecommitType, 0xCD)})
	sv := resp.(*rpc.SignedVoteResponse)
	require.NotNil(t, sv.Err)
	assert.Equal(t, kmserror.DoubleSign.Code(), sv.Err.Code)
	assert.Empty(t, sv.Vote.Signature)

	err := h.wait(t)
	assert.ErrorIs(t, err, kmserror.DoubleSign)
	var se *chainstate.StateError
	assert.True(t, errors.As(err, &se))
}

func TestSession_RegressionIsFatal(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(10, 0, types.PrevoteType, 0xAB)})
	require.Nil(t, resp.(*rpc.SignedVoteResponse).Err)

	resp = h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(9, 0, types.PrevoteType, 0xAB)})
	require.NotNil(t, resp.(*rpc.SignedVoteResponse).Err)
	assert.ErrorIs(t, h.wait(t), kmserror.DoubleSign)
}

func TestSession_ExceedMaxHeight(t *testing.T) {
	h := start(t, Config{MaxHeight: 100}, newProvider(t))

	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(100, 0, types.PrevoteType, 0)})
	require.Nil(t, resp.(*rpc.SignedVoteResponse).Err)

	resp = h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(101, 0, types.PrevoteType, 0)})
	sv := resp.(*rpc.SignedVoteResponse)
	require.NotNil(t, sv.Err)
	assert.Equal(t, kmserror.ExceedMaxHeight.Code(), sv.Err.Code)

	assert.ErrorIs(t, h.wait(t), kmserror.ExceedMaxHeight)
	assert.Equal(t, int64(100), h.state.Current().Height)
}

func TestSession_InvalidMessageKeepsConnection(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	bad := vote(1, 0, types.PrevoteType, 0)
	bad.ValidatorAddress = []byte{0x01}
	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: bad})
	sv := resp.(*rpc.SignedVoteResponse)
	require.NotNil(t, sv.Err)
	assert.Equal(t, kmserror.InvalidMessageError.Code(), sv.Err.Code)

	resp = h.roundTrip(t, &rpc.SignVoteRequest{})
	assert.Equal(t, kmserror.InvalidMessageError.Code(), resp.(*rpc.SignedVoteResponse).Err.Code)

	_, ok := h.roundTrip(t, &rpc.PingRequest{}).(*rpc.PingResponse)
	assert.True(t, ok)
	assert.Equal(t, int64(0), h.state.Current().Height)
}

func TestSession_SigningErrorKeepsConnection(t *testing.T) {
	p := newProvider(t)
	require.NoError(t, p.Close())
	h := start(t, Config{}, p)

	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(3, 0, types.PrevoteType, 0)})
	sv := resp.(*rpc.SignedVoteResponse)
	require.NotNil(t, sv.Err)
	assert.Equal(t, kmserror.SigningError.Code(), sv.Err.Code)

	_, ok := h.roundTrip(t, &rpc.PingRequest{}).(*rpc.PingResponse)
	assert.True(t, ok)
}

func TestSession_UnknownMessageEndsSession(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	_, err := h.client.Write([]byte{0x04, 0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)
	assert.ErrorIs(t, h.wait(t), kmserror.ProtocolError)
}

func TestSession_ClientCloseIsIoError(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	require.NoError(t, h.client.Close())
	assert.ErrorIs(t, h.wait(t), kmserror.IoError)
}

func TestSession_ReadTimeout(t *testing.T) {
	h := start(t, Config{ReadTimeout: 20 * time.Millisecond}, newProvider(t))
	assert.ErrorIs(t, h.wait(t), kmserror.IoError)
}

func TestSession_ContextCancel(t *testing.T) {
	h := start(t, Config{}, newProvider(t))

	h.cancel()
	err := h.wait(t)
	assert.ErrorIs(t, err, kmserror.IoError)
	assert.ErrorIs(t, err, context.Canceled)
}

type panickingProvider struct {
	pub ed25519.PublicKey
}

func (p panickingProvider) PublicKey() ed25519.PublicKey { return p.pub }
func (panickingProvider) Sign(context.Context, []byte) ([]byte, error) {
	panic("hsm exploded")
}
func (panickingProvider) Close() error { return nil }

func TestSession_PanicBecomesPanicError(t *testing.T) {
	h := start(t, Config{}, panickingProvider{pub: newProvider(t).PublicKey()})

	resp := h.roundTrip(t, &rpc.SignVoteRequest{Vote: vote(1, 0, types.PrevoteType, 0)})
	sv, ok := resp.(*rpc.SignedVoteResponse)
	require.True(t, ok)
	require.NotNil(t, sv.Err)
	assert.Equal(t, kmserror.PanicError.Code(), sv.Err.Code)
	assert.Contains(t, sv.Err.Description, "hsm exploded")
	assert.Empty(t, sv.Vote.Signature)

	_, ok = h.roundTrip(t, &rpc.PingRequest{}).(*rpc.PingResponse)
	assert.True(t, ok)
}
