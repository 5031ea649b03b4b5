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

// Package session serves one validator connection: it reads requests,
// signs consensus messages after the double sign check, and writes the
// responses back, strictly one request at a time.
package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jeremyhahn/go-kms/pkg/adapters/logger"
	"github.com/jeremyhahn/go-kms/pkg/chainstate"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/metrics"
	"github.com/jeremyhahn/go-kms/pkg/rpc"
	"github.com/jeremyhahn/go-kms/pkg/signing"
	"github.com/jeremyhahn/go-kms/pkg/types"
)

// Config holds the per-validator settings of a session.
type Config struct {
	// ChainID is the chain whose messages this validator sends.
	ChainID string
	// Validator labels logs and metrics, usually the dial address.
	Validator string
	// MaxHeight refuses to sign above this height when positive.
	MaxHeight int64
	// ReadTimeout bounds the wait for each request when positive.
	ReadTimeout time.Duration
}

// Session is a connection to one validator.
type Session struct {
	cfg      Config
	conn     net.Conn
	provider signing.Provider
	state    *chainstate.State
	log      logger.Logger
}

// New creates a session over conn. The chain state must belong to
// cfg.ChainID.
func New(cfg Config, conn net.Conn, provider signing.Provider, state *chainstate.State, log logger.Logger) (*Session, error) {
	if provider == nil {
		return nil, kmserror.Wrap(kmserror.ConfigError, signing.ErrNoProvider)
	}
	if state == nil || state.ChainID() != cfg.ChainID {
		return nil, kmserror.New(kmserror.ConfigError, "no chain state for %q", cfg.ChainID)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		cfg:      cfg,
		conn:     conn,
		provider: provider,
		state:    state,
		log:      log.With(logger.Chain(cfg.ChainID), logger.Validator(cfg.Validator)),
	}, nil
}

// Run handles requests until the connection fails, ctx is cancelled, or a
// fatal error occurs. It always returns a non-nil *kmserror.Error and closes
// the connection.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()
	defer s.conn.Close()

	tracker := metrics.NewConnectionTracker(s.cfg.Validator)
	defer tracker.Close()

	s.log.Info("session started")
	for {
		if err := s.HandleRequest(ctx); err != nil {
			kerr := classify(err, kmserror.IoError)
			if ctx.Err() != nil && !kerr.Kind.IsFatal() {
				kerr = kmserror.Wrap(kmserror.IoError, ctx.Err())
			}
			s.log.Info("session ended",
				logger.String("kind", kerr.Kind.Label()),
				logger.Duration("duration", tracker.Duration()),
				logger.Error(kerr))
			return kerr
		}
	}
}

// HandleRequest reads, handles and answers one request. A non-nil error ends
// the session. Panics outside the signing provider are converted into
// PanicError and end the session.
func (s *Session) HandleRequest(ctx context.Context) (err error) {
	defer kmserror.Recover(&err)

	if s.cfg.ReadTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return kmserror.Wrap(kmserror.IoError, err)
		}
	}

	req, err := rpc.ReadRequest(s.conn)
	if err != nil {
		kerr := classify(err, kmserror.ProtocolError)
		if kerr.Kind != kmserror.IoError {
			s.log.Warn("failed to decode request", logger.Error(kerr))
			metrics.RecordError(kerr.Kind.Label())
		}
		return kerr
	}

	start := time.Now()
	var (
		resp  rpc.Response
		fatal error
	)
	switch r := req.(type) {
	case rpc.SignableRequest:
		resp, fatal = s.sign(ctx, r)
	case *rpc.PubKeyRequest:
		resp = r.Respond(s.provider.PublicKey())
	case *rpc.PingRequest:
		resp = r.BuildResponse()
	default:
		return kmserror.New(kmserror.ProtocolError, "unhandled request %s", req.Name())
	}

	if err := rpc.WriteResponse(s.conn, resp); err != nil {
		return classify(err, kmserror.IoError)
	}

	status := metrics.StatusSuccess
	if sr, ok := resp.(rpc.SignedResponse); ok && sr.RemoteError() != nil {
		status = metrics.StatusError
	}
	metrics.RecordRequest(req.Name(), status, time.Since(start).Seconds())
	return fatal
}

// sign handles a vote or proposal. Failures are reported in the response.
// The returned error is non-nil only for failures that must stop the
// process.
func (s *Session) sign(ctx context.Context, req rpc.SignableRequest) (rpc.Response, error) {
	if err := req.ValidateBasic(); err != nil {
		return s.refuse(req, kmserror.Wrap(kmserror.InvalidMessageError, err)), nil
	}

	next := req.ConsensusState()
	if s.cfg.MaxHeight > 0 && next.Height > s.cfg.MaxHeight {
		kerr := kmserror.New(kmserror.ExceedMaxHeight,
			"attempted to sign at height %d which is greater than %d", next.Height, s.cfg.MaxHeight)
		return s.refuse(req, kerr), kerr
	}

	signBytes, err := req.SignBytes(s.cfg.ChainID)
	if err != nil {
		return s.refuse(req, classify(err, kmserror.InvalidMessageError)), nil
	}

	if err := s.state.Update(next); err != nil {
		kerr := classify(err, kmserror.IoError)
		if errors.Is(kerr, kmserror.DoubleSign) {
			metrics.RecordDoubleSign(s.cfg.ChainID)
			return s.refuse(req, kerr), kerr
		}
		return s.refuse(req, kerr), nil
	}

	sig, err := s.providerSign(ctx, signBytes)
	if err != nil {
		return s.refuse(req, classify(err, kmserror.SigningError)), nil
	}
	req.SetSignature(sig)

	metrics.RecordSignature(s.cfg.ChainID, req.MsgType().String(), next.Height)
	s.log.Info("signed",
		logger.String("type", req.MsgType().String()),
		logger.Int64("height", next.Height),
		logger.Int64("round", next.Round),
		logger.String("block", next.BlockID))
	return req.BuildResponse(), nil
}

// providerSign calls the signing provider. A panicking provider yields a
// PanicError that is reported to the validator like any signing failure.
func (s *Session) providerSign(ctx context.Context, msg []byte) (sig []byte, err error) {
	defer kmserror.Recover(&err)
	return s.provider.Sign(ctx, msg)
}

// refuse builds a response carrying kerr in place of a signature.
func (s *Session) refuse(req rpc.SignableRequest, kerr *kmserror.Error) rpc.Response {
	fields := []logger.Field{
		logger.String("type", req.MsgType().String()),
		logger.String("kind", kerr.Kind.Label()),
		logger.Error(kerr),
	}
	if kerr.Kind.IsFatal() {
		s.log.Error("refused to sign", append(fields, logger.Strings("causes", kerr.Causes()))...)
	} else {
		s.log.Warn("refused to sign", fields...)
	}
	metrics.RecordError(kerr.Kind.Label())

	resp := req.BuildResponse()
	resp.SetError(&types.RemoteSignerError{Code: kerr.Kind.Code(), Description: kerr.Error()})
	return resp
}

// classify converts err into a *kmserror.Error, using fallback for errors of
// no known domain.
func classify(err error, fallback kmserror.Kind) *kmserror.Error {
	if kerr, ok := kmserror.From(err); ok {
		return kerr
	}
	return kmserror.Wrap(fallback, err)
}
