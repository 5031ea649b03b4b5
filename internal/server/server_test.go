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

package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-kms/internal/config"
	"github.com/jeremyhahn/go-kms/internal/testutil"
	"github.com/jeremyhahn/go-kms/pkg/adapters/logger"
	"github.com/jeremyhahn/go-kms/pkg/chainstate"
	"github.com/jeremyhahn/go-kms/pkg/kmserror"
	"github.com/jeremyhahn/go-kms/pkg/rpc"
	"github.com/jeremyhahn/go-kms/pkg/signing"
	"github.com/jeremyhahn/go-kms/pkg/storage/memory"
	"github.com/jeremyhahn/go-kms/pkg/types"
)

const testChain = "test-chain"

// fakeValidator accepts connections from the KMS the way a validator node
// does.
type fakeValidator struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFakeValidator(t *testing.T) *fakeValidator {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	fv := &fakeValidator{ln: ln, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			fv.conns <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return fv
}

func (fv *fakeValidator) addr() string {
	return "tcp://" + fv.ln.Addr().String()
}

func (fv *fakeValidator) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-fv.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("KMS did not connect")
		return nil
	}
}

func roundTrip(t *testing.T, conn net.Conn, req rpc.Request) rpc.Response {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, rpc.WriteRequest(conn, req))
	resp, err := rpc.ReadResponse(conn)
	require.NoError(t, err)
	return resp
}

func testConfig(t *testing.T, addr string, reconnect bool) *config.Config {
	t.Helper()
	keyFile := filepath.Join(t.TempDir(), "consensus.key")
	_, err := signing.GenerateKeyFile(keyFile)
	require.NoError(t, err)

	return &config.Config{
		Logging:   config.LoggingConfig{Level: "info", Format: "json"},
		Metrics:   config.MetricsConfig{Path: "/metrics"},
		Storage:   config.StorageConfig{Backend: config.StorageMemory},
		Reconnect: config.ReconnectConfig{AttemptsPerMinute: 6000, Burst: 10},
		Chains:    []config.ChainConfig{{ID: testChain}},
		Validator: []config.ValidatorConfig{{
			Addr:        addr,
			ChainID:     testChain,
			Reconnect:   reconnect,
			ReadTimeout: 5 * time.Second,
		}},
		Providers: config.ProvidersConfig{
			Softsign: []config.SoftsignProvider{{
				ChainIDs:       []string{testChain},
				SoftsignConfig: signing.SoftsignConfig{KeyFile: keyFile},
			}},
		},
	}
}

func newServer(t *testing.T, cfg *config.Config, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	s, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func run(s *Server) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func vote(height int64, hash byte) *types.Vote {
	return &types.Vote{
		Type:             types.PrevoteType,
		Height:           height,
		Timestamp:        &types.Timestamp{Seconds: 1700000000},
		ValidatorAddress: bytes.Repeat([]byte{0x01}, types.AddressSize),
		BlockID: &types.BlockID{
			Hash:        bytes.Repeat([]byte{hash}, types.HashSize),
			PartsHeader: &types.PartSetHeader{Total: 1, Hash: bytes.Repeat([]byte{hash}, types.HashSize)},
		},
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.ErrorIs(t, err, kmserror.ConfigError)

	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{
			name: "missing key file",
			mutate: func(cfg *config.Config) {
				cfg.Providers.Softsign[0].KeyFile = filepath.Join(t.TempDir(), "missing.key")
			},
		},
		{
			name: "chain bound twice",
			mutate: func(cfg *config.Config) {
				cfg.Providers.Softsign = append(cfg.Providers.Softsign, cfg.Providers.Softsign[0])
			},
		},
		{
			name: "unusable vault provider",
			mutate: func(cfg *config.Config) {
				cfg.Providers.Softsign = nil
				cfg.Providers.Vault = []config.VaultProvider{{ChainIDs: []string{testChain}}}
			},
		},
		{
			name: "invalid log level",
			mutate: func(cfg *config.Config) {
				cfg.Logging.Level = "loud"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "tcp://127.0.0.1:1", false)
			tt.mutate(cfg)
			var opts []Option
			if cfg.Logging.Level != "loud" {
				opts = append(opts, WithLogger(logger.Nop()))
			}
			_, err := New(context.Background(), cfg, opts...)
			assert.ErrorIs(t, err, kmserror.ConfigError)
		})
	}
}

func TestNew_LogsMessageTypes(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New("debug", "json", &buf)
	require.NoError(t, err)

	newServer(t, testConfig(t, "tcp://127.0.0.1:1", false), WithLogger(log))

	out := buf.String()
	for _, name := range rpc.Registry.Names() {
		prefix, err := rpc.Registry.Prefix(name)
		require.NoError(t, err)
		assert.Contains(t, out, name)
		assert.Contains(t, out, prefix.String())
	}
	assert.Contains(t, out, `"prefix":"1BADB60D"`)
}

func TestNew_StateHook(t *testing.T) {
	echo := func(height string) []string {
		return []string{"sh", "-c", `echo '{"latest_block_height":"` + height + `"}'`}
	}

	t.Run("advances state", func(t *testing.T) {
		cfg := testConfig(t, "tcp://127.0.0.1:1", false)
		cfg.Chains[0].StateHook = &config.HookConfig{Cmd: echo("42")}
		s := newServer(t, cfg)

		state, err := s.states.Get(testChain)
		require.NoError(t, err)
		assert.Equal(t, int64(42), state.Current().Height)
	})

	t.Run("fail open", func(t *testing.T) {
		cfg := testConfig(t, "tcp://127.0.0.1:1", false)
		cfg.Chains[0].StateHook = &config.HookConfig{Cmd: []string{"false"}}
		s := newServer(t, cfg)

		state, err := s.states.Get(testChain)
		require.NoError(t, err)
		assert.Equal(t, int64(0), state.Current().Height)
	})

	t.Run("fail closed", func(t *testing.T) {
		cfg := testConfig(t, "tcp://127.0.0.1:1", false)
		cfg.Chains[0].StateHook = &config.HookConfig{Cmd: []string{"false"}, FailClosed: true}
		_, err := New(context.Background(), cfg, WithLogger(logger.Nop()))
		assert.ErrorIs(t, err, kmserror.HookError)
	})
}

func TestServer_SignsAndReconnects(t *testing.T) {
	fv := newFakeValidator(t)
	s := newServer(t, testConfig(t, fv.addr(), true))
	done := run(s)

	conn := fv.accept(t)
	resp := roundTrip(t, conn, &rpc.PingRequest{Payload: []byte{0x00}})
	assert.IsType(t, &rpc.PingResponse{}, resp)
	assert.Eventually(t, func() bool { return s.IsConnected(fv.addr()) }, 5*time.Second, 10*time.Millisecond)

	// The KMS dials again after the validator drops the connection.
	conn.Close()
	conn = fv.accept(t)

	resp = roundTrip(t, conn, &rpc.PubKeyRequest{})
	pk, ok := resp.(*rpc.PubKeyResponse)
	require.True(t, ok, "got %T", resp)
	pub := ed25519.PublicKey(pk.PubKeyEd25519)

	v := vote(7, 0xAB)
	resp = roundTrip(t, conn, &rpc.SignVoteRequest{Vote: v})
	sv, ok := resp.(*rpc.SignedVoteResponse)
	require.True(t, ok, "got %T", resp)
	require.Nil(t, sv.Err)

	signBytes, err := v.SignBytes(testChain)
	require.NoError(t, err)
	assert.NoError(t, types.VerifySignature(pub, signBytes, sv.Vote.Signature))

	require.NoError(t, s.Shutdown())
	assert.NoError(t, waitDone(t, done))
	assert.False(t, s.IsConnected(fv.addr()))
}

func TestServer_DoubleSignIsFatal(t *testing.T) {
	store := memory.New()
	state, err := chainstate.Load(testChain, store)
	require.NoError(t, err)
	require.NoError(t, state.Update(chainstate.ConsensusState{Height: 10, Step: chainstate.StepPrevote}))

	fv := newFakeValidator(t)
	s := newServer(t, testConfig(t, fv.addr(), true), WithStorage(store))
	done := run(s)

	conn := fv.accept(t)
	resp := roundTrip(t, conn, &rpc.SignVoteRequest{Vote: vote(5, 0xAB)})
	sv, ok := resp.(*rpc.SignedVoteResponse)
	require.True(t, ok, "got %T", resp)
	require.NotNil(t, sv.Err)
	assert.Equal(t, kmserror.DoubleSign.Code(), sv.Err.Code)

	err = waitDone(t, done)
	assert.ErrorIs(t, err, kmserror.DoubleSign)

	// A fatal error must not trigger a reconnect.
	select {
	case <-fv.conns:
		t.Fatal("KMS reconnected after a fatal error")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServer_NoReconnect(t *testing.T) {
	fv := newFakeValidator(t)
	s := newServer(t, testConfig(t, fv.addr(), false))
	done := run(s)

	fv.accept(t).Close()
	assert.NoError(t, waitDone(t, done))
}

func TestServer_DialFailureWithoutReconnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "tcp://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	s := newServer(t, testConfig(t, addr, false))
	assert.NoError(t, waitDone(t, run(s)))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	fv := newFakeValidator(t)
	cfg := testConfig(t, fv.addr(), true)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = "127.0.0.1:0"
	s := newServer(t, cfg)
	done := run(s)

	fv.accept(t)
	require.Eventually(t, func() bool { return s.MetricsAddr() != "" }, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.MetricsAddr() + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && resp.StatusCode == http.StatusOK &&
			strings.Contains(string(body), `kms_last_signed_height{chain_id="test-chain"}`)
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.MetricsAddr() + "/health/ready")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown())
	assert.NoError(t, waitDone(t, done))
}

func TestServer_MetricsTLS(t *testing.T) {
	files, err := testutil.WriteTLSFiles(t.TempDir())
	require.NoError(t, err)

	fv := newFakeValidator(t)
	cfg := testConfig(t, fv.addr(), true)
	cfg.Metrics.Enabled = true
	cfg.Metrics.Listen = "127.0.0.1:0"
	cfg.Metrics.TLS = config.TLSConfig{Enabled: true, CertFile: files.CertFile, KeyFile: files.KeyFile}
	s := newServer(t, cfg)
	done := run(s)

	fv.accept(t)
	require.Eventually(t, func() bool { return s.MetricsAddr() != "" }, 5*time.Second, 10*time.Millisecond)

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: files.Pool, MinVersion: tls.VersionTLS12},
	}}
	resp, err := client.Get("https://" + s.MetricsAddr() + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown())
	assert.NoError(t, waitDone(t, done))
}

func TestRouter(t *testing.T) {
	s := newServer(t, testConfig(t, "tcp://127.0.0.1:1", false))
	router := s.Router()

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/health/ready", http.StatusServiceUnavailable},
		{"/metrics", http.StatusOK},
		{"/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
		})
	}
}

func TestGetBuildVersion(t *testing.T) {
	assert.NotEmpty(t, getBuildVersion())
}
