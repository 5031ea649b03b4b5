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

package signing

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type badSigner struct {
	pub ed25519.PublicKey
	sig []byte
	err error
}

func (s *badSigner) Public() crypto.PublicKey { return s.pub }

func (s *badSigner) Sign(io.Reader, []byte, crypto.SignerOpts) ([]byte, error) {
	return s.sig, s.err
}

func TestGenerateAndLoadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consensus.key")

	pub, err := GenerateKeyFile(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err := LoadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, pub, key.Public())

	_, err = GenerateKeyFile(path)
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorIo, serr.Kind)
}

func TestLoadKeyFile_Formats(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	corrupt := make([]byte, ed25519.PrivateKeySize)
	copy(corrupt, priv)
	corrupt[63] ^= 0xFF

	tests := []struct {
		name    string
		content string
		kind    ErrorKind
	}{
		{name: "seed", content: base64.StdEncoding.EncodeToString(priv.Seed())},
		{name: "full key with newline", content: base64.StdEncoding.EncodeToString(priv) + "\n"},
		{name: "not base64", content: "%%%", kind: ErrorParse},
		{name: "wrong length", content: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), kind: ErrorKeyInvalid},
		{name: "mismatched public half", content: base64.StdEncoding.EncodeToString(corrupt), kind: ErrorKeyInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "key")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			key, err := LoadKeyFile(path)
			if tt.kind == 0 {
				require.NoError(t, err)
				assert.Equal(t, priv.Public(), key.Public())
				return
			}
			var serr *Error
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, tt.kind, serr.Kind)
		})
	}

	_, err = LoadKeyFile(filepath.Join(t.TempDir(), "missing"))
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorIo, serr.Kind)
}

func TestSoftProvider_Sign(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	pub, err := GenerateKeyFile(path)
	require.NoError(t, err)

	p, err := NewSoftProvider(SoftsignConfig{KeyFile: path})
	require.NoError(t, err)
	assert.Equal(t, pub, p.PublicKey())

	msg := []byte("sign bytes")
	sig, err := p.Sign(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, msg, sig))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, err = p.Sign(context.Background(), msg)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = NewSoftProvider(SoftsignConfig{})
	assert.Error(t, err)
}

func TestSignerProvider_Errors(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, err = NewSignerProvider(nil, nil)
	assert.ErrorIs(t, err, ErrSignerRequired)

	_, err = NewSignerProvider(&badSigner{pub: pub[:5]}, nil)
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorKeyInvalid, serr.Kind)

	p, err := NewSignerProvider(&badSigner{pub: pub, err: errors.New("token unplugged")}, nil)
	require.NoError(t, err)
	_, err = p.Sign(context.Background(), []byte("m"))
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorProvider, serr.Kind)

	p, err = NewSignerProvider(&badSigner{pub: pub, sig: make([]byte, ed25519.SignatureSize)}, nil)
	require.NoError(t, err)
	_, err = p.Sign(context.Background(), []byte("m"))
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorSignatureInvalid, serr.Kind)

	p, err = NewSignerProvider(&badSigner{pub: pub, err: NewError(ErrorAccess, "pin locked")}, nil)
	require.NoError(t, err)
	_, err = p.Sign(context.Background(), []byte("m"))
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorAccess, serr.Kind)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Sign(ctx, []byte("m"))
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, ErrorIo, serr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSignerProvider_CloseCallsCloser(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	calls := 0
	p, err := NewSignerProvider(priv, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, calls)
}

func TestRegistry(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	p, err := NewSignerProvider(priv, nil)
	require.NoError(t, err)

	r := NewRegistry()
	require.NoError(t, r.Register(p, "chain-b", "chain-a"))
	assert.Equal(t, []string{"chain-a", "chain-b"}, r.ChainIDs())

	got, err := r.Get("chain-a")
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = r.Get("chain-c")
	assert.ErrorIs(t, err, ErrNoProvider)

	assert.ErrorIs(t, r.Register(p, "chain-c", "chain-a"), ErrDuplicateChain)
	_, err = r.Get("chain-c")
	assert.ErrorIs(t, err, ErrNoProvider, "failed registration must not be partial")

	assert.ErrorIs(t, r.Register(nil, "x"), ErrSignerRequired)
	require.NoError(t, r.Close())
}

func TestError(t *testing.T) {
	err := NewError(ErrorProvider, "hsm busy")
	assert.Equal(t, "signing: provider error: hsm busy", err.Error())
	assert.Equal(t, "signing: access denied", (&Error{Kind: ErrorAccess}).Error())
}
