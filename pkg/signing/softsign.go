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
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
)

// LoadKeyFile reads a base64 encoded ed25519 key. The file may hold the
// 32-byte seed or the 64-byte private key.
func LoadKeyFile(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrorIo, Err: err}
	}
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, &Error{Kind: ErrorParse, Err: err}
	}

	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.PrivateKey(raw)
		derived := ed25519.NewKeyFromSeed(key.Seed())
		if !bytes.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, NewError(ErrorKeyInvalid, "public half of %s does not match its seed", path)
		}
		return key, nil
	default:
		return nil, NewError(ErrorKeyInvalid, "%s: key is %d bytes, want %d or %d",
			path, len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}

// GenerateKeyFile writes a new base64 encoded ed25519 seed to path. It never
// overwrites an existing file.
func GenerateKeyFile(path string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, &Error{Kind: ErrorProvider, Err: err}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, NewError(ErrorIo, "refusing to overwrite %s", path)
		}
		return nil, &Error{Kind: ErrorIo, Err: err}
	}
	defer f.Close()

	encoded := base64.StdEncoding.EncodeToString(priv.Seed())
	if _, err := f.WriteString(encoded + "\n"); err != nil {
		return nil, &Error{Kind: ErrorIo, Err: err}
	}
	if err := f.Sync(); err != nil {
		return nil, &Error{Kind: ErrorIo, Err: err}
	}
	return pub, nil
}

// NewSoftProvider loads the key named by cfg and returns a provider for it.
func NewSoftProvider(cfg SoftsignConfig) (*SignerProvider, error) {
	if cfg.KeyFile == "" {
		return nil, NewError(ErrorIo, "softsign key file not set")
	}
	key, err := LoadKeyFile(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return NewSignerProvider(key, nil)
}
