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

//go:build vault

package signing

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
)

const (
	defaultTransitPath  = "transit"
	vaultRequestTimeout = 10 * time.Second
)

// vaultSigner implements crypto.Signer over a transit ed25519 key.
type vaultSigner struct {
	logical *vault.Logical
	path    string
	pub     ed25519.PublicKey
}

// NewVaultProvider connects to Vault and reads the public half of the
// configured transit key.
func NewVaultProvider(ctx context.Context, cfg VaultConfig) (*SignerProvider, error) {
	if cfg.Address == "" || cfg.Token == "" || cfg.KeyName == "" {
		return nil, NewError(ErrorIo, "vault address, token and key name are required")
	}
	if cfg.TransitPath == "" {
		cfg.TransitPath = defaultTransitPath
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSSkipVerify {
		if err := vaultConfig.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, &Error{Kind: ErrorIo, Err: err}
		}
	}
	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, &Error{Kind: ErrorIo, Err: err}
	}
	client.SetToken(cfg.Token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	logical := client.Logical()
	pub, err := vaultPublicKey(ctx, logical, cfg)
	if err != nil {
		return nil, err
	}

	return NewSignerProvider(&vaultSigner{
		logical: logical,
		path:    fmt.Sprintf("%s/sign/%s", cfg.TransitPath, cfg.KeyName),
		pub:     pub,
	}, nil)
}

func vaultPublicKey(ctx context.Context, logical *vault.Logical, cfg VaultConfig) (ed25519.PublicKey, error) {
	secret, err := logical.ReadWithContext(ctx, fmt.Sprintf("%s/keys/%s", cfg.TransitPath, cfg.KeyName))
	if err != nil {
		return nil, classifyVault(err)
	}
	if secret == nil || secret.Data == nil {
		return nil, NewError(ErrorKeyInvalid, "transit key %q not found", cfg.KeyName)
	}
	if typ, _ := secret.Data["type"].(string); typ != "ed25519" {
		return nil, NewError(ErrorKeyInvalid, "transit key %q has type %q, want ed25519", cfg.KeyName, typ)
	}

	keys, ok := secret.Data["keys"].(map[string]interface{})
	if !ok {
		return nil, NewError(ErrorParse, "transit key %q: missing keys", cfg.KeyName)
	}
	latest := fmt.Sprintf("%v", secret.Data["latest_version"])
	version, ok := keys[latest].(map[string]interface{})
	if !ok {
		return nil, NewError(ErrorParse, "transit key %q: version %s not found", cfg.KeyName, latest)
	}
	encoded, ok := version["public_key"].(string)
	if !ok {
		return nil, NewError(ErrorParse, "transit key %q: missing public key", cfg.KeyName)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &Error{Kind: ErrorParse, Err: err}
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, NewError(ErrorKeyInvalid, "transit public key is %d bytes", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func (s *vaultSigner) Public() crypto.PublicKey {
	return s.pub
}

// Sign requests a pure ed25519 signature over msg.
func (s *vaultSigner) Sign(_ io.Reader, msg []byte, _ crypto.SignerOpts) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), vaultRequestTimeout)
	defer cancel()

	secret, err := s.logical.WriteWithContext(ctx, s.path, map[string]interface{}{
		"input":     base64.StdEncoding.EncodeToString(msg),
		"prehashed": false,
	})
	if err != nil {
		return nil, classifyVault(err)
	}
	if secret == nil || secret.Data == nil {
		return nil, NewError(ErrorProvider, "vault returned no signature")
	}
	encoded, ok := secret.Data["signature"].(string)
	if !ok {
		return nil, NewError(ErrorParse, "vault signature is not a string")
	}

	// "vault:v<version>:<base64>"
	parts := strings.SplitN(encoded, ":", 3)
	if len(parts) != 3 || parts[0] != "vault" {
		return nil, NewError(ErrorParse, "unexpected vault signature format")
	}
	sig, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, &Error{Kind: ErrorParse, Err: err}
	}
	return sig, nil
}

func classifyVault(err error) *Error {
	var respErr *vault.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case 401, 403:
			return &Error{Kind: ErrorAccess, Err: err}
		case 400, 404:
			return &Error{Kind: ErrorKeyInvalid, Err: err}
		}
		return &Error{Kind: ErrorProvider, Err: err}
	}
	return &Error{Kind: ErrorIo, Err: err}
}
