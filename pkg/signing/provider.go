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
	"crypto/rand"
	"errors"
	"sync"
)

// Provider produces ed25519 signatures over consensus sign bytes.
type Provider interface {
	// PublicKey returns the validator's consensus public key.
	PublicKey() ed25519.PublicKey

	// Sign signs msg. Failures are returned as *Error.
	Sign(ctx context.Context, msg []byte) ([]byte, error)

	// Close releases backend resources.
	Close() error
}

// SignerProvider adapts any ed25519 crypto.Signer to a Provider. Every
// signature is verified against the public key before it is returned.
type SignerProvider struct {
	signer crypto.Signer
	pub    ed25519.PublicKey
	closer func() error

	mu     sync.Mutex
	closed bool
}

// NewSignerProvider wraps signer. closer, if non-nil, is called by Close.
func NewSignerProvider(signer crypto.Signer, closer func() error) (*SignerProvider, error) {
	if signer == nil {
		return nil, ErrSignerRequired
	}
	pub, ok := signer.Public().(ed25519.PublicKey)
	if !ok {
		return nil, NewError(ErrorKeyInvalid, "signer public key is %T, want ed25519", signer.Public())
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, NewError(ErrorKeyInvalid, "ed25519 public key is %d bytes", len(pub))
	}
	return &SignerProvider{signer: signer, pub: pub, closer: closer}, nil
}

// PublicKey returns the signer's public key.
func (p *SignerProvider) PublicKey() ed25519.PublicKey {
	return p.pub
}

// Sign signs msg with the wrapped signer. Ed25519 signs the full message, so
// no digest is computed.
func (p *SignerProvider) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: ErrorIo, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, &Error{Kind: ErrorProvider, Err: ErrClosed}
	}

	sig, err := p.signer.Sign(rand.Reader, msg, crypto.Hash(0))
	if err != nil {
		var serr *Error
		if errors.As(err, &serr) {
			return nil, err
		}
		return nil, &Error{Kind: ErrorProvider, Err: err}
	}
	if len(sig) != ed25519.SignatureSize || !ed25519.Verify(p.pub, msg, sig) {
		return nil, NewError(ErrorSignatureInvalid, "backend returned a signature that does not verify")
	}
	return sig, nil
}

// Close releases the wrapped signer. Subsequent calls to Sign fail.
func (p *SignerProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.closer != nil {
		return p.closer()
	}
	return nil
}
