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
	"crypto/ed25519"

	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// PubKeyEd25519Name is the registered amino name of an ed25519 public key.
const PubKeyEd25519Name = "tendermint/PubKeyEd25519"

var pubKeyEd25519Prefix = amino.MustNewRegistry(PubKeyEd25519Name)

// EncodePubKeyEd25519 returns the amino encoding of an ed25519 public key:
// the registered prefix followed by the length-delimited key bytes.
func EncodePubKeyEd25519(pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, NewError(ErrorInvalidKey, "ed25519 public key is %d bytes", len(pub))
	}
	p, err := pubKeyEd25519Prefix.Prefix(PubKeyEd25519Name)
	if err != nil {
		return nil, NewError(ErrorProtocol, "%v", err)
	}
	out := make([]byte, 0, amino.PrefixLen+1+len(pub))
	out = append(out, p[:]...)
	return append(out, amino.LengthDelimited(pub)...), nil
}

// DecodePubKeyEd25519 parses the amino encoding produced by
// EncodePubKeyEd25519.
func DecodePubKeyEd25519(b []byte) (ed25519.PublicKey, error) {
	p, err := pubKeyEd25519Prefix.Prefix(PubKeyEd25519Name)
	if err != nil {
		return nil, NewError(ErrorProtocol, "%v", err)
	}
	want := amino.PrefixLen + 1 + ed25519.PublicKeySize
	if len(b) != want {
		return nil, NewError(ErrorLength, "encoded public key is %d bytes, want %d", len(b), want)
	}
	if amino.Prefix(b[:amino.PrefixLen]) != p {
		return nil, NewError(ErrorProtocol, "unexpected public key prefix %X", b[:amino.PrefixLen])
	}
	if b[amino.PrefixLen] != ed25519.PublicKeySize {
		return nil, NewError(ErrorLength, "public key length byte %d", b[amino.PrefixLen])
	}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, b[amino.PrefixLen+1:])
	return pub, nil
}

// VerifySignature checks an ed25519 signature over msg.
func VerifySignature(pub ed25519.PublicKey, msg, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return NewError(ErrorInvalidKey, "ed25519 public key is %d bytes", len(pub))
	}
	if len(sig) != ed25519.SignatureSize {
		return NewError(ErrorSignatureInvalid, "signature is %d bytes", len(sig))
	}
	if !ed25519.Verify(pub, msg, sig) {
		return NewError(ErrorSignatureInvalid, "ed25519 verification failed")
	}
	return nil
}
