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

//go:build pkcs11

package signing

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"errors"
	"io"
	"sync"

	"github.com/miekg/pkcs11"
)

// PKCS#11 v3.0 Edwards curve constants not present in miekg/pkcs11.
const (
	ckkECEdwards = 0x00000040
	ckmEdDSA     = 0x00001057
)

// pkcs11Signer implements crypto.Signer for an ed25519 key held on a token.
type pkcs11Signer struct {
	ctx     *pkcs11.Ctx
	session pkcs11.SessionHandle
	key     pkcs11.ObjectHandle
	pub     ed25519.PublicKey
	mu      sync.Mutex
}

// NewPKCS11Provider opens the token described by cfg, logs in and locates the
// ed25519 key pair labelled cfg.KeyLabel.
func NewPKCS11Provider(cfg PKCS11Config) (*SignerProvider, error) {
	if cfg.Library == "" || cfg.KeyLabel == "" {
		return nil, NewError(ErrorIo, "pkcs11 library and key label are required")
	}

	p := pkcs11.New(cfg.Library)
	if p == nil {
		return nil, NewError(ErrorIo, "failed to load PKCS#11 library: %s", cfg.Library)
	}
	if err := p.Initialize(); err != nil && !isCKR(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		p.Destroy()
		return nil, classifyPKCS11(err)
	}

	s, err := openPKCS11Signer(p, cfg)
	if err != nil {
		p.Finalize()
		p.Destroy()
		return nil, err
	}

	return NewSignerProvider(s, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = p.Logout(s.session)
		_ = p.CloseSession(s.session)
		err := p.Finalize()
		p.Destroy()
		return err
	})
}

func openPKCS11Signer(p *pkcs11.Ctx, cfg PKCS11Config) (*pkcs11Signer, error) {
	slot, err := findSlot(p, cfg)
	if err != nil {
		return nil, err
	}

	session, err := p.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		return nil, classifyPKCS11(err)
	}
	if cfg.PIN != "" {
		if err := p.Login(session, pkcs11.CKU_USER, cfg.PIN); err != nil && !isCKR(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
			_ = p.CloseSession(session)
			return nil, classifyPKCS11(err)
		}
	}

	priv, err := findObject(p, session, pkcs11.CKO_PRIVATE_KEY, cfg.KeyLabel)
	if err != nil {
		_ = p.CloseSession(session)
		return nil, err
	}
	pubHandle, err := findObject(p, session, pkcs11.CKO_PUBLIC_KEY, cfg.KeyLabel)
	if err != nil {
		_ = p.CloseSession(session)
		return nil, err
	}

	attrs, err := p.GetAttributeValue(session, pubHandle, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_EC_POINT, nil),
	})
	if err != nil {
		_ = p.CloseSession(session)
		return nil, classifyPKCS11(err)
	}
	if len(attrs) == 0 {
		_ = p.CloseSession(session)
		return nil, NewError(ErrorParse, "token returned no CKA_EC_POINT for %q", cfg.KeyLabel)
	}
	pub, err := parseECPoint(attrs[0].Value)
	if err != nil {
		_ = p.CloseSession(session)
		return nil, err
	}

	return &pkcs11Signer{ctx: p, session: session, key: priv, pub: pub}, nil
}

func findSlot(p *pkcs11.Ctx, cfg PKCS11Config) (uint, error) {
	if cfg.Slot != nil {
		return *cfg.Slot, nil
	}
	slots, err := p.GetSlotList(true)
	if err != nil {
		return 0, classifyPKCS11(err)
	}
	for _, slot := range slots {
		if cfg.TokenLabel == "" {
			return slot, nil
		}
		info, err := p.GetTokenInfo(slot)
		if err != nil {
			continue
		}
		if trimLabel(info.Label) == cfg.TokenLabel {
			return slot, nil
		}
	}
	return 0, NewError(ErrorIo, "no PKCS#11 token labelled %q", cfg.TokenLabel)
}

func findObject(p *pkcs11.Ctx, session pkcs11.SessionHandle, class uint, label string) (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, class),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, ckkECEdwards),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, label),
	}
	if err := p.FindObjectsInit(session, template); err != nil {
		return 0, classifyPKCS11(err)
	}
	handles, _, err := p.FindObjects(session, 1)
	_ = p.FindObjectsFinal(session)
	if err != nil {
		return 0, classifyPKCS11(err)
	}
	if len(handles) == 0 {
		return 0, NewError(ErrorKeyInvalid, "no ed25519 key labelled %q", label)
	}
	return handles[0], nil
}

// parseECPoint unwraps a CKA_EC_POINT value, which tokens return either as a
// DER OCTET STRING or as the raw 32-byte point.
func parseECPoint(point []byte) (ed25519.PublicKey, error) {
	switch {
	case len(point) == ed25519.PublicKeySize+2 && point[0] == 0x04 && point[1] == ed25519.PublicKeySize:
		return ed25519.PublicKey(bytes.Clone(point[2:])), nil
	case len(point) == ed25519.PublicKeySize:
		return ed25519.PublicKey(bytes.Clone(point)), nil
	default:
		return nil, NewError(ErrorKeyInvalid, "unexpected EC point of %d bytes", len(point))
	}
}

func trimLabel(s string) string {
	return string(bytes.TrimRight([]byte(s), " \x00"))
}

func (s *pkcs11Signer) Public() crypto.PublicKey {
	return s.pub
}

// Sign passes the full message to CKM_EDDSA.
func (s *pkcs11Signer) Sign(_ io.Reader, msg []byte, _ crypto.SignerOpts) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.SignInit(s.session, []*pkcs11.Mechanism{pkcs11.NewMechanism(ckmEdDSA, nil)}, s.key); err != nil {
		return nil, classifyPKCS11(err)
	}
	sig, err := s.ctx.Sign(s.session, msg)
	if err != nil {
		return nil, classifyPKCS11(err)
	}
	return sig, nil
}

func isCKR(err error, code uint) bool {
	var perr pkcs11.Error
	return errors.As(err, &perr) && uint(perr) == code
}

func classifyPKCS11(err error) *Error {
	var perr pkcs11.Error
	if !errors.As(err, &perr) {
		return &Error{Kind: ErrorProvider, Err: err}
	}
	switch uint(perr) {
	case pkcs11.CKR_PIN_INCORRECT, pkcs11.CKR_PIN_LOCKED, pkcs11.CKR_PIN_EXPIRED,
		pkcs11.CKR_PIN_INVALID, pkcs11.CKR_PIN_LEN_RANGE, pkcs11.CKR_USER_NOT_LOGGED_IN,
		pkcs11.CKR_USER_PIN_NOT_INITIALIZED, pkcs11.CKR_USER_TYPE_INVALID:
		return &Error{Kind: ErrorAccess, Err: err}
	case pkcs11.CKR_KEY_HANDLE_INVALID, pkcs11.CKR_KEY_TYPE_INCONSISTENT, pkcs11.CKR_KEY_FUNCTION_NOT_PERMITTED:
		return &Error{Kind: ErrorKeyInvalid, Err: err}
	case pkcs11.CKR_DEVICE_ERROR, pkcs11.CKR_DEVICE_REMOVED, pkcs11.CKR_TOKEN_NOT_PRESENT,
		pkcs11.CKR_SESSION_CLOSED, pkcs11.CKR_SESSION_HANDLE_INVALID:
		return &Error{Kind: ErrorIo, Err: err}
	default:
		return &Error{Kind: ErrorProvider, Err: err}
	}
}
