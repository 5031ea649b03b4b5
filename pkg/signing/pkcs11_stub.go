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

//go:build !pkcs11

package signing

import "fmt"

// NewPKCS11Provider is unavailable without the pkcs11 build tag.
func NewPKCS11Provider(cfg PKCS11Config) (*SignerProvider, error) {
	return nil, fmt.Errorf("%w: pkcs11 (rebuild with -tags pkcs11)", ErrBackendNotCompiled)
}
