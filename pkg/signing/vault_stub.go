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

//go:build !vault

package signing

import (
	"context"
	"fmt"
)

// NewVaultProvider is unavailable without the vault build tag.
func NewVaultProvider(ctx context.Context, cfg VaultConfig) (*SignerProvider, error) {
	return nil, fmt.Errorf("%w: vault (rebuild with -tags vault)", ErrBackendNotCompiled)
}
