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

// SoftsignConfig locates a software ed25519 key.
type SoftsignConfig struct {
	// KeyFile is a base64 encoded ed25519 seed or private key.
	KeyFile string `yaml:"key_file" json:"key_file"`
}

// PKCS11Config selects an ed25519 key on a PKCS#11 token.
type PKCS11Config struct {
	Library    string `yaml:"library" json:"library"`
	TokenLabel string `yaml:"token_label" json:"token_label"`
	Slot       *uint  `yaml:"slot,omitempty" json:"slot,omitempty"`
	PIN        string `yaml:"pin" json:"-"`
	KeyLabel   string `yaml:"key_label" json:"key_label"`
}

// VaultConfig selects an ed25519 key in a Vault transit engine.
type VaultConfig struct {
	Address       string `yaml:"address" json:"address"`
	Token         string `yaml:"token" json:"-"`
	TransitPath   string `yaml:"transit_path" json:"transit_path"`
	KeyName       string `yaml:"key_name" json:"key_name"`
	Namespace     string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify,omitempty" json:"tls_skip_verify,omitempty"`
}
