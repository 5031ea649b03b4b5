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

const maxChainIDLen = 50

// ChainID identifies a blockchain network.
type ChainID string

// ParseChainID validates s as a chain id. Chain ids are 1 to 50 characters
// drawn from letters, digits, '-', '_' and '.'.
func ParseChainID(s string) (ChainID, error) {
	if len(s) == 0 || len(s) > maxChainIDLen {
		return "", NewError(ErrorLength, "chain id length %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return "", NewError(ErrorParse, "invalid character %q in chain id", c)
		}
	}
	return ChainID(s), nil
}

func (id ChainID) String() string {
	return string(id)
}
