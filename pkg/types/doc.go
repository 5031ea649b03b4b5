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

// Package types defines the consensus payloads carried by remote signer
// messages: votes, proposals, block identifiers and timestamps, together with
// their amino encodings, canonical sign bytes and basic validation.
//
// Errors raised while interpreting consensus data are reported as *Error,
// classified by a closed ErrorKind. Structural problems with a vote or proposal
// are reported as *ValidationError.
package types
