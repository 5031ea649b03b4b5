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

// Package amino implements the subset of the amino binary encoding spoken by
// validator nodes over the remote signer socket.
//
// Amino messages carry no explicit type tag. Instead every registered type
// name is hashed with SHA-256 and four bytes of the digest become the type
// prefix that precedes the protobuf-compatible body on the wire:
//
//	varint(len(prefix)+len(body)) || prefix || body
//
// The prefix derivation drops every zero byte of the digest, skips the first
// three surviving bytes, drops zero bytes again and keeps the next four. The
// deployed wire format depends on this exact sequence.
//
// Field encoding is delegated to google.golang.org/protobuf/encoding/protowire.
// Zero values are omitted on encode, matching amino's canonical form.
package amino
