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

// Package rpc reads and writes the framed messages exchanged with a
// validator node over the remote signer socket.
//
// A validator sends one request per frame and waits for the matching
// response:
//
//	SignVoteRequest     -> SignedVoteResponse
//	SignProposalRequest -> SignedProposalResponse
//	PubKeyRequest       -> PubKeyResponse
//	PingRequest         -> PingResponse
//
// Frames never exceed MaxMsgLen bytes. The message type is recognized by
// its four-byte amino prefix; frames with any other prefix are rejected.
package rpc
