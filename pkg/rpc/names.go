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

package rpc

import (
	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// Registered amino names of the remote signer messages.
const (
	SignVoteRequestName        = "tendermint/remotesigner/SignVoteRequest"
	SignProposalRequestName    = "tendermint/remotesigner/SignProposalRequest"
	PubKeyRequestName          = "tendermint/remotesigner/PubKeyRequest"
	PingRequestName            = "tendermint/remotesigner/PingRequest"
	SignedVoteResponseName     = "tendermint/remotesigner/SignedVoteResponse"
	SignedProposalResponseName = "tendermint/remotesigner/SignedProposalResponse"
	PubKeyResponseName         = "tendermint/remotesigner/PubKeyResponse"
	PingResponseName           = "tendermint/remotesigner/PingResponse"
)

// Registry holds the prefixes of every remote signer message. It is built
// once during initialization and never modified.
var Registry = amino.MustNewRegistry(
	SignVoteRequestName,
	SignProposalRequestName,
	PubKeyRequestName,
	PingRequestName,
	SignedVoteResponseName,
	SignedProposalResponseName,
	PubKeyResponseName,
	PingResponseName,
)

var (
	signVotePrefix       = mustPrefix(SignVoteRequestName)
	signProposalPrefix   = mustPrefix(SignProposalRequestName)
	pubKeyPrefix         = mustPrefix(PubKeyRequestName)
	pingPrefix           = mustPrefix(PingRequestName)
	signedVotePrefix     = mustPrefix(SignedVoteResponseName)
	signedProposalPrefix = mustPrefix(SignedProposalResponseName)
	pubKeyResponsePrefix = mustPrefix(PubKeyResponseName)
	pingResponsePrefix   = mustPrefix(PingResponseName)
)

func mustPrefix(name string) amino.Prefix {
	p, err := Registry.Prefix(name)
	if err != nil {
		panic(err)
	}
	return p
}
