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
	"bytes"
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind ErrorKind
	}{
		{name: "simple", in: "cosmoshub-4"},
		{name: "dots and underscores", in: "test_chain.1"},
		{name: "max length", in: strings.Repeat("a", 50)},
		{name: "empty", in: "", kind: ErrorLength},
		{name: "too long", in: strings.Repeat("a", 51), kind: ErrorLength},
		{name: "space", in: "bad chain", kind: ErrorParse},
		{name: "slash", in: "bad/chain", kind: ErrorParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseChainID(tt.in)
			if tt.kind == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.in, id.String())
				return
			}
			var terr *Error
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.kind, terr.Kind)
		})
	}
}

func TestBlockID(t *testing.T) {
	var nilID *BlockID
	assert.True(t, nilID.IsZero())
	assert.True(t, (&BlockID{}).IsZero())
	assert.True(t, nilID.Equal(&BlockID{PartsHeader: &PartSetHeader{}}))
	assert.NoError(t, nilID.ValidateBasic())
	assert.Equal(t, "", nilID.String())

	id := testBlockID()
	assert.False(t, id.IsZero())
	assert.True(t, id.IsComplete())
	assert.True(t, id.Equal(testBlockID()))
	assert.Equal(t, strings.Repeat("AB", HashSize), id.String())

	other := testBlockID()
	other.PartsHeader.Total = 2
	assert.False(t, id.Equal(other))
	assert.False(t, id.Equal(nil))

	var decoded BlockID
	require.NoError(t, decoded.UnmarshalAmino(id.MarshalAmino()))
	assert.Equal(t, id, &decoded)
}

func TestBlockID_ValidateBasic(t *testing.T) {
	id := testBlockID()
	id.PartsHeader.Total = -1
	assert.Error(t, id.ValidateBasic())

	id = testBlockID()
	id.PartsHeader.Hash = []byte{1}
	assert.Error(t, id.ValidateBasic())
}

func TestTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 42, time.UTC)
	ts := TimestampFromTime(now)

	var decoded Timestamp
	require.NoError(t, decoded.UnmarshalAmino(ts.MarshalAmino()))
	got, err := decoded.Time()
	require.NoError(t, err)
	assert.True(t, now.Equal(got))

	_, err = (&Timestamp{Nanos: -1}).Time()
	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrorOutOfRange, terr.Kind)
}

func TestRemoteSignerError_RoundTrip(t *testing.T) {
	e := &RemoteSignerError{Code: 14, Description: "attempted double sign"}

	var got RemoteSignerError
	require.NoError(t, got.UnmarshalAmino(e.MarshalAmino()))
	assert.Equal(t, e, &got)
	assert.Equal(t, "remote signer error 14: attempted double sign", got.Error())
}

func TestPubKeyEd25519(t *testing.T) {
	pub := ed25519.PublicKey(bytes.Repeat([]byte{0x42}, ed25519.PublicKeySize))

	enc, err := EncodePubKeyEd25519(pub)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x16, 0x24, 0xDE, 0x64, 0x20}, enc[:5])
	assert.Len(t, enc, 37)

	dec, err := DecodePubKeyEd25519(enc)
	require.NoError(t, err)
	assert.Equal(t, pub, dec)

	_, err = EncodePubKeyEd25519(pub[:10])
	assert.Error(t, err)

	enc[0] ^= 0xFF
	_, err = DecodePubKeyEd25519(enc)
	assert.Error(t, err)

	_, err = DecodePubKeyEd25519(enc[:10])
	assert.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	msg := []byte("consensus")
	sig := ed25519.Sign(priv, msg)

	assert.NoError(t, VerifySignature(pub, msg, sig))

	err = VerifySignature(pub, []byte("other"), sig)
	var terr *Error
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrorSignatureInvalid, terr.Kind)

	err = VerifySignature(pub[:3], msg, sig)
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, ErrorInvalidKey, terr.Kind)
}

func TestError(t *testing.T) {
	err := NewError(ErrorParse, "bad %s", "input")
	assert.Equal(t, "types: parse error: bad input", err.Error())
	assert.Equal(t, "types: cryptographic error", (&Error{Kind: ErrorCrypto}).Error())
	assert.ErrorContains(t, err.Unwrap(), "bad input")
}
