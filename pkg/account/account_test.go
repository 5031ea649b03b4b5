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

package account

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-kms/pkg/types"
)

func TestFromPublicKey(t *testing.T) {
	pub := []byte("validator public key")
	digest := sha256.Sum256(pub)

	id := FromPublicKey(pub)
	assert.Equal(t, digest[:Size], id.Bytes())
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(digest[:Size])), id.String())
}

func TestFromSecp256k1(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()

	id := FromSecp256k1(pub)
	assert.Equal(t, FromPublicKey(pub.SerializeCompressed()), id)

	fromCompressed, err := FromHexPublicKey(hex.EncodeToString(pub.SerializeCompressed()))
	require.NoError(t, err)
	assert.Equal(t, id, fromCompressed)

	fromUncompressed, err := FromHexPublicKey(hex.EncodeToString(pub.SerializeUncompressed()))
	require.NoError(t, err)
	assert.Equal(t, id, fromUncompressed)
}

func TestFromHexPublicKey_Raw(t *testing.T) {
	raw := make([]byte, 32)
	raw[0] = 0x42

	id, err := FromHexPublicKey(hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, FromPublicKey(raw), id)

	// Point-sized blobs that are not on the curve are digested as given.
	for _, size := range []int{secp256k1.PubKeyBytesLenCompressed, secp256k1.PubKeyBytesLenUncompressed} {
		blob := bytes.Repeat([]byte{0xFF}, size)
		id, err := FromHexPublicKey(hex.EncodeToString(blob))
		require.NoError(t, err)
		assert.Equal(t, FromPublicKey(blob), id)
	}

	_, err = FromHexPublicKey("zz")
	assert.Error(t, err)
	_, err = FromHexPublicKey("")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	const upper = "0123456789ABCDEF0123456789ABCDEF01234567"

	tests := []struct {
		name  string
		in    string
		valid bool
	}{
		{name: "upper", in: upper, valid: true},
		{name: "lower", in: strings.ToLower(upper), valid: true},
		{name: "mixed", in: "0123456789abcdefABCDEF0123456789abcdef01", valid: true},
		{name: "short", in: upper[:38]},
		{name: "long", in: upper + "00"},
		{name: "empty", in: ""},
		{name: "non hex", in: strings.Repeat("G", 40)},
		{name: "prefixed", in: "0x" + upper[:38]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := Parse(tt.in)
			if !tt.valid {
				var terr *types.Error
				require.True(t, errors.As(err, &terr), "got %v", err)
				assert.Equal(t, types.ErrorParse, terr.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToUpper(tt.in), id.String())
		})
	}
}

func TestHexRoundTrip(t *testing.T) {
	for i := 0; i < 32; i++ {
		var id ID
		for j := range id {
			id[j] = byte(i*31 + j*7)
		}
		parsed, err := Parse(id.String())
		require.NoError(t, err)
		assert.True(t, parsed.Equal(id))
	}
}

func TestEqual(t *testing.T) {
	a := FromPublicKey([]byte("a"))
	b := FromPublicKey([]byte("b"))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b))
}

func TestFormatting(t *testing.T) {
	id := ID{0xAB}
	assert.Equal(t, "account.ID(AB00000000000000000000000000000000000000)", fmt.Sprintf("%#v", id))

	data, err := json.Marshal(map[string]ID{"address": id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"AB00000000000000000000000000000000000000"}`, string(data))

	var decoded map[string]ID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded["address"])

	assert.Error(t, json.Unmarshal([]byte(`{"address":"nope"}`), &decoded))
}
