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
	"fmt"

	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// RemoteSignerError is the error carried in a response when the signer
// refuses or fails a request. Code holds the numeric error kind.
type RemoteSignerError struct {
	Code        int32
	Description string
}

func (e *RemoteSignerError) Error() string {
	return fmt.Sprintf("remote signer error %d: %s", e.Code, e.Description)
}

// MarshalAmino encodes the error body.
func (e *RemoteSignerError) MarshalAmino() []byte {
	var enc amino.Encoder
	enc.PutVarint(1, int64(e.Code))
	enc.PutString(2, e.Description)
	return enc.Encoded()
}

// UnmarshalAmino decodes an error body.
func (e *RemoteSignerError) UnmarshalAmino(b []byte) error {
	r := amino.NewFieldReader(b)
	for {
		f, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			e.Code, err = f.Int32()
		case 2:
			e.Description, err = f.String()
		}
		if err != nil {
			return err
		}
	}
}
