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
	"time"

	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// Timestamp is the amino encoding of a point in time.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// TimestampFromTime converts t to a Timestamp.
func TimestampFromTime(t time.Time) *Timestamp {
	return &Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the timestamp back to UTC time.
func (ts *Timestamp) Time() (time.Time, error) {
	if ts.Nanos < 0 || ts.Nanos >= int32(time.Second) {
		return time.Time{}, NewError(ErrorOutOfRange, "timestamp nanos %d", ts.Nanos)
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC(), nil
}

// MarshalAmino encodes the timestamp body.
func (ts *Timestamp) MarshalAmino() []byte {
	var e amino.Encoder
	e.PutVarint(1, ts.Seconds)
	e.PutVarint(2, int64(ts.Nanos))
	return e.Encoded()
}

// UnmarshalAmino decodes a timestamp body.
func (ts *Timestamp) UnmarshalAmino(b []byte) error {
	r := amino.NewFieldReader(b)
	for {
		f, ok, err := r.Next()
		if err != nil || !ok {
			return err
		}
		switch f.Num {
		case 1:
			ts.Seconds, err = f.Int64()
		case 2:
			ts.Nanos, err = f.Int32()
		}
		if err != nil {
			return err
		}
	}
}
