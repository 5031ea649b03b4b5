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

package amino

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Encoder appends amino fields to an internal buffer. Zero scalars and empty
// byte strings are omitted.
type Encoder struct {
	buf []byte
}

// PutUvarint writes an unsigned varint field.
func (e *Encoder) PutUvarint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

// PutVarint writes a signed varint field using two's complement, as amino
// does for int32 and int64.
func (e *Encoder) PutVarint(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(v))
}

// PutSfixed64 writes a fixed 8-byte signed field.
func (e *Encoder) PutSfixed64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed64Type)
	e.buf = protowire.AppendFixed64(e.buf, uint64(v))
}

// PutBytes writes a length-delimited byte field.
func (e *Encoder) PutBytes(num protowire.Number, v []byte) {
	if len(v) == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

// PutString writes a length-delimited string field.
func (e *Encoder) PutString(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

// PutMessage writes an embedded message. The field is written even when body
// is empty so that presence survives a round trip.
func (e *Encoder) PutMessage(num protowire.Number, body []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, body)
}

// Encoded returns the bytes written so far.
func (e *Encoder) Encoded() []byte {
	return e.buf
}

// LengthPrefixed frames body behind its registered prefix:
// varint(len(prefix)+len(body)) || prefix || body.
func LengthPrefixed(p Prefix, body []byte) []byte {
	n := uint64(PrefixLen + len(body))
	out := make([]byte, 0, protowire.SizeVarint(n)+int(n))
	out = protowire.AppendVarint(out, n)
	out = append(out, p[:]...)
	return append(out, body...)
}

// LengthDelimited prepends the varint length of body.
func LengthDelimited(body []byte) []byte {
	out := make([]byte, 0, protowire.SizeVarint(uint64(len(body)))+len(body))
	out = protowire.AppendVarint(out, uint64(len(body)))
	return append(out, body...)
}

// Field is one decoded tag/value pair.
type Field struct {
	Num  protowire.Number
	Type protowire.Type

	// scalar holds varint, fixed32 and fixed64 values.
	scalar uint64
	// bytes holds length-delimited values.
	bytes []byte
}

// FieldReader iterates over the fields of an encoded message.
type FieldReader struct {
	buf []byte
}

// NewFieldReader returns a reader over b.
func NewFieldReader(b []byte) *FieldReader {
	return &FieldReader{buf: b}
}

// Next returns the next field. ok is false once the input is exhausted.
// Groups are consumed and skipped.
func (r *FieldReader) Next() (f Field, ok bool, err error) {
	for len(r.buf) > 0 {
		num, typ, n := protowire.ConsumeTag(r.buf)
		if n < 0 {
			return Field{}, false, &DecodeError{Reason: "invalid tag", Err: protowire.ParseError(n)}
		}
		r.buf = r.buf[n:]
		f = Field{Num: num, Type: typ}

		switch typ {
		case protowire.VarintType:
			f.scalar, n = protowire.ConsumeVarint(r.buf)
		case protowire.Fixed64Type:
			f.scalar, n = protowire.ConsumeFixed64(r.buf)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(r.buf)
			f.scalar = uint64(v)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(r.buf)
		case protowire.StartGroupType:
			_, n = protowire.ConsumeGroup(num, r.buf)
			if n >= 0 {
				r.buf = r.buf[n:]
				continue
			}
		default:
			return Field{}, false, NewDecodeError(fmt.Sprintf("unexpected wire type %d for field %d", typ, num))
		}
		if n < 0 {
			return Field{}, false, &DecodeError{
				Reason: fmt.Sprintf("field %d", num),
				Err:    protowire.ParseError(n),
			}
		}
		r.buf = r.buf[n:]
		return f, true, nil
	}
	return Field{}, false, nil
}

func (f Field) expect(typ protowire.Type) error {
	if f.Type != typ {
		return NewDecodeError(fmt.Sprintf("field %d: wire type %d, want %d", f.Num, f.Type, typ))
	}
	return nil
}

// Uint64 returns a varint field as unsigned.
func (f Field) Uint64() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.scalar, nil
}

// Uint32 returns a varint field truncated to 32 bits.
func (f Field) Uint32() (uint32, error) {
	v, err := f.Uint64()
	return uint32(v), err
}

// Int64 returns a varint field as signed.
func (f Field) Int64() (int64, error) {
	v, err := f.Uint64()
	return int64(v), err
}

// Int32 returns a varint field as a signed 32-bit value.
func (f Field) Int32() (int32, error) {
	v, err := f.Uint64()
	return int32(v), err
}

// Sfixed64 returns a fixed 8-byte field as signed.
func (f Field) Sfixed64() (int64, error) {
	if err := f.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	return int64(f.scalar), nil
}

// Bytes returns a copy of a length-delimited field.
func (f Field) Bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.bytes...), nil
}

// String returns a length-delimited field as a string.
func (f Field) String() (string, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(f.bytes), nil
}

// Message returns the raw body of an embedded message without copying.
func (f Field) Message() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return f.bytes, nil
}
