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
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jeremyhahn/go-kms/pkg/amino"
)

// MaxMsgLen bounds the declared length of a frame and the size of the read
// buffer.
const MaxMsgLen = 1024

// Frame is one length-prefixed message as read from the wire.
type Frame struct {
	// Length is the declared number of bytes after the length field.
	Length uint64
	// Prefix is the type prefix. It is zero when Length is too small to hold
	// one.
	Prefix amino.Prefix
	// Raw holds the whole frame, length field included.
	Raw []byte

	bodyOffset int
}

// Body returns the bytes following the type prefix.
func (f *Frame) Body() []byte {
	if f.bodyOffset >= len(f.Raw) {
		return nil
	}
	return f.Raw[f.bodyOffset:]
}

// ReadFrame performs a single read of at most MaxMsgLen bytes from r and
// slices one frame out of it. Bytes past the declared frame length are
// discarded.
func ReadFrame(r io.Reader) (*Frame, error) {
	var buf [MaxMsgLen]byte
	n, err := r.Read(buf[:])
	if n == 0 && err != nil {
		return nil, err
	}
	if n < amino.PrefixLen {
		return nil, ErrNotEnoughBytes
	}
	return sliceFrame(buf[:n])
}

// sliceFrame validates the length field of b and copies out the frame it
// declares.
func sliceFrame(b []byte) (*Frame, error) {
	length, sz := protowire.ConsumeVarint(b)
	if sz < 0 {
		return nil, &amino.DecodeError{Reason: "frame length", Err: protowire.ParseError(sz)}
	}
	if length > MaxMsgLen {
		return nil, fmt.Errorf("%w: declared length %d exceeds %d", ErrMessageTooLarge, length, MaxMsgLen)
	}

	total := protowire.SizeVarint(length) + int(length)
	if total > len(b) {
		return nil, fmt.Errorf("%w: have %d of %d bytes", ErrShortRead, len(b), total)
	}

	f := &Frame{
		Length:     length,
		Raw:        append([]byte(nil), b[:total]...),
		bodyOffset: sz + amino.PrefixLen,
	}
	if length >= amino.PrefixLen {
		copy(f.Prefix[:], f.Raw[sz:sz+amino.PrefixLen])
	}
	return f, nil
}

// writeFrame encodes body behind prefix and writes it with a single Write.
func writeFrame(w io.Writer, p amino.Prefix, body []byte) error {
	out := amino.LengthPrefixed(p, body)
	if len(out) > MaxMsgLen {
		return &amino.EncodeError{Reason: fmt.Sprintf("frame of %d bytes exceeds %d", len(out), MaxMsgLen)}
	}
	_, err := w.Write(out)
	return err
}
