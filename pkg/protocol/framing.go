package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LengthPrefixSize is the size in bytes of the big-endian frame length prefix.
const LengthPrefixSize = 4

// ErrFrameTooLarge is returned when a frame's declared length exceeds the
// decoder's configured maximum.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// EncodeFrame wraps an AEAD blob in a 4-byte big-endian length prefix, per
// spec §4.2 and §6.
func EncodeFrame(blob []byte) []byte {
	out := make([]byte, LengthPrefixSize+len(blob))
	binary.BigEndian.PutUint32(out[:LengthPrefixSize], uint32(len(blob)))
	copy(out[LengthPrefixSize:], blob)
	return out
}

// FrameDecoder incrementally peels complete length-prefixed frames off a
// growing byte buffer, preserving any trailing partial frame across calls.
// It is not safe for concurrent use; each connection owns exactly one.
type FrameDecoder struct {
	buf          []byte
	maxFrameSize uint32
}

// NewFrameDecoder creates a decoder that rejects any frame whose declared
// length exceeds maxFrameSize. A maxFrameSize of 0 selects DefaultMaxFrameSize.
func NewFrameDecoder(maxFrameSize uint32) *FrameDecoder {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &FrameDecoder{maxFrameSize: maxFrameSize}
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *FrameDecoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next extracts the next complete frame's payload, if the buffer currently
// holds one. ok is false and err is nil when more bytes are needed. err is
// non-nil only for a fatal oversize frame, per spec §4.2.
func (d *FrameDecoder) Next() (frame []byte, ok bool, err error) {
	if len(d.buf) < LengthPrefixSize {
		return nil, false, nil
	}

	length := binary.BigEndian.Uint32(d.buf[:LengthPrefixSize])
	if length > d.maxFrameSize {
		return nil, false, fmt.Errorf("%w: declared %d bytes, max %d", ErrFrameTooLarge, length, d.maxFrameSize)
	}

	total := LengthPrefixSize + int(length)
	if len(d.buf) < total {
		return nil, false, nil
	}

	frame = make([]byte, length)
	copy(frame, d.buf[LengthPrefixSize:total])
	d.buf = d.buf[total:]
	return frame, true, nil
}

// Pending reports the number of buffered, not-yet-consumable bytes.
func (d *FrameDecoder) Pending() int { return len(d.buf) }
