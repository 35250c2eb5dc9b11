// Package wire implements the minimal MessagePack subset the LTX
// protocol uses: fixarray/array16, the unsigned integer family,
// fixstr/str8/str16/str32, bin8/bin32 and nil. Every encode call
// emits the shortest form for its value; every decode call rejects
// anything else. This is deliberately not a general MessagePack codec:
// a generic decoder has no way to refuse non-canonical-but-valid
// encodings, and refusing them is the whole point.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Type tags, MessagePack section 2.
const (
	tagNilCode = 0xc0

	tagBin8  = 0xc4
	tagBin32 = 0xc6

	tagUint8  = 0xcc
	tagUint16 = 0xcd
	tagUint32 = 0xce
	tagUint64 = 0xcf

	tagStr8  = 0xd9
	tagStr16 = 0xda
	tagStr32 = 0xdb

	tagArray16 = 0xdc

	fixstrMask  = 0xe0 // top 3 bits of a fixstr tag: 101
	fixstrTag   = 0xa0
	fixarrayTag = 0x90
	fixarrayMax = 15
	fixintMax   = 0x7f
)

// ErrShort is returned by every Decoder read when the underlying
// bytes end mid-value. The caller must rewind to the start of the
// message and wait for more input — it is never a protocol violation
// on its own.
var ErrShort = errors.New("wire: short read")

// ErrProtocol marks a decode failure that is not recoverable by
// waiting for more bytes: a disallowed (non-shortest) encoding, a type
// tag the subset doesn't accept, or any other malformed input.
var ErrProtocol = errors.New("wire: protocol violation")

func protoErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrProtocol, format, args...)
}

// Encoder appends shortest-form MessagePack values to a destination
// slice. It never fails — callers are expected to size their
// destination (the output iobuf.Buffer) so that Append-time overflow
// is the only failure mode.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder that accumulates into an internal
// buffer, reusable across messages via Reset.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Reset discards any pending bytes so the Encoder can be reused.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the bytes accumulated since the last Reset.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Nil appends a nil value.
func (e *Encoder) Nil() {
	e.buf = append(e.buf, tagNilCode)
}

// Uint appends the shortest-form encoding of v.
func (e *Encoder) Uint(v uint64) {
	switch {
	case v <= fixintMax:
		e.buf = append(e.buf, byte(v))
	case v <= math.MaxUint8:
		e.buf = append(e.buf, tagUint8, byte(v))
	case v <= math.MaxUint16:
		e.buf = append(e.buf, tagUint16, 0, 0)
		binary.BigEndian.PutUint16(e.buf[len(e.buf)-2:], uint16(v))
	case v <= math.MaxUint32:
		e.buf = append(e.buf, tagUint32, 0, 0, 0, 0)
		binary.BigEndian.PutUint32(e.buf[len(e.buf)-4:], uint32(v))
	default:
		e.buf = append(e.buf, tagUint64, 0, 0, 0, 0, 0, 0, 0, 0)
		binary.BigEndian.PutUint64(e.buf[len(e.buf)-8:], v)
	}
}

// ArrayHeader appends a fixarray or array16 header for n elements.
// The protocol never needs array32 — array16 only ever covers
// messages with unusually large payloads.
func (e *Encoder) ArrayHeader(n int) {
	switch {
	case n <= fixarrayMax:
		e.buf = append(e.buf, fixarrayTag|byte(n))
	default:
		e.buf = append(e.buf, tagArray16, 0, 0)
		binary.BigEndian.PutUint16(e.buf[len(e.buf)-2:], uint16(n))
	}
}

// String appends the shortest-form string header plus s's bytes.
func (e *Encoder) String(s string) {
	n := len(s)
	switch {
	case n < 32:
		e.buf = append(e.buf, fixstrTag|byte(n))
	case n <= math.MaxUint8:
		e.buf = append(e.buf, tagStr8, byte(n))
	case n <= math.MaxUint16:
		e.buf = append(e.buf, tagStr16, 0, 0)
		binary.BigEndian.PutUint16(e.buf[len(e.buf)-2:], uint16(n))
	default:
		e.buf = append(e.buf, tagStr32, 0, 0, 0, 0)
		binary.BigEndian.PutUint32(e.buf[len(e.buf)-4:], uint32(n))
	}

	e.buf = append(e.buf, s...)
}

// BinaryHeader appends a bin8 or bin32 header for n bytes of payload
// that the caller will stream separately (Get-file's Data frame body
// is sent via sendfile, not copied through the encoder). The protocol
// only ever needs these two widths.
func (e *Encoder) BinaryHeader(n int) {
	switch {
	case n <= math.MaxUint8:
		e.buf = append(e.buf, tagBin8, byte(n))
	default:
		e.buf = append(e.buf, tagBin32, 0, 0, 0, 0)
		binary.BigEndian.PutUint32(e.buf[len(e.buf)-4:], uint32(n))
	}
}

// Binary appends a shortest-form binary header plus b's bytes.
func (e *Encoder) Binary(b []byte) {
	e.BinaryHeader(len(b))
	e.buf = append(e.buf, b...)
}

// Decoder reads values from a byte slice under a cursor, never
// copying string/binary payloads. All read methods return ErrShort
// when the slice ends mid-value; the caller must not advance past
// that point and must retry once more bytes are available.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder wraps b for decoding. b is not copied: any string/binary
// view a read returns aliases b and is valid only as long as b itself
// is — it must not be compacted away while a view is live.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{data: b}
}

// Pos reports how many bytes of the input have been consumed so far.
func (d *Decoder) Pos() int {
	return d.pos
}

func (d *Decoder) remaining() int {
	return len(d.data) - d.pos
}

func (d *Decoder) need(n int) error {
	if d.remaining() < n {
		return ErrShort
	}

	return nil
}

func (d *Decoder) byte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}

	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}

	v := d.data[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

// PeekTag returns the next tag byte without consuming it.
func (d *Decoder) PeekTag() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}

	return d.data[d.pos], nil
}

// Nil consumes a nil value.
func (d *Decoder) Nil() error {
	tag, err := d.byte()
	if err != nil {
		return err
	}

	if tag != tagNilCode {
		return protoErrorf("expected nil, got tag 0x%02x", tag)
	}

	return nil
}

// ArrayHeader reads a fixarray or array16 header and returns its
// element count.
func (d *Decoder) ArrayHeader() (int, error) {
	tag, err := d.byte()
	if err != nil {
		return 0, err
	}

	switch {
	case tag&0xf0 == fixarrayTag:
		return int(tag & 0x0f), nil
	case tag == tagArray16:
		b, err := d.take(2)
		if err != nil {
			return 0, err
		}

		n := binary.BigEndian.Uint16(b)
		if n <= fixarrayMax {
			return 0, protoErrorf("array16 header %d should have been fixarray", n)
		}

		return int(n), nil
	default:
		return 0, protoErrorf("unexpected array tag 0x%02x", tag)
	}
}

// Uint reads an unsigned integer in its shortest form and returns it
// widened to uint64.
func (d *Decoder) Uint() (uint64, error) {
	tag, err := d.byte()
	if err != nil {
		return 0, err
	}

	switch {
	case tag <= fixintMax:
		return uint64(tag), nil
	case tag == tagUint8:
		b, err := d.byte()
		if err != nil {
			return 0, err
		}

		if b <= fixintMax {
			return 0, protoErrorf("uint8 %d should have been fixint", b)
		}

		return uint64(b), nil
	case tag == tagUint16:
		b, err := d.take(2)
		if err != nil {
			return 0, err
		}

		v := binary.BigEndian.Uint16(b)
		if v <= math.MaxUint8 {
			return 0, protoErrorf("uint16 %d should have been a narrower form", v)
		}

		return uint64(v), nil
	case tag == tagUint32:
		b, err := d.take(4)
		if err != nil {
			return 0, err
		}

		v := binary.BigEndian.Uint32(b)
		if v <= math.MaxUint16 {
			return 0, protoErrorf("uint32 %d should have been a narrower form", v)
		}

		return uint64(v), nil
	case tag == tagUint64:
		b, err := d.take(8)
		if err != nil {
			return 0, err
		}

		v := binary.BigEndian.Uint64(b)
		if v <= math.MaxUint32 {
			return 0, protoErrorf("uint64 %d should have been a narrower form", v)
		}

		return v, nil
	default:
		return 0, protoErrorf("unexpected uint tag 0x%02x", tag)
	}
}

// String reads a fixstr/str8/str16/str32 header and returns a
// zero-copy view of its bytes.
func (d *Decoder) String() ([]byte, error) {
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}

	var n int
	switch {
	case tag&fixstrMask == fixstrTag:
		n = int(tag & 0x1f)
	case tag == tagStr8:
		b, err := d.byte()
		if err != nil {
			return nil, err
		}

		n = int(b)
		if n < 32 {
			return nil, protoErrorf("str8 length %d should have been fixstr", n)
		}
	case tag == tagStr16:
		b, err := d.take(2)
		if err != nil {
			return nil, err
		}

		n = int(binary.BigEndian.Uint16(b))
		if n <= math.MaxUint8 {
			return nil, protoErrorf("str16 length %d should have been a narrower form", n)
		}
	case tag == tagStr32:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}

		n = int(binary.BigEndian.Uint32(b))
		if n <= math.MaxUint16 {
			return nil, protoErrorf("str32 length %d should have been a narrower form", n)
		}
	default:
		return nil, protoErrorf("unexpected string tag 0x%02x", tag)
	}

	return d.take(n)
}

// Binary reads a bin8/bin16/bin32 header and returns a zero-copy view
// of its bytes. Decode accepts bin16 even though the encoder never
// emits it, for symmetry with any future reserved message that might
// carry one; nothing in the current core sends bin16 over the wire.
func (d *Decoder) Binary() ([]byte, error) {
	tag, err := d.byte()
	if err != nil {
		return nil, err
	}

	var n int
	switch tag {
	case tagBin8:
		b, err := d.byte()
		if err != nil {
			return nil, err
		}

		n = int(b)
	case 0xc5: // bin16
		b, err := d.take(2)
		if err != nil {
			return nil, err
		}

		n = int(binary.BigEndian.Uint16(b))
		if n <= math.MaxUint8 {
			return nil, protoErrorf("bin16 length %d should have been bin8", n)
		}
	case tagBin32:
		b, err := d.take(4)
		if err != nil {
			return nil, err
		}

		n = int(binary.BigEndian.Uint32(b))
		if n <= math.MaxUint8 {
			return nil, protoErrorf("bin32 length %d should have been bin8", n)
		}
	default:
		return nil, protoErrorf("unexpected binary tag 0x%02x", tag)
	}

	return d.take(n)
}
