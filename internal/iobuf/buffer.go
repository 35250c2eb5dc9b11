// Package iobuf implements the fixed-capacity, single-producer/
// single-consumer byte buffers LTX uses for the scheduler input and
// output streams.
//
// Both directions share the same shape: a backing array, a start
// offset and a used length, with start+used <= cap always held.
// Appending past capacity is a programming/protocol error, never a
// condition the buffer recovers from — the caller is expected to
// treat ErrOverflow as fatal.
package iobuf

import "github.com/pkg/errors"

// ErrOverflow is returned by Append when the buffer has no room left
// for the requested bytes, even after compaction.
var ErrOverflow = errors.New("iobuf: buffer overflow")

// Buffer is a fixed-capacity byte buffer with an explicit start
// cursor and used length. It never grows past its initial capacity.
type Buffer struct {
	data  []byte
	start int
	used  int
}

// New allocates a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Len reports how many unconsumed bytes the buffer currently holds.
func (b *Buffer) Len() int {
	return b.used
}

// Cap reports the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Free reports how many bytes may still be appended before the next
// Compact is required.
func (b *Buffer) Free() int {
	return len(b.data) - (b.start + b.used)
}

// Bytes returns a view of the unconsumed bytes. The slice aliases the
// buffer's backing array and is only valid until the next Compact or
// Append call.
func (b *Buffer) Bytes() []byte {
	return b.data[b.start : b.start+b.used]
}

// Append copies p onto the tail of the buffer, compacting first if
// that alone would make room. Returns ErrOverflow, without mutating
// the buffer, if p still would not fit after compaction.
func (b *Buffer) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	if len(p) > b.Free() {
		b.Compact()
	}

	if len(p) > b.Free() {
		return errors.Wrapf(ErrOverflow, "need %d, have %d of %d", len(p), b.Free(), len(b.data))
	}

	copy(b.data[b.start+b.used:], p)
	b.used += len(p)
	return nil
}

// Reserve exposes up to n bytes of free tail space for a direct read
// into the buffer (e.g. unix.Read(fd, buf.Reserve(n))), compacting
// first if needed. The caller must follow a successful read with
// Commit(nread).
func (b *Buffer) Reserve(n int) []byte {
	if n > b.Free() {
		b.Compact()
	}

	end := b.start + b.used + n
	if end > len(b.data) {
		end = len(b.data)
	}

	return b.data[b.start+b.used : end]
}

// Commit records that n bytes, previously handed out by Reserve, were
// actually filled in.
func (b *Buffer) Commit(n int) {
	b.used += n
}

// Consume advances the start cursor by n bytes, discarding them. It
// never compacts on its own.
func (b *Buffer) Consume(n int) {
	if n > b.used {
		n = b.used
	}

	b.start += n
	b.used -= n
}

// Compact moves the unconsumed residue down to offset 0. Any view
// previously returned by Bytes or Reserve is invalidated by this call
// — the wire decoder's zero-copy string/binary views must not be held
// across a Compact.
func (b *Buffer) Compact() {
	if b.start == 0 {
		return
	}

	if b.used > 0 {
		copy(b.data, b.data[b.start:b.start+b.used])
	}

	b.start = 0
}
