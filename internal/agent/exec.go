package agent

import (
	"github.com/canonical/ltx/internal/childtable"
	"github.com/canonical/ltx/internal/process"
	"github.com/canonical/ltx/internal/wire"
)

// childOutTag is the reactor.Tag a child's pipe read end is
// registered under; slot is what maps a ready fd back to its table
// entry without a back-pointer.
type childOutTag struct {
	Slot uint8
}

// handleExec validates and executes an Exec message already past its
// array header and type byte; n is the envelope's declared arity.
// This core only ever forwards argv = [path]: any additional elements
// mean the scheduler expects argv support this core doesn't have,
// which is fatal rather than silently ignored.
func (c *Context) handleExec(d *wire.Decoder, n int) error {
	slot64, err := d.Uint()
	if err != nil {
		return err
	}

	if slot64 >= childtable.MaxSlots {
		return protoErrorf("exec slot %d out of range", slot64)
	}

	slot := uint8(slot64)

	// The path must be a fixstr or str8; str16 (0xda) and str32 (0xdb)
	// are rejected.
	tag, err := d.PeekTag()
	if err != nil {
		return err
	}

	if tag == 0xda || tag == 0xdb {
		return protoErrorf("exec path for slot %d must be fixstr or str8, got tag 0x%02x", slot, tag)
	}

	pathBytes, err := d.String()
	if err != nil {
		return err
	}

	path := string(pathBytes)

	extra := n - 3
	for i := 0; i < extra; i++ {
		// Consume whatever tag is there just to keep the cursor
		// correct, without interpreting it — the arity check below
		// turns it fatal regardless of what it decodes to.
		if _, err := skipValue(d); err != nil {
			return err
		}
	}

	if extra > 0 {
		return protoErrorf("exec for slot %d carries %d extra argv elements, unimplemented in this core", slot, extra)
	}

	if c.Table.Occupied(slot) {
		return protoErrorf("exec for slot %d: slot already occupied", slot)
	}

	if err := c.appendExecAck(slot, path); err != nil {
		return err
	}

	_, err = process.Launch(c.Table, c.React, slot, childOutTag{Slot: slot}, path)
	if err != nil {
		return Fatalf("exec", "path", path, err)
	}

	return nil
}

// skipValue decodes and discards one value of unknown shape, just
// enough to keep the cursor correct. It only needs to understand the
// handful of tags Exec's reserved argv slots could plausibly carry —
// nil or a string — since the protocol never sends anything richer
// there in the current core.
func skipValue(d *wire.Decoder) (struct{}, error) {
	tag, err := d.PeekTag()
	if err != nil {
		return struct{}{}, err
	}

	if tag == 0xc0 {
		return struct{}{}, d.Nil()
	}

	_, err = d.String()
	return struct{}{}, err
}
