// Package childtable implements the fixed-size slot table LTX keys
// concurrent child execution by. Slot ids are assigned by the
// scheduler, never by LTX; the table only tracks what is live.
package childtable

import (
	"os"

	"github.com/pkg/errors"
)

// MaxSlots is the slot id bound: ids are a 7-bit field on the wire, so
// valid ids are [0, MaxSlots).
const MaxSlots = 127

// ErrOccupied is returned by Allocate when the requested slot already
// holds a live child. Treated as fatal: the scheduler is expected
// never to reuse a slot before LTX frees it.
var ErrOccupied = errors.New("childtable: slot already occupied")

// ErrInvalidSlot is returned for any slot id outside [0, MaxSlots).
var ErrInvalidSlot = errors.New("childtable: slot id out of range")

// Slot records everything the reactor and message processor need to
// know about one live child: its pid and the read end of the pipe
// carrying its merged stdout+stderr. A slot is free when pid == 0.
type Slot struct {
	PID    int
	PipeRd *os.File

	// resultSent marks that the Result frame for this slot has been
	// emitted; the slot is only freed once that is true AND the pipe
	// has reached EOF.
	resultSent bool
	pipeEOF    bool
}

// Table is the fixed array of MaxSlots slots.
type Table struct {
	slots [MaxSlots]Slot
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Occupied reports whether slot currently holds a live child.
func (t *Table) Occupied(slot uint8) bool {
	if int(slot) >= MaxSlots {
		return false
	}

	return t.slots[slot].PID != 0
}

// Allocate records a newly launched child in slot. It fails if the
// slot is out of range or already occupied — the caller is expected
// to treat both as fatal protocol/resource errors.
func (t *Table) Allocate(slot uint8, pipeRd *os.File, pid int) error {
	if int(slot) >= MaxSlots {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", slot)
	}

	s := &t.slots[slot]
	if s.PID != 0 {
		return errors.Wrapf(ErrOccupied, "slot %d", slot)
	}

	s.PID = pid
	s.PipeRd = pipeRd
	s.resultSent = false
	s.pipeEOF = false
	return nil
}

// FindByPID linearly scans for the slot holding pid, the way the
// signal handler maps an exited pid back to its slot. It returns
// (0, false) if no live slot matches.
func (t *Table) FindByPID(pid int) (uint8, bool) {
	for i := range t.slots {
		if t.slots[i].PID == pid {
			return uint8(i), true
		}
	}

	return 0, false
}

// Slot returns a pointer to the slot record so callers can inspect or
// update its pipe/result bookkeeping.
func (t *Table) Slot(slot uint8) *Slot {
	return &t.slots[slot]
}

// MarkResultSent records that the Result frame for slot has been
// emitted.
func (t *Table) MarkResultSent(slot uint8) {
	t.slots[slot].resultSent = true
}

// MarkPipeEOF records that slot's pipe has reached EOF.
func (t *Table) MarkPipeEOF(slot uint8) {
	t.slots[slot].pipeEOF = true
}

// Reusable reports whether slot may be freed: its Result has been
// emitted and its pipe has reached EOF.
func (t *Table) Reusable(slot uint8) bool {
	s := &t.slots[slot]
	return s.PID != 0 && s.resultSent && s.pipeEOF
}

// Free releases slot, closing its pipe if still open. The caller must
// only call this once Reusable reports true.
func (t *Table) Free(slot uint8) error {
	s := &t.slots[slot]

	var err error
	if s.PipeRd != nil {
		err = s.PipeRd.Close()
		s.PipeRd = nil
	}

	s.PID = 0
	s.resultSent = false
	s.pipeEOF = false
	return err
}
