package childtable

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFindFree(t *testing.T) {
	tbl := New()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, tbl.Allocate(3, r, 1234))
	assert.True(t, tbl.Occupied(3))

	slot, ok := tbl.FindByPID(1234)
	require.True(t, ok)
	assert.Equal(t, uint8(3), slot)

	assert.False(t, tbl.Reusable(3))
	tbl.MarkResultSent(3)
	assert.False(t, tbl.Reusable(3))
	tbl.MarkPipeEOF(3)
	assert.True(t, tbl.Reusable(3))

	require.NoError(t, tbl.Free(3))
	assert.False(t, tbl.Occupied(3))
}

func TestAllocateRejectsOccupiedSlot(t *testing.T) {
	tbl := New()

	r1, w1, err := os.Pipe()
	require.NoError(t, err)
	defer w1.Close()
	defer r1.Close()

	require.NoError(t, tbl.Allocate(0, r1, 1))

	r2, w2, err := os.Pipe()
	require.NoError(t, err)
	defer w2.Close()
	defer r2.Close()

	err = tbl.Allocate(0, r2, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOccupied)
}

func TestAllocateRejectsOutOfRangeSlot(t *testing.T) {
	tbl := New()
	err := tbl.Allocate(MaxSlots, nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSlot)
}

func TestFindByPIDMiss(t *testing.T) {
	tbl := New()
	_, ok := tbl.FindByPID(999)
	assert.False(t, ok)
}
