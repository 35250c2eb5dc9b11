//go:build linux

package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/ltx/internal/childtable"
	"github.com/canonical/ltx/internal/reactor"
)

type tag struct{ slot uint8 }

func TestLaunchRegistersPipeAndTableEntry(t *testing.T) {
	table := childtable.New()

	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	h, err := Launch(table, r, 0, tag{slot: 0}, "/bin/echo")
	require.NoError(t, err)
	require.NotNil(t, h.Cmd)

	assert.True(t, table.Occupied(0))

	slot, ok := table.FindByPID(h.Cmd.Process.Pid)
	require.True(t, ok)
	assert.EqualValues(t, 0, slot)

	events, err := r.Wait(5 * time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, tag{slot: 0}, events[0].Tag)
}

func TestLaunchRejectsUnknownPath(t *testing.T) {
	table := childtable.New()

	r, err := reactor.New()
	require.NoError(t, err)
	defer r.Close()

	_, err = Launch(table, r, 0, tag{slot: 0}, "/no/such/binary")
	assert.Error(t, err)
	assert.False(t, table.Occupied(0), "a failed launch must not leave a table entry")
}
