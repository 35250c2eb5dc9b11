package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/ltx/internal/logging"
	"github.com/canonical/ltx/internal/wire"
)

func newTestContext() *Context {
	return NewContext(logging.New())
}

func TestDispatchPingRepliesAckThenPong(t *testing.T) {
	c := newTestContext()

	enc := wire.NewEncoder()
	enc.ArrayHeader(1)
	enc.Uint(msgPing)
	require.NoError(t, c.In.Append(enc.Bytes()))

	require.NoError(t, c.Dispatch())
	assert.Equal(t, 0, c.In.Len(), "ping should be fully consumed")

	d := wire.NewDecoder(c.Out.Bytes())

	n, err := d.ArrayHeader()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mt, err := d.Uint()
	require.NoError(t, err)
	assert.EqualValues(t, msgPing, mt)

	n, err = d.ArrayHeader()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mt, err = d.Uint()
	require.NoError(t, err)
	assert.EqualValues(t, msgPong, mt)

	_, err = d.Uint() // now_ns
	require.NoError(t, err)
}

func TestDispatchIncompleteMessageWaitsForMoreBytes(t *testing.T) {
	c := newTestContext()

	// A ping array header with no type byte yet.
	require.NoError(t, c.In.Append([]byte{0x91}))

	require.NoError(t, c.Dispatch())
	assert.Equal(t, 1, c.In.Len(), "incomplete message must stay buffered")
	assert.Equal(t, 0, c.Out.Len())
}

func TestDispatchEmptyEnvelopeIsFatal(t *testing.T) {
	c := newTestContext()

	require.NoError(t, c.In.Append([]byte{0x90}))

	err := c.Dispatch()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDispatchUnknownMessageTypeIsFatal(t *testing.T) {
	c := newTestContext()

	enc := wire.NewEncoder()
	enc.ArrayHeader(1)
	enc.Uint(99)
	require.NoError(t, c.In.Append(enc.Bytes()))

	err := c.Dispatch()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDispatchExecWrongArityIsFatal(t *testing.T) {
	c := newTestContext()

	enc := wire.NewEncoder()
	enc.ArrayHeader(2)
	enc.Uint(msgExec)
	enc.Uint(0)
	require.NoError(t, c.In.Append(enc.Bytes()))

	err := c.Dispatch()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDispatchExecOutOfRangeSlotIsFatal(t *testing.T) {
	c := newTestContext()

	enc := wire.NewEncoder()
	enc.ArrayHeader(3)
	enc.Uint(msgExec)
	enc.Uint(200)
	enc.String("/bin/true")
	require.NoError(t, c.In.Append(enc.Bytes()))

	err := c.Dispatch()
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDispatchGetFileWrongArityIsFatal(t *testing.T) {
	c := newTestContext()

	enc := wire.NewEncoder()
	enc.ArrayHeader(1)
	enc.Uint(msgGetFile)
	require.NoError(t, c.In.Append(enc.Bytes()))

	err := c.Dispatch()
	assert.ErrorIs(t, err, ErrProtocol)
}
