package iobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendConsumeCompact(t *testing.T) {
	b := New(8)

	require.NoError(t, b.Append([]byte("ab")))
	require.NoError(t, b.Append([]byte("cd")))
	assert.Equal(t, []byte("abcd"), b.Bytes())

	b.Consume(2)
	assert.Equal(t, []byte("cd"), b.Bytes())
	assert.Equal(t, 4, b.Free())

	b.Compact()
	assert.Equal(t, []byte("cd"), b.Bytes())

	require.NoError(t, b.Append([]byte("efgh")))
	assert.Equal(t, []byte("cdefgh"), b.Bytes())
}

func TestAppendOverflowIsFatal(t *testing.T) {
	b := New(4)

	require.NoError(t, b.Append([]byte("ab")))
	b.Consume(2)

	// Without compaction this would not fit before start=2; Append
	// compacts internally so this still succeeds.
	require.NoError(t, b.Append([]byte("abcd")))

	err := b.Append([]byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestReserveCommit(t *testing.T) {
	b := New(8)
	require.NoError(t, b.Append([]byte("xy")))

	dst := b.Reserve(4)
	require.Len(t, dst, 4)
	copy(dst, "ZZZZ")
	b.Commit(4)

	assert.Equal(t, []byte("xyZZZZ"), b.Bytes())
}
