package agent

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrnoNameRendersSymbolicName(t *testing.T) {
	assert.Equal(t, "EAGAIN", errnoName(syscall.EAGAIN))
	assert.Equal(t, "ENOTDIR", errnoName(syscall.ENOTDIR))
}

func TestErrnoNameFallsBackToNumericNotProse(t *testing.T) {
	got := errnoName(syscall.Errno(0xffff))
	assert.NotContains(t, got, " ", "an unknown errno must never render as a human sentence")
}

func TestErrnoNameNilIsDash(t *testing.T) {
	assert.Equal(t, "-", errnoName(nil))
}
