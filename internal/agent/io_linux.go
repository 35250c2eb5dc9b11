//go:build linux

package agent

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// errBufferFull marks the input buffer capacity error: if an append
// would exceed capacity, the program aborts rather than growing.
var errBufferFull = errors.New("agent: input buffer is full")

// MakeStdoutNonblocking puts StdoutFd into non-blocking mode. Called
// once at startup; bulk transfer (handleGetFile) later borrows
// blocking mode for its duration via withBlockingStdout.
func (c *Context) MakeStdoutNonblocking() error {
	return errors.Wrap(unix.SetNonblock(c.StdoutFd, true), "set stdout non-blocking")
}

// drainOutputNonBlocking writes as much of Out as the non-blocking
// stdout fd will currently accept. EAGAIN sets OutputBlocked and is
// not an error; any other write failure is fatal.
func (c *Context) drainOutputNonBlocking() error {
	for c.Out.Len() > 0 {
		n, err := unix.Write(c.StdoutFd, c.Out.Bytes())
		if err != nil {
			if err == unix.EAGAIN {
				c.OutputBlocked = true
				return nil
			}

			if err == unix.EINTR {
				continue
			}

			return Fatalf("write stdout", "fd", c.StdoutFd, err)
		}

		c.Out.Consume(n)
	}

	return nil
}

// withBlockingStdout flips StdoutFd to blocking mode for the duration
// of fn, restoring non-blocking mode on every exit path including a
// panic, via a scoped acquisition so the flag is never left stuck.
func (c *Context) withBlockingStdout(fn func() error) error {
	if err := unix.SetNonblock(c.StdoutFd, false); err != nil {
		return errors.Wrap(err, "set stdout blocking")
	}

	defer func() {
		_ = unix.SetNonblock(c.StdoutFd, true)
	}()

	return fn()
}

// drainOutputBlocking fully flushes Out with blocking writes. Callers
// must already be inside withBlockingStdout.
func (c *Context) drainOutputBlocking() error {
	for c.Out.Len() > 0 {
		n, err := unix.Write(c.StdoutFd, c.Out.Bytes())
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return Fatalf("write stdout (blocking)", "fd", c.StdoutFd, err)
		}

		c.Out.Consume(n)
	}

	c.OutputBlocked = false
	return nil
}
