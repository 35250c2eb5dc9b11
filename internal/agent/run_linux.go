//go:build linux

package agent

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/canonical/ltx/internal/reactor"
)

// pollTimeout is the modest per-iteration epoll_wait timeout.
const pollTimeout = 100 * time.Millisecond

type schedInTag struct{}
type schedOutTag struct{}
type signalTag struct{}

// Run drives the single-threaded, epoll-based event loop until stdin
// hangs up and any in-flight output has drained. It owns the
// signalfd's lifetime; everything else registered with React is the
// caller's to clean up.
//
// It pins its goroutine to its OS thread for the lifetime of the loop
// before creating the signalfd. PthreadSigmask only blocks SIGCHLD on
// the calling thread, not process-wide; without LockOSThread the Go
// runtime could schedule this goroutine onto a different thread after
// any blocking syscall, or the kernel could choose to deliver SIGCHLD
// to one of the other threads the runtime already has running (e.g.
// sysmon) that never had the signal blocked. Either way the signal
// would hit a thread with the default disposition (ignore) and be
// silently dropped before the signalfd ever reads it, permanently
// stranding that child's slot.
func (c *Context) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := c.React.AddLevelReadable(c.StdinFd, schedInTag{}); err != nil {
		return err
	}

	if err := c.React.AddEdgeWritable(c.StdoutFd, schedOutTag{}); err != nil {
		return err
	}

	sigFd, err := reactor.NewChildSignalFD()
	if err != nil {
		return err
	}
	defer unix.Close(sigFd)

	if err := c.React.AddLevelReadable(sigFd, signalTag{}); err != nil {
		return err
	}

	sigScratch := make([]byte, 16*reactor.SizeofSiginfo)

	for !c.Stopping {
		events, err := c.React.Wait(pollTimeout)
		if err != nil {
			return err
		}

		for _, ev := range events {
			if err := c.dispatchEvent(ev, sigFd, sigScratch); err != nil {
				return err
			}
		}

		if c.Out.Len() > 0 && !c.OutputBlocked {
			if err := c.drainOutputNonBlocking(); err != nil {
				return err
			}
		}
	}

	// Finish any pending drain before reporting clean shutdown: LTX
	// terminates when its input stream hangs up, but only after every
	// queued frame has actually reached the scheduler.
	return c.withBlockingStdout(c.drainOutputBlocking)
}

func (c *Context) dispatchEvent(ev reactor.Event, sigFd int, sigScratch []byte) error {
	switch tag := ev.Tag.(type) {
	case schedInTag:
		if ev.HangUp {
			c.Stopping = true
		}

		if ev.Readable {
			if err := c.readSchedIn(); err != nil {
				return err
			}
		}

	case schedOutTag:
		c.OutputBlocked = false

	case signalTag:
		return c.handleChildSignal(sigFd, sigScratch)

	case childOutTag:
		return c.handleChildOut(tag.Slot)
	}

	return nil
}

// readSchedIn fills In with one read of whatever stdin currently has
// ready, then runs the message processor over it.
func (c *Context) readSchedIn() error {
	dst := c.In.Reserve(c.In.Free())
	if len(dst) == 0 {
		return Fatalf("input buffer", "free", 0, errBufferFull)
	}

	n, err := unix.Read(c.StdinFd, dst)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return nil
		}

		return Fatalf("read stdin", "fd", c.StdinFd, err)
	}

	if n == 0 {
		c.Stopping = true
		return nil
	}

	c.In.Commit(n)

	return c.Dispatch()
}
