//go:build linux

package agent

import (
	"golang.org/x/sys/unix"

	"github.com/canonical/ltx/internal/reactor"
)

// handleChildSignal reads every pending signalfd_siginfo record and
// emits a Result frame per exited child, mapping pid back to slot. The
// slot is retained, not freed, until its pipe also reports EOF, tracked
// via childtable.Table.Reusable.
func (c *Context) handleChildSignal(sigFd int, scratch []byte) error {
	infos, err := reactor.ReadSiginfos(sigFd, scratch)
	if err != nil {
		return Fatalf("signalfd read", "fd", sigFd, err)
	}

	for _, info := range infos {
		// signalfd only notifies; the kernel still needs an explicit
		// wait4 to retire the zombie. Non-blocking: SIGCHLD can
		// coalesce multiple exits into one signalfd record, and a
		// sibling's handler may have already reaped this pid first.
		var ws unix.WaitStatus
		for {
			_, err := unix.Wait4(int(info.Pid), &ws, unix.WNOHANG, nil)
			if err != unix.EINTR {
				break
			}
		}

		slot, ok := c.Table.FindByPID(int(info.Pid))
		if !ok {
			// A pid we never launched exited — e.g. a grandchild the
			// target program itself forked and didn't reap. Nothing
			// in the protocol names it; there is no slot to report
			// against, so it's silently reaped.
			continue
		}

		if err := c.appendResultFrame(slot, MonotonicNowNS(), uint8(info.Code), uint8(info.Status)); err != nil {
			return err
		}

		c.Table.MarkResultSent(slot)
		c.maybeFreeSlot(slot)
	}

	return nil
}

// maybeFreeSlot frees slot once both halves of the reuse condition
// hold: its Result has been emitted and its pipe has reached EOF. The
// pipe's epoll registration is already gone by the time its EOF was
// observed (handleChildOut removes it there), so this only needs to
// close the fd and clear the table entry.
func (c *Context) maybeFreeSlot(slot uint8) {
	if !c.Table.Reusable(slot) {
		return
	}

	if err := c.Table.Free(slot); err != nil {
		c.Log.WithError(err).WithField("slot", slot).Warn("failed to close child pipe")
	}
}
