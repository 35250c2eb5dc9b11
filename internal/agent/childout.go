//go:build linux

package agent

import "golang.org/x/sys/unix"

// handleChildOut reads up to ChildReadChunk bytes from slot's pipe,
// wrapping whatever arrived into a Log frame. On EOF it deregisters
// the pipe from the reactor and marks the slot's pipe side done; the
// slot itself is only freed once its Result has also been emitted
// (handled by maybeFreeSlot, called from both this path and the
// signal path since either can finish last).
func (c *Context) handleChildOut(slot uint8) error {
	s := c.Table.Slot(slot)
	if s.PipeRd == nil {
		// The slot was already freed (e.g. a stray wakeup after Free
		// closed the fd but before epoll forgot about it); nothing to
		// do.
		return nil
	}

	buf := make([]byte, ChildReadChunk)

	n, err := unix.Read(int(s.PipeRd.Fd()), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return nil
		}

		if err != unix.EIO {
			return Fatalf("read child pipe", "slot", slot, err)
		}

		// EIO here means the pty/pipe's other end is gone; treat like EOF.
		n = 0
	}

	if n > 0 {
		slotCopy := slot
		if err := c.appendLogFrame(&slotCopy, MonotonicNowNS(), string(buf[:n])); err != nil {
			return err
		}

		return nil
	}

	if err := c.React.Remove(int(s.PipeRd.Fd())); err != nil {
		c.Log.WithError(err).WithField("slot", slot).Warn("failed to deregister child pipe")
	}

	c.Table.MarkPipeEOF(slot)
	c.maybeFreeSlot(slot)

	return nil
}
