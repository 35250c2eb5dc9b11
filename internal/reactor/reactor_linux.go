//go:build linux

// Package reactor implements the readiness-based multiplexer LTX's
// event loop runs on: one epoll_wait per iteration with a modest
// timeout, dispatching each ready fd to whatever the caller registered
// against it.
//
// Reactor itself knows nothing about scheduler messages, child slots
// or log frames — callers register an opaque Tag per fd and get it
// back in the Event. The event source kinds are modeled as a tagged
// variant rather than virtual dispatch: the variant lives one layer
// up, in internal/agent, and Reactor just carries the tag through.
package reactor

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Tag identifies the logical source behind a registered fd. Callers
// define their own concrete tag type (typically a small tagged
// struct/interface); Reactor only threads it through unmodified.
type Tag any

// Event describes one ready fd as epoll_wait reported it.
type Event struct {
	Tag      Tag
	Readable bool
	Writable bool
	HangUp   bool
	Err      bool
}

// Reactor wraps a single epoll instance plus the tag table needed to
// translate epoll_event.data back into the caller's Tag, since epoll
// only round-trips a uint64/fd, not an arbitrary Go value.
type Reactor struct {
	epfd int
	tags map[int]Tag
}

// New creates a new epoll instance.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}

	return &Reactor{epfd: epfd, tags: make(map[int]Tag)}, nil
}

// Close releases the epoll instance. It does not close any
// registered fds — those remain owned by their registrants.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}

func (r *Reactor) ctl(op int, fd int, events uint32, tag Tag) error {
	event := unix.EpollEvent{Events: events, Fd: int32(fd)}

	if err := unix.EpollCtl(r.epfd, op, fd, &event); err != nil {
		return errors.Wrapf(err, "epoll_ctl fd=%d op=%d", fd, op)
	}

	if op == unix.EPOLL_CTL_DEL {
		delete(r.tags, fd)
	} else {
		r.tags[fd] = tag
	}

	return nil
}

// AddLevelReadable registers fd as level-triggered readable — used
// for scheduler stdin and every child pipe.
func (r *Reactor) AddLevelReadable(fd int, tag Tag) error {
	return r.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN, tag)
}

// AddEdgeWritable registers fd as edge-triggered writable — used for
// scheduler stdout, which must stay non-blocking and edge-triggered.
func (r *Reactor) AddEdgeWritable(fd int, tag Tag) error {
	return r.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLOUT|unix.EPOLLET, tag)
}

// Remove deregisters fd. The fd itself is left open; closing it is
// the registrant's responsibility.
func (r *Reactor) Remove(fd int) error {
	return r.ctl(unix.EPOLL_CTL_DEL, fd, 0, nil)
}

// Wait blocks for up to timeout for at least one ready fd, returning
// the batch of ready events translated back to their Tags. A timeout
// with no ready fds returns an empty slice and a nil error.
func (r *Reactor) Wait(timeout time.Duration) ([]Event, error) {
	var raw [64]unix.EpollEvent

	ms := int(timeout / time.Millisecond)

	n, err := unix.EpollWait(r.epfd, raw[:], ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}

		return nil, errors.Wrap(err, "epoll_wait")
	}

	events := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)

		tag, ok := r.tags[fd]
		if !ok {
			continue // fd was removed between epoll_wait returning and dispatch.
		}

		events = append(events, Event{
			Tag:      tag,
			Readable: raw[i].Events&unix.EPOLLIN != 0,
			Writable: raw[i].Events&unix.EPOLLOUT != 0,
			HangUp:   raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
			Err:      raw[i].Events&unix.EPOLLERR != 0,
		})
	}

	return events, nil
}
