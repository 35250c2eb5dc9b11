// Package agent wires the framing codec, the I/O buffers, the child
// table, the reactor and the process launcher into LTX's message
// processor and event loop. Everything process-singleton — buffers,
// reactor, child table, parent pid — lives in one Context passed
// explicitly to every handler, never as ambient globals, so Dispatch
// is testable against an in-memory Context with no real stdin/stdout
// attached.
package agent

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/canonical/ltx/internal/childtable"
	"github.com/canonical/ltx/internal/iobuf"
	"github.com/canonical/ltx/internal/reactor"
	"github.com/canonical/ltx/internal/wire"
)

// BufferCapacity is the fixed size of both in_buf and out_buf: large
// enough to hold the largest single protocol header plus the largest
// single read.
const BufferCapacity = 64 * 1024

// ChildReadChunk bounds a single read from a child's pipe to at most
// this many bytes.
const ChildReadChunk = 1024

// OutputHighWaterMark is the point, around a quarter of capacity, past
// which Dispatch drains the output buffer before decoding the next
// message, bounding unbounded growth under backpressure.
const OutputHighWaterMark = BufferCapacity / 4

// Message type bytes.
const (
	msgPing    = 0
	msgPong    = 1
	msgEnv     = 2
	msgExec    = 3
	msgLog     = 4
	msgResult  = 5
	msgGetFile = 6
	msgSetFile = 7
	msgData    = 8
)

// Context bundles every process-singleton LTX needs.
type Context struct {
	In  *iobuf.Buffer
	Out *iobuf.Buffer

	Table   *childtable.Table
	React   *reactor.Reactor
	Log     *logrus.Logger
	Version string

	// ParentPID is recorded once at startup, before any fork, and is
	// what the logging frame hook compares os.Getpid() against to
	// decide whether a log record may be emitted as a frame.
	ParentPID int

	// StdinFd/StdoutFd are the raw scheduler-facing descriptors.
	StdinFd  int
	StdoutFd int

	// OutputBlocked is true once a non-blocking write to stdout has
	// returned EAGAIN, cleared on the next writable edge.
	OutputBlocked bool

	// Stopping is set once stdin hangs up; the run loop exits after
	// finishing any in-flight drain.
	Stopping bool

	enc *wire.Encoder
}

// NewContext allocates a fresh Context with both buffers at
// BufferCapacity, ready to have its fds and reactor wired in by the
// caller (cmd/ltx/main.go for a real run, tests for a synthetic one).
func NewContext(log *logrus.Logger) *Context {
	return &Context{
		In:        iobuf.New(BufferCapacity),
		Out:       iobuf.New(BufferCapacity),
		Table:     childtable.New(),
		Log:       log,
		ParentPID: os.Getpid(),
		enc:       wire.NewEncoder(),
	}
}

// AppendLogFrame implements logging.FrameSink: it encodes
// `[4, nil, now_ns, text]` (slot=nil meaning "the executor itself")
// and appends it to Out. Only ever called by the frame hook, which
// already checked this is the parent process.
func (c *Context) AppendLogFrame(nowNS uint64, text string) error {
	return c.appendLogFrame(nil, nowNS, text)
}

// appendLogFrame encodes `[4, slot, now_ns, text]`; slot is either a
// uint8 (a child's output) or nil (LTX's own diagnostics).
func (c *Context) appendLogFrame(slot *uint8, nowNS uint64, text string) error {
	c.enc.Reset()
	c.enc.ArrayHeader(4)
	c.enc.Uint(msgLog)

	if slot == nil {
		c.enc.Nil()
	} else {
		c.enc.Uint(uint64(*slot))
	}

	c.enc.Uint(nowNS)
	c.enc.String(text)

	return c.Out.Append(c.enc.Bytes())
}

// appendResultFrame encodes `[5, slot, now_ns, si_code, si_status]`.
func (c *Context) appendResultFrame(slot uint8, nowNS uint64, siCode, siStatus uint8) error {
	c.enc.Reset()
	c.enc.ArrayHeader(5)
	c.enc.Uint(msgResult)
	c.enc.Uint(uint64(slot))
	c.enc.Uint(nowNS)
	c.enc.Uint(uint64(siCode))
	c.enc.Uint(uint64(siStatus))

	return c.Out.Append(c.enc.Bytes())
}

// appendPingAck encodes the bare `[0]` ack.
func (c *Context) appendPingAck() error {
	c.enc.Reset()
	c.enc.ArrayHeader(1)
	c.enc.Uint(msgPing)

	return c.Out.Append(c.enc.Bytes())
}

// appendPong encodes `[1, now_ns]`.
func (c *Context) appendPong(nowNS uint64) error {
	c.enc.Reset()
	c.enc.ArrayHeader(2)
	c.enc.Uint(msgPong)
	c.enc.Uint(nowNS)

	return c.Out.Append(c.enc.Bytes())
}

// appendExecAck encodes `[3, slot, path]`, echoing the request.
func (c *Context) appendExecAck(slot uint8, path string) error {
	c.enc.Reset()
	c.enc.ArrayHeader(3)
	c.enc.Uint(msgExec)
	c.enc.Uint(uint64(slot))
	c.enc.String(path)

	return c.Out.Append(c.enc.Bytes())
}

// appendGetFileAck encodes `[6, path]`, echoing the request.
func (c *Context) appendGetFileAck(path string) error {
	c.enc.Reset()
	c.enc.ArrayHeader(2)
	c.enc.Uint(msgGetFile)
	c.enc.String(path)

	return c.Out.Append(c.enc.Bytes())
}

// appendDataHeader encodes `[8, bin32-or-bin8 header]` without the
// payload bytes themselves — the caller streams those separately via
// sendfile.
func (c *Context) appendDataHeader(size int) error {
	c.enc.Reset()
	c.enc.ArrayHeader(2)
	c.enc.Uint(msgData)
	c.enc.BinaryHeader(size)

	return c.Out.Append(c.enc.Bytes())
}
