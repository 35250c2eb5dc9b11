// Package logging sets up LTX's logrus.Logger: a TextFormatter sink on
// stderr always active, plus — only in the parent process — a hook
// that turns every log record into a Log frame on the output stream.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// FrameSink receives the already-formatted text of one log record and
// turns it into a Log frame (slot = nil, meaning "the executor
// itself"). It is implemented by internal/agent's Context; defining it
// here instead of importing internal/agent keeps this package
// dependency-free of the protocol layer.
type FrameSink interface {
	AppendLogFrame(nowNS uint64, text string) error
}

// Clock returns the current monotonic timestamp in nanoseconds, the
// same source every framed message uses.
type Clock func() uint64

// frameHook is a logrus.Hook that mirrors every log entry onto the
// output stream as a Log frame, but only from the original parent
// process. A child process must never emit frames on the output
// stream.
type frameHook struct {
	sink      FrameSink
	clock     Clock
	parentPID int
}

// NewFrameHook builds the hook. parentPID is the pid recorded at
// startup, before any child is ever forked.
func NewFrameHook(sink FrameSink, clock Clock, parentPID int) logrus.Hook {
	return &frameHook{sink: sink, clock: clock, parentPID: parentPID}
}

func (h *frameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *frameHook) Fire(entry *logrus.Entry) error {
	if os.Getpid() != h.parentPID {
		return nil
	}

	text := entry.Message
	if len(entry.Data) > 0 {
		line, err := entry.String()
		if err == nil {
			text = line
		}
	}

	return h.sink.AppendLogFrame(h.clock(), text)
}

// New builds the stderr-only logrus.Logger every process (parent and
// every forked child, before it execs) starts with.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}
