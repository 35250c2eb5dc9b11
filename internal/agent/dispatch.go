package agent

import (
	"github.com/pkg/errors"

	"github.com/canonical/ltx/internal/wire"
)

// ErrProtocol marks a message the scheduler sent that violates the
// protocol contract. Every protocol error is fatal.
var ErrProtocol = errors.New("agent: protocol error")

func protoErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrProtocol, format, args...)
}

// Dispatch consumes as many whole messages as In currently holds,
// compacting the residue afterward. It returns the first fatal error
// encountered, if any — every error Dispatch returns is fatal by
// contract; an incomplete trailing message is not an error, it just
// stops the loop and leaves the bytes in In for next time.
func (c *Context) Dispatch() error {
	defer c.In.Compact()

	for {
		if c.Out.Len() > OutputHighWaterMark && !c.OutputBlocked {
			if err := c.drainOutputNonBlocking(); err != nil {
				return err
			}
		}

		data := c.In.Bytes()
		if len(data) == 0 {
			return nil
		}

		n, err := c.dispatchOne(data)
		if err != nil {
			if errors.Is(err, wire.ErrShort) {
				return nil // incomplete: rewind and wait for more bytes.
			}

			return err
		}

		c.In.Consume(n)
	}
}

// dispatchOne decodes and handles exactly one message from the front
// of data, returning the number of bytes it consumed.
func (c *Context) dispatchOne(data []byte) (int, error) {
	d := wire.NewDecoder(data)

	n, err := d.ArrayHeader()
	if err != nil {
		return 0, err
	}

	if n == 0 {
		// `0x90`, an empty array, is a protocol violation — there is
		// no message type byte to read. (`0x80` is a fixmap and is
		// already rejected by the decoder.)
		return 0, protoErrorf("empty message envelope")
	}

	msgType, err := d.Uint()
	if err != nil {
		return 0, err
	}

	switch msgType {
	case msgPing:
		if n != 1 {
			return 0, protoErrorf("ping arity %d, want 1", n)
		}

		if err := c.handlePing(); err != nil {
			return 0, err
		}

	case msgExec:
		if n < 3 {
			return 0, protoErrorf("exec arity %d, want >=3", n)
		}

		if err := c.handleExec(d, n); err != nil {
			return 0, err
		}

	case msgGetFile:
		if n != 2 {
			return 0, protoErrorf("get-file arity %d, want 2", n)
		}

		if err := c.handleGetFile(d); err != nil {
			return 0, err
		}

	case msgPong:
		return 0, protoErrorf("pong is not handled by the executor")

	case msgEnv:
		return 0, protoErrorf("env is not implemented")

	case msgLog, msgResult:
		return 0, protoErrorf("message type %d is LTX-originated, inbound-only", msgType)

	case msgSetFile, msgData:
		return 0, protoErrorf("message type %d is reserved, not implemented", msgType)

	default:
		return 0, protoErrorf("unknown message type %d", msgType)
	}

	return d.Pos(), nil
}

// handlePing replies `[ping]` then `[pong, now_ns]`, both enqueued
// before any further message is processed.
func (c *Context) handlePing() error {
	if err := c.appendPingAck(); err != nil {
		return err
	}

	return c.appendPong(MonotonicNowNS())
}
