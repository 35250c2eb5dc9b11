package agent

import (
	"math"
	"os"

	"github.com/pkg/errors"

	"github.com/canonical/ltx/internal/wire"
)

var errUnexpectedEOF = errors.New("agent: sendfile returned 0 before size was reached")

// maxGetFileSize rejects files of 2^32 bytes or more as fatal — the
// bin32 header the Data frame uses can't address anything bigger
// anyway.
const maxGetFileSize = math.MaxUint32

// handleGetFile opens path read-only, emits the ack and then streams
// the file's exact contents as a single Data frame, switching stdout
// to blocking for the bulk transfer.
func (c *Context) handleGetFile(d *wire.Decoder) error {
	pathBytes, err := d.String()
	if err != nil {
		return err
	}

	path := string(pathBytes)

	f, err := os.Open(path)
	if err != nil {
		return Fatalf("open", "path", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Fatalf("fstat", "path", path, err)
	}

	size := info.Size()
	if size < 0 || size > maxGetFileSize {
		return Fatalf("get-file", "size", size, errors.New("file too large for a bin32 Data frame"))
	}

	if err := c.appendGetFileAck(path); err != nil {
		return err
	}

	if err := c.appendDataHeader(int(size)); err != nil {
		return err
	}

	return c.withBlockingStdout(func() error {
		if err := c.drainOutputBlocking(); err != nil {
			return err
		}

		if size == 0 {
			return nil
		}

		return sendfileAll(c.StdoutFd, int(f.Fd()), size)
	})
}
