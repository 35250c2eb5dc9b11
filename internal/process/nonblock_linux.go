//go:build linux

package process

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func unixSetNonblock(f *os.File) error {
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		return errors.Wrapf(err, "set nonblocking fd=%d", f.Fd())
	}

	return nil
}
