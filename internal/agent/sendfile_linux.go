//go:build linux

package agent

import "golang.org/x/sys/unix"

// sendfileAll streams exactly size bytes from inFd to outFd via
// sendfile(2), looping over partial transfers, the zero-copy send the
// Get-file path uses to avoid copying file contents through user
// space. The caller is expected to already be inside
// withBlockingStdout.
func sendfileAll(outFd, inFd int, size int64) error {
	var offset int64

	for offset < size {
		n, err := unix.Sendfile(outFd, inFd, &offset, int(size-offset))
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return Fatalf("sendfile", "remaining", size-offset, err)
		}

		if n == 0 {
			return Fatalf("sendfile", "remaining", size-offset, errUnexpectedEOF)
		}
	}

	return nil
}
