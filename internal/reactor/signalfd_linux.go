//go:build linux

package reactor

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SizeofSiginfo is the fixed record size of one signalfd_siginfo, the
// same value unix.SignalfdSiginfo describes. A read whose length isn't
// a multiple of this is treated as fatal rather than as a partial
// record to reassemble.
const SizeofSiginfo = int(unsafe.Sizeof(unix.SignalfdSiginfo{}))

// sigsetAdd sets the bit for sig in a zeroed Sigset_t. x/sys/unix
// doesn't export a portable sigaddset helper, so this mirrors the bit
// arithmetic every low-level Go signalfd implementation in this
// space (runc, containerd) hand-rolls: Sigset_t.Val is an array of
// 64-bit words, bit (sig-1) within the flattened bitset.
func sigsetAdd(set *unix.Sigset_t, sig int) {
	bit := uint(sig - 1)
	set.Val[bit/64] |= 1 << (bit % 64)
}

// NewChildSignalFD blocks SIGCHLD in the calling thread (so it never
// interrupts syscalls nor invokes a signal handler) and returns a
// non-blocking, close-on-exec signalfd that delivers it instead. The
// signal mask is inherited across fork, but an exec'd child runs with
// its own default disposition restored since it never itself creates
// a signalfd.
func NewChildSignalFD() (int, error) {
	var set unix.Sigset_t
	sigsetAdd(&set, int(unix.SIGCHLD))

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return -1, errors.Wrap(err, "pthread_sigmask SIG_BLOCK SIGCHLD")
	}

	fd, _, errno := unix.Syscall6(unix.SYS_SIGNALFD4,
		^uintptr(0), // fd == -1: allocate a new signalfd.
		uintptr(unsafe.Pointer(&set)),
		unsafe.Sizeof(set),
		uintptr(unix.SFD_CLOEXEC|unix.SFD_NONBLOCK),
		0, 0)
	if errno != 0 {
		return -1, errors.Wrap(errno, "signalfd4")
	}

	return int(fd), nil
}

// ReadSiginfos reads one or more pending signalfd_siginfo records from
// fd into a caller-supplied scratch buffer and decodes every whole
// record found. A short read whose length isn't a multiple of the
// record size is fatal; the caller propagates that as a fatal error.
func ReadSiginfos(fd int, scratch []byte) ([]unix.SignalfdSiginfo, error) {
	n, err := unix.Read(fd, scratch)
	if err != nil {
		if err == unix.EAGAIN {
			return nil, nil
		}

		return nil, errors.Wrap(err, "read signalfd")
	}

	if n == 0 {
		return nil, errors.New("signalfd closed unexpectedly")
	}

	if n%SizeofSiginfo != 0 {
		return nil, errors.Errorf("signalfd reads not atomic? read %d bytes, record size %d", n, SizeofSiginfo)
	}

	count := n / SizeofSiginfo
	out := make([]unix.SignalfdSiginfo, count)

	for i := 0; i < count; i++ {
		off := i * SizeofSiginfo
		out[i] = *(*unix.SignalfdSiginfo)(unsafe.Pointer(&scratch[off]))
	}

	return out, nil
}
