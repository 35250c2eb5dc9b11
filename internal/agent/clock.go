//go:build linux

package agent

import "golang.org/x/sys/unix"

// MonotonicNowNS returns the current monotonic timestamp in
// nanoseconds, preferring the raw monotonic clock (immune to NTP
// slewing) and falling back to the standard monotonic clock when the
// raw variant isn't available.
func MonotonicNowNS() uint64 {
	var ts unix.Timespec

	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		_ = unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	}

	return uint64(ts.Sec)*1e9 + uint64(ts.Nsec)
}
