//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package hostmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Alloc maps an anonymous private region of size bytes. The mapping is
// zero-filled by the kernel; callers that need a different fill apply
// it themselves.
func Alloc(size int) (Region, error) {
	if size <= 0 {
		return Region{}, fmt.Errorf("invalid region size %d", size)
	}

	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return Region{}, fmt.Errorf("mmap of %d bytes failed: %w", size, err)
	}

	return Region{data: data, release: unix.Munmap}, nil
}
