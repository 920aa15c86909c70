// Package resources counts the free resources of the system under test so a
// test run can tell whether it leaked any.
package resources

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// DefaultTolerance is how many units a run may lose before it counts as a leak.
const DefaultTolerance = 32

var ErrUnavailable = errors.New("resource count unavailable")

// Counter reports how many units of some resource are currently free.
type Counter interface {
	CountFree(ctx context.Context) (int, error)
}

// Leaked reports whether after has fallen more than tolerance below before.
func Leaked(before, after, tolerance int) bool {
	return after+tolerance < before
}

// FDCounter counts free file descriptors of the current process: the soft
// RLIMIT_NOFILE minus the descriptors currently open. Every bound socket
// holds one.
type FDCounter struct {
	pid int32
}

// NewFDCounter returns a counter for the running process.
func NewFDCounter() *FDCounter {
	return &FDCounter{pid: int32(os.Getpid())}
}

func (c *FDCounter) CountFree(ctx context.Context) (int, error) {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		return 0, fmt.Errorf("%w: getrlimit: %v", ErrUnavailable, err)
	}

	p, err := process.NewProcessWithContext(ctx, c.pid)
	if err != nil {
		return 0, fmt.Errorf("%w: process %d: %v", ErrUnavailable, c.pid, err)
	}
	open, err := p.NumFDsWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: open descriptors: %v", ErrUnavailable, err)
	}

	limit := int64(lim.Cur) // RLIM_INFINITY wraps negative
	free := limit - int64(open)
	if limit < 0 || free < 0 {
		return 0, fmt.Errorf("%w: descriptor limit %d with %d open", ErrUnavailable, lim.Cur, open)
	}
	return int(free), nil
}

// MemoryCounter counts available pages of host memory. Other processes make
// it noisy, so it suits an otherwise idle machine.
type MemoryCounter struct {
	pageSize uint64
}

// NewMemoryCounter returns a page counter using the system page size.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{pageSize: uint64(os.Getpagesize())}
}

func (c *MemoryCounter) CountFree(ctx context.Context) (int, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: memory: %v", ErrUnavailable, err)
	}
	return int(vm.Available / c.pageSize), nil
}
