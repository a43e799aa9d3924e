// Package udisks mounts, unmounts and powers off block devices through
// UDisks2, either by shelling out to udisksctl or over the system D-Bus.
package udisks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Manager defines the device operations needed to mount and eject
// removable storage
type Manager interface {
	// Mount mounts the block device and returns the resulting mount point
	Mount(ctx context.Context, device string) (string, error)

	// Unmount unmounts the block device
	Unmount(ctx context.Context, device string) error

	// PowerOff powers off the drive the block device belongs to
	PowerOff(ctx context.Context, device string) error

	// Sync flushes pending writes to all filesystems
	Sync(ctx context.Context) error
}

var (
	// ErrUnexpectedOutput is returned when udisksctl succeeds without
	// reporting a mount point
	ErrUnexpectedOutput = errors.New("unexpected udisksctl output")

	// ErrNoDrive is returned when a block device has no drive to power off
	ErrNoDrive = errors.New("block device has no drive")
)

const (
	// BackendCLI drives udisksctl
	BackendCLI = "cli"
	// BackendDBus talks to udisksd on the system bus
	BackendDBus = "dbus"
)

// NewManager creates a Manager based on the specified backend
func NewManager(backend string) (Manager, error) {
	switch backend {
	case BackendCLI:
		return NewCLIManager(), nil
	case BackendDBus:
		return NewDBusManager()
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'cli' or 'dbus')", backend)
	}
}

// ExitCode maps the result of a device operation to a process exit code.
// A failing external command contributes its own exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}
