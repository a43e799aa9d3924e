package udisks

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/kriansa/usb-automount/internal/log"
)

// CLIManager implements Manager using the udisksctl and sync commands
type CLIManager struct {
	udisksctl string
	sync      string
}

// CLIManagerOption is a functional option for CLIManager
type CLIManagerOption func(*CLIManager)

// WithCommands overrides the udisksctl and sync executables
func WithCommands(udisksctl, sync string) CLIManagerOption {
	return func(m *CLIManager) {
		m.udisksctl = udisksctl
		m.sync = sync
	}
}

// NewCLIManager creates a new udisksctl-based manager
func NewCLIManager(opts ...CLIManagerOption) *CLIManager {
	m := &CLIManager{
		udisksctl: "udisksctl",
		sync:      "sync",
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// run runs a udisksctl verb against a block device without
// interactive authorization and returns its standard output
func (m *CLIManager) run(ctx context.Context, verb, device string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, m.udisksctl, verb, "--no-user-interaction", "-b", device)
	output, err := cmd.Output()
	if err != nil {
		var stderr []byte
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = exitErr.Stderr
		}
		return output, fmt.Errorf("udisksctl %s %s: %w (output: %q)", verb, device, err, strings.TrimSpace(string(stderr)))
	}
	return output, nil
}

// Mount mounts the device and returns the mount point udisksctl reports
func (m *CLIManager) Mount(ctx context.Context, device string) (string, error) {
	log.Debug("mounting device", "device", device)

	output, err := m.run(ctx, "mount", device)
	if err != nil {
		return "", err
	}

	mountPoint, err := parseMountOutput(device, string(output))
	if err != nil {
		return "", err
	}

	log.Debug("mounted successfully", "device", device, "mount_point", mountPoint)
	return mountPoint, nil
}

// parseMountOutput extracts the mount point from udisksctl mount output
// Example output:
// Mounted /dev/sdb1 at /media/user/USB STICK.
func parseMountOutput(device, output string) (string, error) {
	pattern := regexp.MustCompile(`^Mounted ` + regexp.QuoteMeta(device) + ` at (.+)\.$`)
	matches := pattern.FindStringSubmatch(strings.TrimSpace(output))
	if matches == nil {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedOutput, output)
	}
	return matches[1], nil
}

// Unmount unmounts the device
func (m *CLIManager) Unmount(ctx context.Context, device string) error {
	log.Debug("unmounting device", "device", device)

	if _, err := m.run(ctx, "unmount", device); err != nil {
		return err
	}
	return nil
}

// PowerOff powers off the drive holding the device
func (m *CLIManager) PowerOff(ctx context.Context, device string) error {
	log.Debug("powering off device", "device", device)

	if _, err := m.run(ctx, "power-off", device); err != nil {
		return err
	}
	return nil
}

// Sync runs sync(1)
func (m *CLIManager) Sync(ctx context.Context) error {
	if err := exec.CommandContext(ctx, m.sync).Run(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}
