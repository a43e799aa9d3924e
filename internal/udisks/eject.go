package udisks

import (
	"context"
	"fmt"

	"github.com/kriansa/usb-automount/internal/log"
)

// Eject flushes pending writes, unmounts the device and powers its drive
// off. Every step runs even if an earlier one fails; the first failure is
// returned.
func Eject(ctx context.Context, m Manager, device string) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"sync", func() error { return m.Sync(ctx) }},
		{"unmount", func() error { return m.Unmount(ctx, device) }},
		{"power-off", func() error { return m.PowerOff(ctx, device) }},
	}

	var first error
	for _, step := range steps {
		if err := step.run(); err != nil {
			log.Debug("eject step failed", "step", step.name, "device", device, "error", err)
			if first == nil {
				first = fmt.Errorf("%s %s: %w", step.name, device, err)
			}
		}
	}

	if first == nil {
		log.Info("device ejected", "device", device)
	}
	return first
}
