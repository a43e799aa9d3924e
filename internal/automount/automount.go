// Package automount ties kernel log detection, mounting and the state
// store together.
package automount

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kriansa/usb-automount/internal/kernlog"
	"github.com/kriansa/usb-automount/internal/log"
	"github.com/kriansa/usb-automount/internal/maybe"
	"github.com/kriansa/usb-automount/internal/state"
	"github.com/kriansa/usb-automount/internal/udisks"
	"github.com/kriansa/usb-automount/internal/validation"
)

// PollInterval is the pause between two detection attempts
const PollInterval = time.Second

// MountRecord pairs a mounted device with its mount point
type MountRecord struct {
	Device     string
	MountPoint string
}

// Automounter detects and mounts newly attached devices and ejects the
// last one it mounted
type Automounter struct {
	source  kernlog.Source
	mounter udisks.Manager
	store   *state.Store
	clock   clockwork.Clock
}

// Option is a functional option for Automounter
type Option func(*Automounter)

// WithClock replaces the wall clock (for testing)
func WithClock(clock clockwork.Clock) Option {
	return func(a *Automounter) {
		a.clock = clock
	}
}

// New creates an Automounter
func New(source kernlog.Source, mounter udisks.Manager, store *state.Store, opts ...Option) *Automounter {
	a := &Automounter{
		source:  source,
		mounter: mounter,
		store:   store,
		clock:   clockwork.NewRealClock(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Automount polls the kernel log for a device attached within
// windowSeconds and mounts it. It makes at most budget attempts, pausing
// PollInterval between them, and returns an empty Option once the budget
// is spent or ctx is done. Detection and mount failures are retried.
func (a *Automounter) Automount(ctx context.Context, budget, windowSeconds int) maybe.Option[MountRecord] {
	for remaining := budget; remaining >= 1; remaining-- {
		attempt := budget - remaining + 1
		log.Debug("polling for device", "attempt", attempt, "remaining", remaining)

		rec := maybe.Bind(a.detect(ctx, windowSeconds), func(device string) maybe.Option[MountRecord] {
			return a.mount(ctx, device)
		})
		if rec.IsPresent() {
			return rec
		}

		if remaining == 1 {
			break
		}

		select {
		case <-ctx.Done():
			log.Debug("automount cancelled", "attempt", attempt)
			return maybe.None[MountRecord]()
		case <-a.clock.After(PollInterval):
		}
	}

	log.Info("no device found", "budget", budget, "window", windowSeconds)
	return maybe.None[MountRecord]()
}

// detect returns the most recently attached device in the current log tail
func (a *Automounter) detect(ctx context.Context, windowSeconds int) maybe.Option[string] {
	now := a.clock.Now()

	lines, err := a.source.Tail(ctx)
	if err != nil {
		log.Debug("failed to read kernel log", "error", err)
		return maybe.None[string]()
	}

	device := kernlog.SelectMostRecentDevice(lines, windowSeconds, now)
	if device.IsPresent() {
		log.Debug("detected device", "device", device.Get())
	}
	return device
}

// mount mounts device and records it as the last mounted device
func (a *Automounter) mount(ctx context.Context, device string) maybe.Option[MountRecord] {
	mountPoint, err := a.mounter.Mount(ctx, device)
	if err != nil {
		log.Debug("mount attempt failed", "device", device, "error", err)
		return maybe.None[MountRecord]()
	}

	if err := a.store.RecordMounted(device); err != nil {
		log.Warn("failed to record mounted device", "device", device, "error", err)
	}

	log.Info("device mounted", "device", device, "mount_point", mountPoint)
	return maybe.Some(MountRecord{Device: device, MountPoint: mountPoint})
}

// Eject flushes, unmounts and powers off device, returning the exit code
// of the first failing step
func (a *Automounter) Eject(ctx context.Context, device string) int {
	return udisks.ExitCode(udisks.Eject(ctx, a.mounter, device))
}

// UnmountLast ejects the device recorded by the last successful mount.
// The Option is empty when no device was recorded.
func (a *Automounter) UnmountLast(ctx context.Context) maybe.Option[int] {
	return maybe.Map(a.store.ReadLastMounted(), func(device string) int {
		if err := validation.ValidateDevicePath(device); err != nil {
			log.Error("refusing to eject recorded device", "path", a.store.Path(), "error", err)
			return 1
		}
		return a.Eject(ctx, device)
	})
}

// LastMounted returns the recorded device
func (a *Automounter) LastMounted() maybe.Option[string] {
	return a.store.ReadLastMounted()
}
