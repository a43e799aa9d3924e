package udisks

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/kriansa/usb-automount/internal/log"
)

const (
	dbusService       = "org.freedesktop.UDisks2"
	dbusRootPath      = "/org/freedesktop/UDisks2"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	dbusBlockInterface      = "org.freedesktop.UDisks2.Block"
	dbusFilesystemInterface = "org.freedesktop.UDisks2.Filesystem"
	dbusDriveInterface      = "org.freedesktop.UDisks2.Drive"
)

// managedObjects is the GetManagedObjects reply:
// map[ObjectPath]map[InterfaceName]map[PropertyName]Variant
type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// DBusManager implements Manager using the UDisks2 DBus API. The system
// bus is dialed on first use and again after a failed dial, so an
// unreachable bus fails single operations rather than construction.
type DBusManager struct {
	conn      DBusConnection
	connectFn func() (DBusConnection, error)
}

// DBusManagerOption is a functional option for DBusManager
type DBusManagerOption func(*DBusManager)

// WithConnection sets a custom DBus connection (for testing)
func WithConnection(conn DBusConnection) DBusManagerOption {
	return func(m *DBusManager) {
		m.conn = conn
		m.connectFn = nil
	}
}

// WithConnectFunc replaces the system bus dialer
func WithConnectFunc(fn func() (DBusConnection, error)) DBusManagerOption {
	return func(m *DBusManager) {
		m.connectFn = fn
	}
}

// NewDBusManager creates a new UDisks2 DBus manager
func NewDBusManager(opts ...DBusManagerOption) (*DBusManager, error) {
	m := &DBusManager{
		connectFn: ConnectSystemBus,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.conn == nil && m.connectFn == nil {
		return nil, fmt.Errorf("no dbus connection or dialer configured")
	}

	return m, nil
}

// bus returns the connection, dialing the system bus if needed
func (m *DBusManager) bus() (DBusConnection, error) {
	if m.conn != nil {
		return m.conn, nil
	}

	conn, err := m.connectFn()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	m.conn = conn
	return conn, nil
}

// Close closes the DBus connection if one was opened
func (m *DBusManager) Close() error {
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// noInteraction is the options argument shared by all UDisks2 calls
func noInteraction() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"auth.no_user_interaction": dbus.MakeVariant(true),
	}
}

func (m *DBusManager) getManagedObjects(ctx context.Context) (managedObjects, error) {
	conn, err := m.bus()
	if err != nil {
		return nil, err
	}
	obj := conn.Object(dbusService, dbus.ObjectPath(dbusRootPath))

	var result managedObjects
	call := obj.CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", call.Err)
	}

	if err := call.Store(&result); err != nil {
		return nil, fmt.Errorf("store GetManagedObjects result: %w", err)
	}

	return result, nil
}

// findBlock finds the UDisks2 block object whose device node is device.
// Symlinks such as /dev/disk/by-label/X are resolved first.
func (m *DBusManager) findBlock(ctx context.Context, device string) (dbus.ObjectPath, map[string]dbus.Variant, error) {
	node, err := filepath.EvalSymlinks(device)
	if err != nil {
		node = device
	}

	objects, err := m.getManagedObjects(ctx)
	if err != nil {
		return "", nil, err
	}

	for path, interfaces := range objects {
		blockProps, ok := interfaces[dbusBlockInterface]
		if !ok {
			continue
		}

		devVariant, ok := blockProps["Device"]
		if !ok {
			continue
		}

		// Device is a NUL-terminated byte string
		raw, ok := devVariant.Value().([]byte)
		if !ok {
			continue
		}
		if name := string(bytes.TrimRight(raw, "\x00")); name == node || name == device {
			return path, blockProps, nil
		}
	}

	return "", nil, fmt.Errorf("no udisks block device for %s", device)
}

// Mount mounts the filesystem on device and returns its mount point
func (m *DBusManager) Mount(ctx context.Context, device string) (string, error) {
	log.Debug("mounting device via dbus", "device", device)

	path, _, err := m.findBlock(ctx, device)
	if err != nil {
		return "", err
	}

	obj := m.conn.Object(dbusService, path)
	call := obj.CallWithContext(ctx, dbusFilesystemInterface+".Mount", 0, noInteraction())
	if call.Err != nil {
		return "", fmt.Errorf("mount %s: %w", device, call.Err)
	}

	var mountPoint string
	if err := call.Store(&mountPoint); err != nil {
		return "", fmt.Errorf("store Mount result: %w", err)
	}

	log.Debug("mounted successfully", "device", device, "mount_point", mountPoint)
	return mountPoint, nil
}

// Unmount unmounts the filesystem on device
func (m *DBusManager) Unmount(ctx context.Context, device string) error {
	log.Debug("unmounting device via dbus", "device", device)

	path, _, err := m.findBlock(ctx, device)
	if err != nil {
		return err
	}

	obj := m.conn.Object(dbusService, path)
	if call := obj.CallWithContext(ctx, dbusFilesystemInterface+".Unmount", 0, noInteraction()); call.Err != nil {
		return fmt.Errorf("unmount %s: %w", device, call.Err)
	}
	return nil
}

// PowerOff powers off the drive backing device
func (m *DBusManager) PowerOff(ctx context.Context, device string) error {
	log.Debug("powering off device via dbus", "device", device)

	_, props, err := m.findBlock(ctx, device)
	if err != nil {
		return err
	}

	drive, ok := props["Drive"].Value().(dbus.ObjectPath)
	if !ok || drive == "/" || drive == "" {
		return fmt.Errorf("%s: %w", device, ErrNoDrive)
	}

	obj := m.conn.Object(dbusService, drive)
	if call := obj.CallWithContext(ctx, dbusDriveInterface+".PowerOff", 0, noInteraction()); call.Err != nil {
		return fmt.Errorf("power off %s: %w", drive, call.Err)
	}
	return nil
}

// Sync flushes filesystem buffers with sync(2)
func (m *DBusManager) Sync(_ context.Context) error {
	unix.Sync()
	return nil
}
