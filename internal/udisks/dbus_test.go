package udisks

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriansa/usb-automount/internal/log"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	log.Setup(false)
	os.Exit(m.Run())
}

// mockBusObject implements dbus.BusObject for testing
type mockBusObject struct {
	path        dbus.ObjectPath
	callResults map[string]*dbus.Call
	calls       *[]string
}

func (m *mockBusObject) Call(method string, flags dbus.Flags, args ...any) *dbus.Call {
	if m.calls != nil {
		*m.calls = append(*m.calls, string(m.path)+" "+method)
	}
	if call, ok := m.callResults[method]; ok {
		return call
	}
	return &dbus.Call{Err: dbus.ErrMsgNoObject}
}

func (m *mockBusObject) CallWithContext(_ context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call {
	return m.Call(method, flags, args...)
}

func (m *mockBusObject) Go(method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return m.Call(method, flags, args...)
}

func (m *mockBusObject) GoWithContext(_ context.Context, method string, flags dbus.Flags, ch chan *dbus.Call, args ...any) *dbus.Call {
	return m.Call(method, flags, args...)
}

func (m *mockBusObject) AddMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (m *mockBusObject) RemoveMatchSignal(iface, member string, options ...dbus.MatchOption) *dbus.Call {
	return &dbus.Call{}
}

func (m *mockBusObject) GetProperty(p string) (dbus.Variant, error) {
	return dbus.Variant{}, nil
}

func (m *mockBusObject) StoreProperty(p string, value any) error {
	return nil
}

func (m *mockBusObject) SetProperty(p string, v any) error {
	return nil
}

func (m *mockBusObject) Destination() string {
	return dbusService
}

func (m *mockBusObject) Path() dbus.ObjectPath {
	return m.path
}

// mockDBusConnection implements DBusConnection for testing
type mockDBusConnection struct {
	objects map[dbus.ObjectPath]*mockBusObject
	calls   []string
}

func (m *mockDBusConnection) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	obj, ok := m.objects[path]
	if !ok {
		obj = &mockBusObject{path: path, callResults: map[string]*dbus.Call{}}
	}
	obj.path = path
	obj.calls = &m.calls
	return obj
}

func (m *mockDBusConnection) Close() error {
	return nil
}

type mockBlock struct {
	path   dbus.ObjectPath
	device string
	drive  dbus.ObjectPath
}

const (
	sdb1Path  = dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sdb1")
	sdc1Path  = dbus.ObjectPath("/org/freedesktop/UDisks2/block_devices/sdc1")
	drivePath = dbus.ObjectPath("/org/freedesktop/UDisks2/drives/SanDisk_Cruzer_1234")
)

// newMockConnection serves GetManagedObjects for blocks and lets tests
// set per-object method results
func newMockConnection(blocks []mockBlock, results map[dbus.ObjectPath]map[string]*dbus.Call) *mockDBusConnection {
	objects := make(managedObjects)
	for _, b := range blocks {
		objects[b.path] = map[string]map[string]dbus.Variant{
			dbusBlockInterface: {
				"Device": dbus.MakeVariant([]byte(b.device + "\x00")),
				"Drive":  dbus.MakeVariant(b.drive),
			},
			dbusFilesystemInterface: {},
		}
	}

	conn := &mockDBusConnection{
		objects: map[dbus.ObjectPath]*mockBusObject{
			dbus.ObjectPath(dbusRootPath): {
				callResults: map[string]*dbus.Call{
					dbusObjectManager + ".GetManagedObjects": {
						Body: []any{objects},
					},
				},
			},
		},
	}

	for path, calls := range results {
		conn.objects[path] = &mockBusObject{callResults: calls}
	}

	return conn
}

func TestDBusManager_Mount(t *testing.T) {
	blocks := []mockBlock{
		{path: sdb1Path, device: "/dev/sdb1", drive: drivePath},
		{path: sdc1Path, device: "/dev/sdc1", drive: drivePath},
	}

	tests := []struct {
		name    string
		device  string
		results map[dbus.ObjectPath]map[string]*dbus.Call
		want    string
		wantErr bool
	}{
		{
			name:   "mounted",
			device: "/dev/sdc1",
			results: map[dbus.ObjectPath]map[string]*dbus.Call{
				sdc1Path: {dbusFilesystemInterface + ".Mount": {Body: []any{"/media/user/STICK"}}},
			},
			want: "/media/user/STICK",
		},
		{
			name:   "already mounted",
			device: "/dev/sdb1",
			results: map[dbus.ObjectPath]map[string]*dbus.Call{
				sdb1Path: {dbusFilesystemInterface + ".Mount": {
					Err: dbus.Error{Name: "org.freedesktop.UDisks2.Error.AlreadyMounted"},
				}},
			},
			wantErr: true,
		},
		{
			name:    "unknown device",
			device:  "/dev/sdz1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newMockConnection(blocks, tt.results)
			m, err := NewDBusManager(WithConnection(conn))
			require.NoError(t, err)

			got, err := m.Mount(context.Background(), tt.device)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDBusManager_Unmount(t *testing.T) {
	conn := newMockConnection(
		[]mockBlock{{path: sdb1Path, device: "/dev/sdb1", drive: drivePath}},
		map[dbus.ObjectPath]map[string]*dbus.Call{
			sdb1Path: {dbusFilesystemInterface + ".Unmount": {}},
		},
	)
	m, err := NewDBusManager(WithConnection(conn))
	require.NoError(t, err)

	require.NoError(t, m.Unmount(context.Background(), "/dev/sdb1"))
	assert.Contains(t, conn.calls, string(sdb1Path)+" "+dbusFilesystemInterface+".Unmount")
}

func TestDBusManager_PowerOff(t *testing.T) {
	tests := []struct {
		name    string
		drive   dbus.ObjectPath
		wantErr error
	}{
		{name: "powers off the drive", drive: drivePath},
		{name: "no drive", drive: "/", wantErr: ErrNoDrive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newMockConnection(
				[]mockBlock{{path: sdb1Path, device: "/dev/sdb1", drive: tt.drive}},
				map[dbus.ObjectPath]map[string]*dbus.Call{
					drivePath: {dbusDriveInterface + ".PowerOff": {}},
				},
			)
			m, err := NewDBusManager(WithConnection(conn))
			require.NoError(t, err)

			err = m.PowerOff(context.Background(), "/dev/sdb1")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "error = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, conn.calls, string(drivePath)+" "+dbusDriveInterface+".PowerOff")
		})
	}
}

func TestDBusManager_ManagedObjectsError(t *testing.T) {
	conn := &mockDBusConnection{objects: map[dbus.ObjectPath]*mockBusObject{}}
	m, err := NewDBusManager(WithConnection(conn))
	require.NoError(t, err)

	_, err = m.Mount(context.Background(), "/dev/sdb1")
	assert.Error(t, err)
}

func TestDBusManager_DialsLazily(t *testing.T) {
	conn := newMockConnection(
		[]mockBlock{{path: sdb1Path, device: "/dev/sdb1", drive: drivePath}},
		map[dbus.ObjectPath]map[string]*dbus.Call{
			sdb1Path: {dbusFilesystemInterface + ".Mount": {Body: []any{"/media/user/STICK"}}},
		},
	)

	dials := 0
	dial := func() (DBusConnection, error) {
		dials++
		if dials == 1 {
			return nil, errors.New("no such file or directory")
		}
		return conn, nil
	}

	m, err := NewDBusManager(WithConnectFunc(dial))
	require.NoError(t, err)
	assert.Zero(t, dials, "construction must not dial")

	_, err = m.Mount(context.Background(), "/dev/sdb1")
	require.Error(t, err)

	got, err := m.Mount(context.Background(), "/dev/sdb1")
	require.NoError(t, err)
	assert.Equal(t, "/media/user/STICK", got)
	assert.Equal(t, 2, dials)

	_, err = m.Mount(context.Background(), "/dev/sdb1")
	require.NoError(t, err)
	assert.Equal(t, 2, dials, "an open connection is reused")
}
