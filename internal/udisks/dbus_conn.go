package udisks

import (
	"github.com/godbus/dbus/v5"
)

// DBusConnection is the part of a bus connection DBusManager needs: a way
// to address udisksd objects (the manager root, block devices and drives)
// and to hang up. Tests substitute an in-memory fake.
type DBusConnection interface {
	// Object returns a proxy for an object exported by dest, normally
	// org.freedesktop.UDisks2
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	// Close releases the bus connection
	Close() error
}

// udisksBus adapts a live *dbus.Conn on the system bus
type udisksBus struct {
	conn *dbus.Conn
}

func (b *udisksBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return b.conn.Object(dest, path)
}

func (b *udisksBus) Close() error {
	return b.conn.Close()
}

// ConnectSystemBus dials the system bus udisksd is registered on. It is
// the default dialer of DBusManager.
func ConnectSystemBus() (DBusConnection, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	return &udisksBus{conn: conn}, nil
}
