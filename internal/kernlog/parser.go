// Package kernlog finds freshly attached block devices in kernel log output.
//
// Lines are expected in the syslog shape written to /var/log/kern.log:
//
//	Jan  5 10:00:00 host kernel: [   12.345678] sdb: sdb1
//
// The syslog prefix carries no year, so timestamps are resolved against the
// year of a reference time. A December line read in early January is
// therefore dated almost a year ahead and never counts as recent.
package kernlog

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kriansa/usb-automount/internal/maybe"
)

const (
	// DevicePrefix is prepended to a captured device node name
	DevicePrefix = "/dev/"

	timestampLayout = "Jan 2 15:04:05 2006"
)

var (
	timestampPattern = regexp.MustCompile(`^([A-Za-z]{3} +\d+ +\d+:\d+:\d+)`)

	// A partition table scan reports "sdb: sdb1 sdb2"; only the first
	// partition on the line is taken.
	attachPattern = regexp.MustCompile(
		`^[A-Za-z]{3} +\d+ +\d+:\d+:\d+.+ kernel: \[ *\d+\.\d+\] *sd[a-z]: (sd[a-z][0-9]+)`)
)

// ParseTimestamp returns the time a log line was written, assuming the
// current year and local time zone
func ParseTimestamp(line string) maybe.Option[time.Time] {
	return ParseTimestampAt(line, time.Now())
}

// ParseTimestampAt is like ParseTimestamp but takes the year and location
// from ref
func ParseTimestampAt(line string, ref time.Time) maybe.Option[time.Time] {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return maybe.None[time.Time]()
	}

	// Syslog pads single-digit days with a space; collapse runs of spaces
	// so a single layout covers both.
	stamp := strings.Join(strings.Fields(m[1]), " ") + " " + strconv.Itoa(ref.Year())
	t, err := time.ParseInLocation(timestampLayout, stamp, ref.Location())
	if err != nil {
		return maybe.None[time.Time]()
	}

	return maybe.Some(t)
}

// ParseDeviceAttach returns the device path of a partition announced by the
// kernel on this line, such as /dev/sdb1
func ParseDeviceAttach(line string) maybe.Option[string] {
	m := attachPattern.FindStringSubmatch(line)
	if m == nil {
		return maybe.None[string]()
	}
	return maybe.Some(DevicePrefix + m[1])
}
