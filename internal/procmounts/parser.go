package procmounts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kriansa/usb-automount/internal/maybe"
)

// ProcMountsPath is the kernel's mount table for the current namespace
const ProcMountsPath = "/proc/mounts"

// Parse parses /proc/mounts and returns all mount entries
func Parse() ([]Entry, error) {
	file, err := os.Open(ProcMountsPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ProcMountsPath, err)
	}
	defer file.Close()

	return ParseReader(file)
}

// ParseReader parses mount entries in /proc/mounts format from r
func ParseReader(r io.Reader) ([]Entry, error) {
	var mounts []Entry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		mounts = append(mounts, Entry{
			Device:     unescapeField(fields[0]),
			MountPoint: unescapeField(fields[1]),
			FSType:     fields[2],
			Options:    fields[3],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}

	return mounts, nil
}

// MountPointOf returns where device is mounted, if anywhere. The first
// matching entry wins.
func MountPointOf(mounts []Entry, device string) maybe.Option[string] {
	for _, mount := range mounts {
		if mount.Device == device {
			return maybe.Some(mount.MountPoint)
		}
	}
	return maybe.None[string]()
}

// unescapeField unescapes special characters in mount fields
// /proc/mounts escapes spaces as \040, tabs as \011, etc.
func unescapeField(s string) string {
	s = strings.ReplaceAll(s, "\\040", " ")
	s = strings.ReplaceAll(s, "\\011", "\t")
	s = strings.ReplaceAll(s, "\\012", "\n")
	s = strings.ReplaceAll(s, "\\134", "\\")
	return s
}
