package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DevDir is the directory every accepted device path lives under
	DevDir = "/dev/"
	// MaxPathLength is the maximum length for a device path
	MaxPathLength = 255
)

// devicePathPattern matches device nodes and their udev symlinks, such as
// /dev/sdb1 or /dev/disk/by-label/USB_STICK
var devicePathPattern = regexp.MustCompile(`^/dev/[a-zA-Z0-9][a-zA-Z0-9_.:+@-]*(/[a-zA-Z0-9_.:+@\\-]+)*$`)

// ValidateDevicePath validates that path names something under /dev:
// - Absolute and rooted at /dev/
// - No parent directory references
// - At most 255 characters
func ValidateDevicePath(path string) error {
	if !strings.HasPrefix(path, DevDir) || len(path) == len(DevDir) {
		return fmt.Errorf("device path must be under %s, got %q", DevDir, path)
	}

	if len(path) > MaxPathLength {
		return fmt.Errorf("device path must be at most %d characters", MaxPathLength)
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("device path must not contain %q components", part)
		}
	}

	if !devicePathPattern.MatchString(path) {
		return fmt.Errorf("device path %q contains invalid characters", path)
	}

	return nil
}
