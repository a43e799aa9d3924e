package kernlog

import (
	"time"

	"github.com/kriansa/usb-automount/internal/maybe"
)

// SelectMostRecentDevice returns the device announced by the last line in
// lines that is both recent and a partition attach message.
//
// lines must be in chronological order, oldest first; otherwise the
// result is simply the last match in the order given.
func SelectMostRecentDevice(lines []string, windowSeconds int, ref time.Time) maybe.Option[string] {
	best := maybe.None[string]()
	for _, line := range lines {
		if !LineIsRecent(windowSeconds, ref, line) {
			continue
		}
		best = ParseDeviceAttach(line).OrElse(func() maybe.Option[string] { return best })
	}
	return best
}
