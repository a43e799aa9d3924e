package kernlog

import (
	"math"
	"time"

	"github.com/kriansa/usb-automount/internal/maybe"
)

// IsWithin reports whether t lies within windowSeconds of ref, in either
// direction
func IsWithin(windowSeconds int, ref, t time.Time) bool {
	return math.Abs(t.Sub(ref).Seconds()) <= float64(windowSeconds)
}

// LineIsRecent reports whether line carries a timestamp within
// windowSeconds of ref. Lines without a timestamp are never recent.
func LineIsRecent(windowSeconds int, ref time.Time, line string) bool {
	return maybe.Map(ParseTimestampAt(line, ref), func(t time.Time) bool {
		return IsWithin(windowSeconds, ref, t)
	}).GetOrDefault(false)
}
