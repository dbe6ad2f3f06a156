package checkin

import (
	"fmt"
	"time"
)

// FormatDuration renders an elapsed session time the way desk staff see it:
// "N second(s)" under a minute, "N minute(s)" under an hour, "Hh Mm" beyond.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	mins := ms / 60000
	secs := (ms % 60000) / 1000

	switch {
	case mins == 0:
		return fmt.Sprintf("%d %s", secs, plural(secs, "second"))
	case mins < 60:
		return fmt.Sprintf("%d %s", mins, plural(mins, "minute"))
	default:
		return fmt.Sprintf("%dh %dm", mins/60, mins%60)
	}
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
