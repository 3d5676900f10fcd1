package camera

import (
	"strconv"
	"time"
)

var captionPrefix = map[EventKind]string{
	EventButton: "Button pressed ",
	EventMotion: "Motion detected ",
}

// Caption describes a recorded activity relative to now, for example
// "Button pressed 2 minutes ago". Elapsed minutes are rounded up and
// anything up to one minute reads "just now".
func Caption(activity Activity, now time.Time) string {
	elapsed := now.Sub(activity.CreatedAt)
	minutes := elapsed / time.Minute
	if elapsed%time.Minute > 0 {
		minutes++
	}

	text := "just now"
	if minutes > 1 {
		text = strconv.FormatInt(int64(minutes), 10) + " minutes ago"
	}
	return captionPrefix[activity.Event] + text
}
