package reconcile

import (
	"strconv"
	"time"

	"peoplemeet-client/internal/models"
)

// FormatBadge caps the unread badge at "99+". Zero renders as "".
func FormatBadge(n int) string {
	switch {
	case n <= 0:
		return ""
	case n > 99:
		return "99+"
	default:
		return strconv.Itoa(n)
	}
}

// FormatMessageTime renders created_at in now's location: "15:04" for
// messages from the same day, "02.01 15:04" otherwise. Unparseable values
// are returned unchanged.
func FormatMessageTime(createdAt string, now time.Time) string {
	t, err := models.ParseTimestamp(createdAt)
	if err != nil {
		return createdAt
	}
	t = t.In(now.Location())
	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return t.Format("15:04")
	}
	return t.Format("02.01 15:04")
}
