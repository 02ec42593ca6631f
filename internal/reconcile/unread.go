// Package reconcile holds the pure functions that turn polled snapshots into
// what the user sees: unread counts, new message detection, merged profiles,
// marker colours and distances.
package reconcile

import (
	"peoplemeet-client/internal/models"
)

// UnreadCount counts messages sent by counterpart that are still unread.
func UnreadCount(s *models.MessagesSnapshot, counterpart models.ID) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, m := range s.Messages[counterpart] {
		if m.UnreadFrom(counterpart) {
			n++
		}
	}
	return n
}

// UnreadCounts returns the non-zero unread counts keyed by counterpart.
func UnreadCounts(s *models.MessagesSnapshot) map[models.ID]int {
	counts := make(map[models.ID]int)
	if s == nil {
		return counts
	}
	for counterpart := range s.Messages {
		if n := UnreadCount(s, counterpart); n > 0 {
			counts[counterpart] = n
		}
	}
	return counts
}

// Badge is the number of conversations holding at least one unread incoming
// message, not the number of unread messages.
func Badge(s *models.MessagesSnapshot) int {
	return len(UnreadCounts(s))
}

// NewIncoming returns, per counterpart, the unread incoming messages of next
// whose ids were absent from the same conversation in prev. A nil prev is
// the first snapshot of a session and yields nothing.
func NewIncoming(prev, next *models.MessagesSnapshot) map[models.ID][]models.Message {
	out := make(map[models.ID][]models.Message)
	if prev == nil || next == nil {
		return out
	}
	for counterpart, msgs := range next.Messages {
		seen := make(map[models.ID]struct{}, len(prev.Messages[counterpart]))
		for _, m := range prev.Messages[counterpart] {
			seen[m.ID] = struct{}{}
		}
		for _, m := range msgs {
			if _, ok := seen[m.ID]; ok {
				continue
			}
			if m.UnreadFrom(counterpart) {
				out[counterpart] = append(out[counterpart], m)
			}
		}
	}
	return out
}

// ShouldPlaySound reports whether a tick's new incoming messages warrant the
// notification sound: at least one must belong to a conversation other than
// the one open on screen. visible is false when no chat is on screen.
func ShouldPlaySound(incoming map[models.ID][]models.Message, open models.ID, visible bool) bool {
	for counterpart, msgs := range incoming {
		if len(msgs) == 0 {
			continue
		}
		if visible && counterpart == open {
			continue
		}
		return true
	}
	return false
}

// MarkReadLocally flips the unread messages from counterpart to read and
// returns how many changed. Outgoing messages are left alone.
func MarkReadLocally(s *models.MessagesSnapshot, counterpart models.ID) int {
	if s == nil {
		return 0
	}
	msgs := s.Messages[counterpart]
	n := 0
	for i := range msgs {
		if msgs[i].UnreadFrom(counterpart) {
			msgs[i].IsRead = 1
			n++
		}
	}
	return n
}

// ScrollTracker decides when the open conversation should jump to its end:
// only when its message count grew since the last observation.
type ScrollTracker struct {
	counterpart models.ID
	count       int
}

// Observe records the count for counterpart and reports whether it grew.
// The first observation of a counterpart never scrolls.
func (t *ScrollTracker) Observe(counterpart models.ID, count int) bool {
	if counterpart != t.counterpart {
		t.counterpart = counterpart
		t.count = count
		return false
	}
	grew := count > t.count
	t.count = count
	return grew
}

// Reset forgets the tracked conversation.
func (t *ScrollTracker) Reset() {
	*t = ScrollTracker{}
}
