package reconcile

import (
	"regexp"
	"testing"
	"time"

	"peoplemeet-client/internal/models"
)

func snapshot(convs map[models.ID][]models.Message) *models.MessagesSnapshot {
	s := models.NewMessagesSnapshot()
	for id, msgs := range convs {
		s.Messages[id] = msgs
	}
	return s
}

func in(id, from models.ID, read bool) models.Message {
	return models.Message{ID: id, SenderID: from, ReceiverID: 1, IsRead: models.FlagOf(read)}
}

func out(id, to models.ID, read bool) models.Message {
	return models.Message{ID: id, SenderID: 1, ReceiverID: to, IsRead: models.FlagOf(read)}
}

func TestUnreadAndBadge(t *testing.T) {
	s := snapshot(map[models.ID][]models.Message{
		5: {in(1, 5, false), in(2, 5, false), out(3, 5, false)},
		6: {in(4, 6, true), out(5, 6, false)},
		7: {in(6, 7, false)},
	})
	if n := UnreadCount(s, 5); n != 2 {
		t.Fatalf("UnreadCount(5) = %d, want 2", n)
	}
	counts := UnreadCounts(s)
	if len(counts) != 2 || counts[5] != 2 || counts[7] != 1 {
		t.Fatalf("UnreadCounts = %v", counts)
	}
	if b := Badge(s); b != 2 {
		t.Fatalf("Badge = %d, want 2", b)
	}
	if Badge(nil) != 0 || UnreadCount(nil, 5) != 0 {
		t.Fatal("nil snapshot must count as empty")
	}
}

func TestBadgeCountsConversations(t *testing.T) {
	steps := []*models.MessagesSnapshot{
		snapshot(nil),
		snapshot(map[models.ID][]models.Message{
			5: {in(1, 5, false), in(2, 5, false), in(3, 5, false)},
			7: {in(4, 7, false)},
		}),
		snapshot(map[models.ID][]models.Message{
			5: {in(1, 5, true), in(2, 5, true), in(3, 5, true)},
			7: {in(4, 7, false), in(5, 7, false)},
			8: {out(6, 8, false), out(7, 8, false)},
		}),
		snapshot(map[models.ID][]models.Message{
			5: {in(1, 5, false)},
			7: {in(4, 7, false)},
			8: {out(6, 8, false), in(8, 8, false)},
			9: {out(9, 9, false)},
		}),
	}
	wants := []int{0, 2, 1, 3}

	for i, s := range steps {
		withUnread := 0
		for _, c := range s.Counterparts() {
			if UnreadCount(s, c) > 0 {
				withUnread++
			}
		}
		if b := Badge(s); b != wants[i] || b != withUnread {
			t.Fatalf("step %d: Badge = %d, want %d (conversations with unread %d)", i, b, wants[i], withUnread)
		}
	}
}

func TestNewIncoming(t *testing.T) {
	prev := snapshot(map[models.ID][]models.Message{5: {in(1, 5, false)}})
	next := snapshot(map[models.ID][]models.Message{
		5: {in(1, 5, false), in(2, 5, false)},
		6: {out(3, 6, false)},
	})

	got := NewIncoming(prev, next)
	if len(got) != 1 || len(got[5]) != 1 || got[5][0].ID != 2 {
		t.Fatalf("NewIncoming = %+v, want only message 2", got)
	}

	if !ShouldPlaySound(got, 6, true) {
		t.Fatal("expected sound for a conversation that is not open")
	}
	if ShouldPlaySound(got, 5, true) {
		t.Fatal("no sound for the conversation open on screen")
	}
	if !ShouldPlaySound(got, 5, false) {
		t.Fatal("expected sound when the open conversation is not visible")
	}
	if len(NewIncoming(nil, next)) != 0 {
		t.Fatal("first snapshot must not report new messages")
	}
}

func TestNewIncomingIgnoresReadAndOutgoing(t *testing.T) {
	prev := snapshot(nil)
	next := snapshot(map[models.ID][]models.Message{
		5: {in(1, 5, true), out(2, 5, false)},
	})
	if got := NewIncoming(prev, next); len(got) != 0 {
		t.Fatalf("expected nothing new, got %+v", got)
	}
	if ShouldPlaySound(NewIncoming(prev, next), 0, false) {
		t.Fatal("no sound without new incoming messages")
	}
}

func TestMarkReadLocally(t *testing.T) {
	s := snapshot(map[models.ID][]models.Message{
		5: {in(1, 5, false), out(2, 5, false), in(3, 5, false), in(4, 5, false)},
		6: {in(5, 6, false)},
	})
	if n := MarkReadLocally(s, 5); n != 3 {
		t.Fatalf("MarkReadLocally flipped %d, want 3", n)
	}
	if UnreadCount(s, 5) != 0 || Badge(s) != 1 {
		t.Fatalf("unexpected counts after mark read: %v", UnreadCounts(s))
	}
	if s.Messages[5][1].IsRead.Bool() {
		t.Fatal("outgoing message must not be flipped")
	}
	if n := MarkReadLocally(s, 5); n != 0 {
		t.Fatalf("second MarkReadLocally flipped %d", n)
	}
}

func TestScrollTracker(t *testing.T) {
	var tr ScrollTracker
	if tr.Observe(5, 3) {
		t.Fatal("first observation must not scroll")
	}
	if tr.Observe(5, 3) {
		t.Fatal("unchanged count must not scroll")
	}
	if !tr.Observe(5, 4) {
		t.Fatal("count increase must scroll")
	}
	if tr.Observe(5, 2) {
		t.Fatal("count decrease must not scroll")
	}
	if tr.Observe(6, 10) {
		t.Fatal("switching counterpart must not scroll")
	}
	tr.Reset()
	if tr.Observe(6, 10) {
		t.Fatal("reopening must not scroll")
	}
}

func TestMergeProfile(t *testing.T) {
	selected := models.Profile{ID: 5, Name: "old", Lat: models.CoordOf(1), Lng: models.CoordOf(1)}
	fromMessages := &models.Profile{ID: 5, Name: "Ann", Thoughts: "tea", IsOnline: 0,
		Lat: models.CoordOf(9), Lng: models.CoordOf(9)}
	online := []models.Profile{{ID: 5, Name: "Ann (live)", Description: "hi", Lat: models.CoordOf(50), Lng: models.CoordOf(30)}}

	got := MergeProfile(selected, online, fromMessages)
	if got.Name != "Ann" || got.Thoughts != "tea" || got.Description != "hi" {
		t.Fatalf("unexpected descriptive fields: %+v", got)
	}
	if got.Lat.Value != 50 || got.Lng.Value != 30 {
		t.Fatalf("coordinates must come from the online list: %+v", got)
	}
	if !got.IsOnline.Bool() {
		t.Fatal("presence in the online list must force is_online")
	}

	offline := MergeProfile(selected, nil, fromMessages)
	if offline.HasLocation() {
		t.Fatalf("stale coordinates leaked: %+v", offline)
	}
	if offline.IsOnline.Bool() || IsOnline(offline, nil) {
		t.Fatal("expected offline")
	}
	if !IsOnline(offline, online) {
		t.Fatal("IsOnline must consult the online list")
	}
}

func TestMarkerColor(t *testing.T) {
	hex := regexp.MustCompile(`^#[0-9a-f]{6}$`)
	a := MarkerColor("Ann", "25", "female")
	if a != MarkerColor("Ann", "25", "female") {
		t.Fatal("colour must be deterministic")
	}
	if a == MarkerColor("Bob", "25", "male") {
		t.Fatalf("expected different colours, both %s", a)
	}
	for _, attrs := range [][3]string{{"Ann", "25", "female"}, {"", "", ""}, {"Ølga", "99", "x"}} {
		c := MarkerColor(attrs[0], attrs[1], attrs[2])
		if !hex.MatchString(c) {
			t.Fatalf("MarkerColor(%v) = %q", attrs, c)
		}
		for i := 1; i < 7; i += 2 {
			var v int
			for _, ch := range c[i : i+2] {
				v *= 16
				if ch >= 'a' {
					v += int(ch-'a') + 10
				} else {
					v += int(ch - '0')
				}
			}
			if v < 64 || v > 223 {
				t.Fatalf("channel %d of %s out of range: %d", i, c, v)
			}
		}
	}
	if PresenceColor(true) != "#4ECDC4" || PresenceColor(false) != "#FF6B6B" {
		t.Fatal("unexpected presence colours")
	}
}

func TestDistance(t *testing.T) {
	if got := FormatDistance(Distance(50, 30, 50, 30)); got != "0 m" {
		t.Fatalf("same point = %q, want 0 m", got)
	}
	// The equatorial radius makes one degree 111.3 km; 111.2 km would mean the
	// mean radius, which the map does not use.
	if got := FormatDistance(Distance(0, 0, 0, 1)); got != "111.3 km" {
		t.Fatalf("one degree of longitude = %q, want 111.3 km", got)
	}
	if got := FormatDistance(420.4); got != "420 m" {
		t.Fatalf("FormatDistance(420.4) = %q", got)
	}

	a := models.Profile{Lat: models.CoordOf(0), Lng: models.CoordOf(0)}
	if _, ok := DistanceBetween(a, models.Profile{}); ok {
		t.Fatal("unknown location must not produce a distance")
	}
}

func TestFormatBadge(t *testing.T) {
	for n, want := range map[int]string{0: "", 1: "1", 99: "99", 100: "99+", 250: "99+"} {
		if got := FormatBadge(n); got != want {
			t.Fatalf("FormatBadge(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatMessageTime(t *testing.T) {
	now := time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC)
	if got := FormatMessageTime("2024-03-10 09:05:00", now); got != "09:05" {
		t.Fatalf("same day = %q", got)
	}
	if got := FormatMessageTime("2024-03-09 23:59:00", now); got != "09.03 23:59" {
		t.Fatalf("previous day = %q", got)
	}
	kyiv := time.FixedZone("EET", 2*3600)
	if got := FormatMessageTime("2024-03-10 23:30:00", now.In(kyiv)); got != "11.03 01:30" {
		t.Fatalf("zone shift = %q", got)
	}
	if got := FormatMessageTime("yesterday", now); got != "yesterday" {
		t.Fatalf("unparseable = %q", got)
	}
}

func TestPane(t *testing.T) {
	var p Pane
	if p.State() != ListView || p.ShowProfile() {
		t.Fatal("profile is only reachable from a chat")
	}
	p.Open(5)
	if p.State() != ChatView || p.Selected() != 5 {
		t.Fatalf("after Open: %v %v", p.State(), p.Selected())
	}
	if !p.ShowProfile() || p.State() != ProfileView {
		t.Fatal("expected profile view")
	}
	p.Back()
	if p.State() != ChatView || p.Selected() != 5 {
		t.Fatal("back from profile returns to the chat")
	}
	p.Back()
	if p.State() != ListView || p.Selected() != 0 {
		t.Fatal("back from chat returns to the list and clears selection")
	}
	p.Open(6)
	p.ShowProfile()
	p.Close()
	if p.State() != ListView || p.Selected() != 0 {
		t.Fatal("close resets everything")
	}
}
