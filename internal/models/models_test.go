package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestProfileDecodesLooseScalars(t *testing.T) {
	body := `{"id":"12","name":"Olga","age":"27","sex":"female","is_online":"1","lat":"50.45","lng":30.52,"image":null}`
	var p Profile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if p.ID != 12 || p.Age != IntOf(27) || !p.IsOnline.Bool() {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if !p.HasLocation() || p.Lat.Value != 50.45 || p.Lng.Value != 30.52 {
		t.Fatalf("coordinates not decoded: %+v %+v", p.Lat, p.Lng)
	}
	if p.Image != "" {
		t.Fatalf("null image should decode to empty string, got %q", p.Image)
	}
}

func TestProfileNullCoordinates(t *testing.T) {
	var p Profile
	if err := json.Unmarshal([]byte(`{"user_id":4,"lat":null,"lng":""}`), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if p.HasLocation() {
		t.Fatal("expected no location")
	}
	if p.Key() != 4 {
		t.Fatalf("Key() = %d, want user_id fallback 4", p.Key())
	}
	if p.DisplayName() != "user 4" {
		t.Fatalf("DisplayName() = %q", p.DisplayName())
	}
}

func TestOnlineRequestMarshalsNullCoordinates(t *testing.T) {
	b, err := json.Marshal(OnlineRequest{Token: "t", IsOnline: 0})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"token":"t","is_online":0,"lat":null,"lng":null}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestMessagesSnapshotAcceptsEmptyArrays(t *testing.T) {
	var s MessagesSnapshot
	if err := json.Unmarshal([]byte(`{"users":[],"messages":[]}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.Users == nil || s.Messages == nil || len(s.Counterparts()) != 0 {
		t.Fatalf("expected empty initialised snapshot, got %+v", s)
	}
}

func TestMessagesSnapshotDecode(t *testing.T) {
	body := `{
		"users": {"7": {"id": 7, "name": "Ivan"}, "3": {"id": 3, "name": "Anna"}},
		"messages": {"7": [{"id": 1, "sender_id": 7, "receiver_id": 5, "message_text": "hi", "is_read": 0, "created_at": "2025-01-02 10:00:00"}]}
	}`
	var s MessagesSnapshot
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	ids := s.Counterparts()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 7 {
		t.Fatalf("Counterparts() = %v, want [3 7]", ids)
	}
	msgs := s.Conversation(7)
	if len(msgs) != 1 || !msgs[0].UnreadFrom(7) || msgs[0].UnreadFrom(5) {
		t.Fatalf("unexpected conversation: %+v", msgs)
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	s := NewMessagesSnapshot()
	s.Messages[7] = []Message{{ID: 1, SenderID: 7}}
	c := s.Clone()
	c.Messages[7][0].IsRead = 1
	if s.Messages[7][0].IsRead != 0 {
		t.Fatal("mutating the clone changed the original")
	}
}

func TestParseTimestampAssumesUTC(t *testing.T) {
	got, err := ParseTimestamp("2025-03-04 05:06:07")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	want := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	zoned, err := ParseTimestamp("2025-03-04T05:06:07+02:00")
	if err != nil {
		t.Fatalf("ParseTimestamp zoned failed: %v", err)
	}
	if !zoned.Equal(want.Add(-2 * time.Hour)) {
		t.Fatalf("zone suffix ignored: %v", zoned)
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for garbage timestamp")
	}
}

func TestAuthResponseUserLocations(t *testing.T) {
	cases := map[string]ID{
		`{"token":"a","user":{"id":1}}`:       1,
		`{"token":"a","data":{"id":2}}`:       2,
		`{"token":"a","id":3,"name":"x"}`:     3,
		`{"token":"a","message":"welcome"}`:   0,
		`{"token":"a","user":null,"data":[]}`: 0,
	}
	for body, want := range cases {
		var r AuthResponse
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", body, err)
		}
		if r.Token != "a" {
			t.Fatalf("token lost for %s", body)
		}
		var got ID
		if r.User != nil {
			got = r.User.ID
		}
		if got != want {
			t.Fatalf("user id for %s = %d, want %d", body, got, want)
		}
	}
}

func TestImageURL(t *testing.T) {
	base := "https://peoplemeet.com.ua/"
	if got := ImageURL(base, "a.jpg"); got != "https://peoplemeet.com.ua/uploads/a.jpg" {
		t.Fatalf("ImageURL = %q", got)
	}
	if got := ImageURL(base, "https://cdn.example.com/a.jpg"); got != "https://cdn.example.com/a.jpg" {
		t.Fatalf("absolute URL rewritten: %q", got)
	}
	if got := ImageURL(base, " "); got != "" {
		t.Fatalf("empty image should give empty URL, got %q", got)
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID(" 42 "); err != nil || id != 42 {
		t.Fatalf("ParseID = %d, %v", id, err)
	}
	if _, err := ParseID("0"); err == nil {
		t.Fatal("expected error for zero id")
	}
}
