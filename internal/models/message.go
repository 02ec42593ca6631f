package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"peoplemeet-client/internal/utils"
)

type Message struct {
	ID          ID     `json:"id"`
	SenderID    ID     `json:"sender_id"`
	ReceiverID  ID     `json:"receiver_id"`
	MessageText string `json:"message_text"`
	IsRead      Flag   `json:"is_read"`
	CreatedAt   string `json:"created_at"`
}

// UnreadFrom reports whether the message was sent by counterpart and not yet read.
func (m Message) UnreadFrom(counterpart ID) bool {
	return m.SenderID == counterpart && !m.IsRead.Bool()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// CreatedTime parses created_at. Timestamps without a zone are UTC.
func (m Message) CreatedTime() (time.Time, error) {
	return ParseTimestamp(m.CreatedAt)
}

// ParseTimestamp parses the server's timestamp formats, assuming UTC when no
// zone suffix is present.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// MessagesSnapshot is the full payload of /get_messages: every counterpart's
// profile and the complete message history per counterpart.
type MessagesSnapshot struct {
	Users    map[ID]Profile   `json:"users"`
	Messages map[ID][]Message `json:"messages"`
}

// NewMessagesSnapshot returns an empty snapshot with initialised maps.
func NewMessagesSnapshot() *MessagesSnapshot {
	return &MessagesSnapshot{
		Users:    make(map[ID]Profile),
		Messages: make(map[ID][]Message),
	}
}

// UnmarshalJSON accepts an empty JSON array in place of either map, which is
// what the server sends for a user without conversations.
func (s *MessagesSnapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Users    json.RawMessage `json:"users"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Users = make(map[ID]Profile)
	s.Messages = make(map[ID][]Message)
	if utils.JSONKind(raw.Users) == '{' {
		if err := json.Unmarshal(raw.Users, &s.Users); err != nil {
			return fmt.Errorf("users: %w", err)
		}
	}
	if utils.JSONKind(raw.Messages) == '{' {
		if err := json.Unmarshal(raw.Messages, &s.Messages); err != nil {
			return fmt.Errorf("messages: %w", err)
		}
	}
	return nil
}

// Counterparts returns every counterpart id present in users or messages,
// in ascending order.
func (s *MessagesSnapshot) Counterparts() []ID {
	if s == nil {
		return nil
	}
	seen := make(map[ID]struct{}, len(s.Users))
	for id := range s.Users {
		seen[id] = struct{}{}
	}
	for id := range s.Messages {
		seen[id] = struct{}{}
	}
	ids := make([]ID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Conversation returns the messages exchanged with counterpart.
func (s *MessagesSnapshot) Conversation(counterpart ID) []Message {
	if s == nil {
		return nil
	}
	return s.Messages[counterpart]
}

// Clone returns a deep copy so optimistic mutations never leak into a
// snapshot retained for diffing.
func (s *MessagesSnapshot) Clone() *MessagesSnapshot {
	if s == nil {
		return nil
	}
	out := &MessagesSnapshot{
		Users:    make(map[ID]Profile, len(s.Users)),
		Messages: make(map[ID][]Message, len(s.Messages)),
	}
	for id, u := range s.Users {
		out.Users[id] = u
	}
	for id, msgs := range s.Messages {
		out.Messages[id] = append([]Message(nil), msgs...)
	}
	return out
}

type SendMessageRequest struct {
	Token       string `json:"token"`
	ReceiverID  ID     `json:"receiver_id"`
	MessageText string `json:"message_text"`
}

// ChatPartnerRequest is the body of /read_messages and /remove_conversation.
type ChatPartnerRequest struct {
	Token         string `json:"token"`
	ChatPartnerID ID     `json:"chat_partner_id"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

// OnlineRequest toggles presence. Coordinates are null when going offline.
type OnlineRequest struct {
	Token    string     `json:"token"`
	IsOnline Flag       `json:"is_online"`
	Lat      Coordinate `json:"lat"`
	Lng      Coordinate `json:"lng"`
}
