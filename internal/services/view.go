package services

import (
	"sort"

	"peoplemeet-client/internal/models"
	"peoplemeet-client/internal/reconcile"
)

// ConversationRow is one entry of the conversation list.
type ConversationRow struct {
	Profile     models.Profile
	Unread      int
	Online      bool
	BorderColor string
	ImageURL    string
	Last        *models.Message
}

// Marker is an online user placed on the map.
type Marker struct {
	Profile  models.Profile
	Color    string
	Distance string
	ImageURL string
}

// ChatLine is a message of the open conversation.
type ChatLine struct {
	Message  models.Message
	Outgoing bool
	Time     string
}

// View is everything a screen needs to draw the current state.
type View struct {
	Self      models.Profile
	Online    bool
	Badge     int
	BadgeText string

	Conversations []ConversationRow
	Markers       []Marker

	Pane          reconcile.PaneState
	Partner       *models.Profile
	PartnerOnline bool
	PartnerImage  string
	Chat          []ChatLine
}

// View returns the current display state.
func (s *ChatService) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *ChatService) viewLocked() View {
	badge := reconcile.Badge(s.snapshot)
	v := View{
		Self:      s.self,
		Online:    s.self.IsOnline.Bool(),
		Badge:     badge,
		BadgeText: reconcile.FormatBadge(badge),
		Pane:      s.pane.State(),
	}

	if s.snapshot != nil {
		for _, id := range s.snapshot.Counterparts() {
			profile := s.profileLocked(id)
			online := reconcile.IsOnline(profile, s.online)
			row := ConversationRow{
				Profile:     profile,
				Unread:      reconcile.UnreadCount(s.snapshot, id),
				Online:      online,
				BorderColor: reconcile.PresenceColor(online),
				ImageURL:    models.ImageURL(s.imageBase, profile.Image),
			}
			if conv := s.snapshot.Messages[id]; len(conv) > 0 {
				last := conv[len(conv)-1]
				row.Last = &last
			}
			v.Conversations = append(v.Conversations, row)
		}
	}

	for _, u := range s.online {
		if !u.HasLocation() {
			continue
		}
		m := Marker{
			Profile:  u,
			Color:    reconcile.MarkerColor(u.Name, u.Age.String(), u.Sex),
			ImageURL: models.ImageURL(s.imageBase, u.Image),
		}
		m.Distance, _ = reconcile.DistanceBetween(s.self, u)
		v.Markers = append(v.Markers, m)
	}
	sort.Slice(v.Markers, func(i, j int) bool { return v.Markers[i].Profile.Key() < v.Markers[j].Profile.Key() })

	if id := s.pane.Selected(); id != 0 {
		partner := s.profileLocked(id)
		v.Partner = &partner
		v.PartnerOnline = reconcile.IsOnline(partner, s.online)
		v.PartnerImage = models.ImageURL(s.imageBase, partner.Image)

		now := s.now()
		for _, m := range s.conversationLocked(id) {
			v.Chat = append(v.Chat, ChatLine{
				Message:  m,
				Outgoing: m.SenderID != id,
				Time:     reconcile.FormatMessageTime(m.CreatedAt, now),
			})
		}
	}
	return v
}

// profileLocked merges what is known about id from the messages snapshot
// and the online list.
func (s *ChatService) profileLocked(id models.ID) models.Profile {
	var fromMessages *models.Profile
	selected := models.Profile{ID: id}
	if s.snapshot != nil {
		if p, ok := s.snapshot.Users[id]; ok {
			fromMessages = &p
			selected = p
		}
	}
	if fromMessages == nil {
		if p, ok := reconcile.FindOnline(s.online, id); ok {
			selected = p
		}
	}
	return reconcile.MergeProfile(selected, s.online, fromMessages)
}
