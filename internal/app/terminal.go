package app

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"peoplemeet-client/internal/models"
	"peoplemeet-client/internal/reconcile"
	"peoplemeet-client/internal/services"
)

// Terminal presents a session on a text stream. It satisfies the
// services collaborator interfaces.
type Terminal struct {
	mu   sync.Mutex
	out  io.Writer
	live bool
	last string
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// SetLive makes Render print every changed view.
func (t *Terminal) SetLive(live bool) {
	t.mu.Lock()
	t.live = live
	t.mu.Unlock()
}

func (t *Terminal) Notify(kind services.NotificationKind, title, text string) {
	label := "info"
	switch kind {
	case services.NotifySuccess:
		label = "ok"
	case services.NotifyError:
		label = "error"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if text == "" {
		fmt.Fprintf(t.out, "[%s] %s\n", label, title)
		return
	}
	fmt.Fprintf(t.out, "[%s] %s: %s\n", label, title, text)
}

// PlayMessageSound rings the terminal bell.
func (t *Terminal) PlayMessageSound() {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprint(t.out, "\a")
}

// ScrollToEnd is a no-op: chat lines are always printed oldest first.
func (t *Terminal) ScrollToEnd() {}

func (t *Terminal) Render(v services.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.live {
		return
	}
	text := formatView(v)
	if text == t.last {
		return
	}
	t.last = text
	fmt.Fprintf(t.out, "--- %s ---\n%s", time.Now().Format("15:04:05"), text)
}

func formatView(v services.View) string {
	var b strings.Builder
	status := "offline"
	if v.Online {
		status = "online"
	}
	fmt.Fprintf(&b, "%s (%s)", v.Self.DisplayName(), status)
	if v.BadgeText != "" {
		fmt.Fprintf(&b, "  unread: %s", v.BadgeText)
	}
	b.WriteString("\n")

	if len(v.Markers) > 0 {
		b.WriteString("nearby:\n")
		writeMarkers(&b, v.Markers)
	}
	if len(v.Conversations) > 0 {
		b.WriteString("chats:\n")
		writeConversations(&b, v.Conversations)
	}
	switch v.Pane {
	case reconcile.ChatView:
		writeChat(&b, v)
	case reconcile.ProfileView:
		if v.Partner != nil {
			writeProfile(&b, *v.Partner, v.PartnerOnline)
		}
	}
	return b.String()
}

func writeMarkers(w io.Writer, markers []services.Marker) {
	for _, m := range markers {
		p := m.Profile
		fmt.Fprintf(w, "  %-6s %s %s, %s", p.Key(), m.Color, p.DisplayName(), p.Age)
		if p.Sex != "" {
			fmt.Fprintf(w, ", %s", p.Sex)
		}
		if m.Distance != "" {
			fmt.Fprintf(w, "  %s away", m.Distance)
		}
		if p.Thoughts != "" {
			fmt.Fprintf(w, "  \"%s\"", p.Thoughts)
		}
		fmt.Fprintln(w)
	}
}

func writeConversations(w io.Writer, rows []services.ConversationRow) {
	for _, row := range rows {
		presence := "offline"
		if row.Online {
			presence = "online"
		}
		fmt.Fprintf(w, "  %-6s %s [%s]", row.Profile.Key(), row.Profile.DisplayName(), presence)
		if row.Unread > 0 {
			fmt.Fprintf(w, " (%s new)", reconcile.FormatBadge(row.Unread))
		}
		if row.Last != nil {
			fmt.Fprintf(w, "  %s", truncate(row.Last.MessageText, 40))
		}
		fmt.Fprintln(w)
	}
}

func writeChat(w io.Writer, v services.View) {
	if v.Partner == nil {
		return
	}
	presence := "offline"
	if v.PartnerOnline {
		presence = "online"
	}
	fmt.Fprintf(w, "chat with %s [%s]:\n", v.Partner.DisplayName(), presence)
	for _, line := range v.Chat {
		who := v.Partner.DisplayName()
		if line.Outgoing {
			who = "you"
		}
		fmt.Fprintf(w, "  %s %s: %s\n", line.Time, who, line.Message.MessageText)
	}
}

func writeProfile(w io.Writer, p models.Profile, online bool) {
	presence := "offline"
	if online {
		presence = "online"
	}
	fmt.Fprintf(w, "%s [%s]\n", p.DisplayName(), presence)
	if p.Age.Valid {
		fmt.Fprintf(w, "  age: %s\n", p.Age)
	}
	if p.Sex != "" {
		fmt.Fprintf(w, "  sex: %s\n", p.Sex)
	}
	if d := p.DisplayDescription(); d != "" {
		fmt.Fprintf(w, "  about: %s\n", d)
	}
	if p.Thoughts != "" {
		fmt.Fprintf(w, "  thoughts: %s\n", p.Thoughts)
	}
	if !online && p.LastTimeOnline != "" {
		fmt.Fprintf(w, "  last seen: %s\n", reconcile.FormatMessageTime(p.LastTimeOnline, time.Now()))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
