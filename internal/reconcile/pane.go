package reconcile

import "peoplemeet-client/internal/models"

// PaneState is what the messages sheet is showing.
type PaneState int

const (
	ListView PaneState = iota
	ChatView
	ProfileView
)

func (s PaneState) String() string {
	switch s {
	case ChatView:
		return "chat"
	case ProfileView:
		return "profile"
	default:
		return "list"
	}
}

// Pane is the conversation list / chat / profile navigation of the sheet.
// The zero value shows the list with nothing selected.
type Pane struct {
	state    PaneState
	selected models.ID
}

func (p Pane) State() PaneState { return p.state }
func (p Pane) Selected() models.ID { return p.selected }

// Open shows the chat with id from any state.
func (p *Pane) Open(id models.ID) {
	p.state = ChatView
	p.selected = id
}

// ShowProfile switches from the chat to its counterpart's profile.
func (p *Pane) ShowProfile() bool {
	if p.state != ChatView {
		return false
	}
	p.state = ProfileView
	return true
}

// Back goes profile -> chat -> list.
func (p *Pane) Back() {
	switch p.state {
	case ProfileView:
		p.state = ChatView
	case ChatView:
		p.Close()
	}
}

// Close returns to the list and clears the selection.
func (p *Pane) Close() {
	*p = Pane{}
}
