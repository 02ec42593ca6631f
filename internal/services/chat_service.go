package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"peoplemeet-client/internal/api"
	"peoplemeet-client/internal/models"
	"peoplemeet-client/internal/poller"
	"peoplemeet-client/internal/reconcile"
	"peoplemeet-client/internal/utils"
)

const (
	MinAge = 18
	MaxAge = 100
)

type NotificationKind int

const (
	NotifyInfo NotificationKind = iota
	NotifySuccess
	NotifyError
)

// Notifier shows short-lived messages to the user.
type Notifier interface {
	Notify(kind NotificationKind, title, text string)
}

type SoundPlayer interface {
	PlayMessageSound()
}

// Scroller moves the open conversation to its newest message.
type Scroller interface {
	ScrollToEnd()
}

// ViewSink receives every new display state.
type ViewSink interface {
	Render(v View)
}

// ChatAPI is the subset of the remote API used once signed in.
type ChatAPI interface {
	poller.OnlineUsersFetcher
	poller.MessagesFetcher
	ReadMessages(ctx context.Context, token string, partner models.ID) error
	SendMessage(ctx context.Context, token string, receiver models.ID, text string) error
	SetOnline(ctx context.Context, token string, online bool, lat, lng models.Coordinate) error
	RemoveConversation(ctx context.Context, token string, partner models.ID) error
	UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.Profile, error)
	UploadImage(ctx context.Context, token, filename string, content []byte) (*models.Profile, error)
}

type ChatConfig struct {
	API   ChatAPI
	Users *UserService

	Notifier Notifier
	Sound    SoundPlayer
	Scroller Scroller
	Sink     ViewSink

	ImageBaseURL   string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Logger         *log.Logger
	Now            func() time.Time
}

// ChatService keeps the reconciled state of a signed-in session: it owns
// both pollers, folds their deliveries into a View and runs the one-shot
// actions (going online, sending, marking read, deleting).
type ChatService struct {
	api      ChatAPI
	users    *UserService
	presence *poller.PresencePoller
	messages *poller.MessagesPoller

	notifier Notifier
	sound    SoundPlayer
	scroller Scroller
	sink     ViewSink

	imageBase string
	timeout   time.Duration
	logger    *log.Logger
	now       func() time.Time

	mu          sync.Mutex
	self        models.Profile
	snapshot    *models.MessagesSnapshot // as displayed, including optimistic reads
	previous    *models.MessagesSnapshot // as last delivered, for new message detection
	online      []models.Profile
	pane        reconcile.Pane
	visible     bool
	scroll      reconcile.ScrollTracker
	markingRead map[models.ID]bool

	wg sync.WaitGroup
}

func NewChatService(cfg ChatConfig) *ChatService {
	s := &ChatService{
		api:         cfg.API,
		users:       cfg.Users,
		notifier:    cfg.Notifier,
		sound:       cfg.Sound,
		scroller:    cfg.Scroller,
		sink:        cfg.Sink,
		imageBase:   cfg.ImageBaseURL,
		timeout:     cfg.RequestTimeout,
		logger:      cfg.Logger,
		now:         cfg.Now,
		markingRead: make(map[models.ID]bool),
	}
	if s.notifier == nil {
		s.notifier = nop{}
	}
	if s.sound == nil {
		s.sound = nop{}
	}
	if s.scroller == nil {
		s.scroller = nop{}
	}
	if s.sink == nil {
		s.sink = nop{}
	}
	if s.timeout <= 0 {
		s.timeout = poller.DefaultTimeout
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	opts := []poller.Option{
		poller.WithInterval(cfg.PollInterval),
		poller.WithTimeout(s.timeout),
		poller.WithLogger(s.logger),
	}
	s.presence = poller.NewPresence(cfg.API, cfg.Users, opts...)
	s.messages = poller.NewMessages(cfg.API, cfg.Users, opts...)
	return s
}

type nop struct{}

func (nop) Notify(NotificationKind, string, string) {}
func (nop) PlayMessageSound() {}
func (nop) ScrollToEnd() {}
func (nop) Render(View) {}

// LoadSelf fetches the own profile without starting any polling.
func (s *ChatService) LoadSelf(ctx context.Context) (models.Profile, error) {
	self, err := s.users.Self(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoToken) {
			s.fail("Could not load your profile", err)
		}
		return models.Profile{}, err
	}

	s.mu.Lock()
	s.self = *self
	s.mu.Unlock()
	return *self, nil
}

// Start loads the own profile and begins polling. Messages are polled for
// the whole session; presence only while the user is online.
func (s *ChatService) Start(ctx context.Context) error {
	self, err := s.LoadSelf(ctx)
	if err != nil {
		return err
	}

	s.presence.SetCallback(s.OnPresence)
	s.messages.SetCallback(s.OnMessages)
	s.messages.Start()
	if self.IsOnline.Bool() {
		s.presence.Enable()
	} else {
		s.presence.Disable()
	}
	s.publish()
	return nil
}

// Close detaches the callbacks, stops both pollers and waits for background
// requests started by the service.
func (s *ChatService) Close() {
	s.presence.SetCallback(nil)
	s.messages.SetCallback(nil)
	s.presence.Disable()
	s.messages.Stop()
	s.wg.Wait()
}

// Logout ends the session and forgets the stored token.
func (s *ChatService) Logout(ctx context.Context) error {
	s.Close()
	s.mu.Lock()
	s.self = models.Profile{}
	s.snapshot, s.previous, s.online = nil, nil, nil
	s.pane.Close()
	s.mu.Unlock()
	return s.users.Logout(ctx)
}

func (s *ChatService) PresencePolling() bool { return s.presence.Enabled() }
func (s *ChatService) MessagePolling() bool { return s.messages.Running() }

// GoOnline publishes the user's position and starts presence polling. The
// profile must have a name, an age between MinAge and MaxAge and a sex.
func (s *ChatService) GoOnline(ctx context.Context, lat, lng float64) error {
	s.mu.Lock()
	self := s.self
	s.mu.Unlock()

	if err := validateForOnline(self); err != nil {
		s.notifier.Notify(NotifyError, "Complete your profile", err.Error())
		return err
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return invalid("coordinates out of range")
	}

	err := s.withToken(ctx, func(token string) error {
		return s.api.SetOnline(ctx, token, true, models.CoordOf(lat), models.CoordOf(lng))
	})
	if err != nil {
		s.fail("Could not go online", err)
		return err
	}

	s.mu.Lock()
	s.self.IsOnline = 1
	s.self.Lat, s.self.Lng = models.CoordOf(lat), models.CoordOf(lng)
	self = s.self
	s.mu.Unlock()

	utils.LogError(s.users.SaveUserData(ctx, self), "cache self profile")
	s.presence.Enable()
	s.notifier.Notify(NotifySuccess, "You are online", "Others can see you on the map")
	s.publish()
	return nil
}

func validateForOnline(p models.Profile) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return invalid("name is required")
	case !p.Age.Valid:
		return invalid("age is required")
	case p.Age.Value < MinAge || p.Age.Value > MaxAge:
		return invalid("age must be between %d and %d", MinAge, MaxAge)
	case strings.TrimSpace(p.Sex) == "":
		return invalid("sex is required")
	}
	return nil
}

// GoOffline hides the user from the map. Message polling keeps running.
func (s *ChatService) GoOffline(ctx context.Context) error {
	err := s.withToken(ctx, func(token string) error {
		return s.api.SetOnline(ctx, token, false, models.Coordinate{}, models.Coordinate{})
	})
	if err != nil {
		s.fail("Could not go offline", err)
		return err
	}

	s.presence.Disable()
	s.mu.Lock()
	s.self.IsOnline = 0
	s.self.Lat, s.self.Lng = models.Coordinate{}, models.Coordinate{}
	s.online = nil
	self := s.self
	s.mu.Unlock()

	utils.LogError(s.users.SaveUserData(ctx, self), "cache self profile")
	s.notifier.Notify(NotifyInfo, "You are offline", "")
	s.publish()
	return nil
}

// OnPresence is the presence poller callback.
func (s *ChatService) OnPresence(users []models.Profile) {
	s.mu.Lock()
	if !s.self.IsOnline.Bool() {
		// Late delivery after going offline.
		s.mu.Unlock()
		return
	}
	others := make([]models.Profile, 0, len(users))
	for _, u := range users {
		if u.Key() != s.self.Key() {
			others = append(others, u)
		}
	}
	s.online = others
	view := s.viewLocked()
	s.mu.Unlock()

	s.sink.Render(view)
}

// OnMessages is the messages poller callback. It takes ownership of snapshot.
// A nil snapshot keeps the current state unless the session is gone.
func (s *ChatService) OnMessages(snapshot *models.MessagesSnapshot) {
	if snapshot == nil {
		if s.messages.Running() {
			return
		}
		s.mu.Lock()
		s.snapshot, s.previous = nil, nil
		s.pane.Close()
		view := s.viewLocked()
		s.mu.Unlock()
		s.notifier.Notify(NotifyInfo, "Signed out", "Sign in again to see your messages")
		s.sink.Render(view)
		return
	}

	s.mu.Lock()
	open := s.pane.Selected()
	onScreen := s.chatOnScreenLocked()
	play := reconcile.ShouldPlaySound(reconcile.NewIncoming(s.previous, snapshot), open, onScreen)

	s.previous = snapshot.Clone()
	s.snapshot = snapshot

	mark := false
	if onScreen {
		if s.markingRead[open] {
			// The read request is still in flight; keep showing it as read.
			reconcile.MarkReadLocally(s.snapshot, open)
		} else {
			mark = s.beginMarkReadLocked(open)
		}
	}
	scroll := onScreen && s.scroll.Observe(open, len(s.snapshot.Messages[open]))
	view := s.viewLocked()
	s.mu.Unlock()

	if play {
		s.sound.PlayMessageSound()
	}
	if scroll {
		s.scroller.ScrollToEnd()
	}
	if mark {
		s.sendMarkRead(context.Background(), open)
	}
	s.sink.Render(view)
}

// Refresh fetches the messages snapshot once, outside the poll schedule.
func (s *ChatService) Refresh(ctx context.Context) error {
	var snapshot *models.MessagesSnapshot
	err := s.withToken(ctx, func(token string) error {
		var err error
		snapshot, err = s.api.GetMessages(ctx, token)
		return err
	})
	if err != nil {
		utils.LogError(err, "refresh messages")
		return err
	}
	s.OnMessages(snapshot)
	return nil
}

// RefreshPresence fetches the online users once, outside the poll schedule.
func (s *ChatService) RefreshPresence(ctx context.Context) error {
	var users []models.Profile
	err := s.withToken(ctx, func(token string) error {
		var err error
		users, err = s.api.OnlineUsers(ctx, token)
		return err
	})
	if err != nil {
		utils.LogError(err, "refresh online users")
		return err
	}
	s.OnPresence(users)
	return nil
}

func (s *ChatService) chatOnScreenLocked() bool {
	return s.visible && s.pane.State() == reconcile.ChatView
}

// beginMarkReadLocked flips the unread messages of counterpart locally and
// reports whether a read request should be sent.
func (s *ChatService) beginMarkReadLocked(counterpart models.ID) bool {
	if counterpart == 0 || s.markingRead[counterpart] || reconcile.UnreadCount(s.snapshot, counterpart) == 0 {
		return false
	}
	reconcile.MarkReadLocally(s.snapshot, counterpart)
	s.markingRead[counterpart] = true
	return true
}

// sendMarkRead fires /read_messages in the background. Failures are only
// logged and the optimistic state is kept.
func (s *ChatService) sendMarkRead(ctx context.Context, counterpart models.ID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		err := s.withToken(ctx, func(token string) error {
			return s.api.ReadMessages(ctx, token, counterpart)
		})

		s.mu.Lock()
		delete(s.markingRead, counterpart)
		s.mu.Unlock()
		utils.LogError(err, "mark messages read")
	}()
}

// SetVisible records whether the messages sheet is on screen. Hiding it
// returns the sheet to the conversation list.
func (s *ChatService) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	if !visible {
		s.pane.Close()
		s.scroll.Reset()
	}
	s.mu.Unlock()
	s.publish()
}

// OpenChat shows the conversation with id and marks its incoming messages
// read.
func (s *ChatService) OpenChat(ctx context.Context, id models.ID) error {
	if id == 0 {
		return invalid("no conversation selected")
	}

	s.mu.Lock()
	s.visible = true
	s.pane.Open(id)
	s.scroll.Reset()
	s.scroll.Observe(id, len(s.conversationLocked(id)))
	mark := s.beginMarkReadLocked(id)
	view := s.viewLocked()
	s.mu.Unlock()

	s.scroller.ScrollToEnd()
	if mark {
		s.sendMarkRead(ctx, id)
	}
	s.sink.Render(view)
	return nil
}

// CloseChat goes back to the conversation list.
func (s *ChatService) CloseChat() {
	s.mu.Lock()
	s.pane.Close()
	s.scroll.Reset()
	s.mu.Unlock()
	s.publish()
}

// ShowProfile switches the open chat to its counterpart's profile.
func (s *ChatService) ShowProfile() bool {
	s.mu.Lock()
	ok := s.pane.ShowProfile()
	s.mu.Unlock()
	if ok {
		s.publish()
	}
	return ok
}

func (s *ChatService) Back() {
	s.mu.Lock()
	s.pane.Back()
	if s.pane.State() == reconcile.ListView {
		s.scroll.Reset()
	}
	s.mu.Unlock()
	s.publish()
}

// SendMessage sends text to id and refreshes the snapshot so the message
// shows up without waiting for the next tick.
func (s *ChatService) SendMessage(ctx context.Context, id models.ID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("message is empty")
	}
	if id == 0 {
		return invalid("no recipient")
	}

	err := s.withToken(ctx, func(token string) error {
		return s.api.SendMessage(ctx, token, id, text)
	})
	if err != nil {
		s.fail("Could not send message", err)
		return err
	}
	// Refresh logs its own failure; the next tick catches up anyway.
	s.Refresh(ctx)
	return nil
}

// RemoveConversation deletes the history with id. Local messages are
// cleared until the next tick brings the remaining conversations back.
func (s *ChatService) RemoveConversation(ctx context.Context, id models.ID) error {
	err := s.withToken(ctx, func(token string) error {
		return s.api.RemoveConversation(ctx, token, id)
	})
	if err != nil {
		s.fail("Could not delete conversation", err)
		return err
	}

	s.mu.Lock()
	s.snapshot = models.NewMessagesSnapshot()
	s.previous = nil
	s.pane.Close()
	s.scroll.Reset()
	s.mu.Unlock()

	s.notifier.Notify(NotifySuccess, "Conversation deleted", "")
	s.publish()
	return nil
}

// UpdateProfile saves the editable profile fields.
func (s *ChatService) UpdateProfile(ctx context.Context, name string, age int, sex, description, thoughts string) (*models.Profile, error) {
	req := models.UpdateProfileRequest{
		Name:        strings.TrimSpace(name),
		Age:         models.IntOf(age),
		Sex:         strings.TrimSpace(sex),
		Description: strings.TrimSpace(description),
		Thoughts:    strings.TrimSpace(thoughts),
	}
	if err := validateForOnline(models.Profile{Name: req.Name, Age: req.Age, Sex: req.Sex}); err != nil {
		return nil, err
	}

	var updated *models.Profile
	err := s.withToken(ctx, func(token string) error {
		req.Token = token
		var err error
		updated, err = s.api.UpdateProfile(ctx, req)
		return err
	})
	if err != nil {
		s.fail("Could not save profile", err)
		return nil, err
	}

	s.mu.Lock()
	s.self.Name, s.self.Age, s.self.Sex = req.Name, req.Age, req.Sex
	s.self.Description, s.self.Thoughts = req.Description, req.Thoughts
	if updated != nil && updated.Image != "" {
		s.self.Image = updated.Image
	}
	self := s.self
	s.mu.Unlock()

	utils.LogError(s.users.SaveUserData(ctx, self), "cache self profile")
	s.notifier.Notify(NotifySuccess, "Profile saved", "")
	s.publish()
	return &self, nil
}

// UploadImage replaces the avatar with an already cropped image.
func (s *ChatService) UploadImage(ctx context.Context, filename string, content []byte) (*models.Profile, error) {
	if len(content) == 0 {
		return nil, invalid("image is empty")
	}

	var updated *models.Profile
	err := s.withToken(ctx, func(token string) error {
		var err error
		updated, err = s.api.UploadImage(ctx, token, filename, content)
		return err
	})
	if err != nil {
		s.fail("Could not upload image", err)
		return nil, err
	}

	s.mu.Lock()
	if updated != nil {
		s.self.Image = updated.Image
	}
	self := s.self
	s.mu.Unlock()

	utils.LogError(s.users.SaveUserData(ctx, self), "cache self profile")
	s.publish()
	return &self, nil
}

func (s *ChatService) withToken(ctx context.Context, fn func(token string) error) error {
	token, err := s.users.Token(ctx)
	if err != nil {
		return err
	}
	return fn(token)
}

func (s *ChatService) fail(title string, err error) {
	text := api.Message(err)
	if text == "" {
		text = err.Error()
	}
	s.logger.Printf("ChatService: %s: %v", title, err)
	s.notifier.Notify(NotifyError, title, text)
}

func (s *ChatService) publish() {
	s.mu.Lock()
	view := s.viewLocked()
	s.mu.Unlock()
	s.sink.Render(view)
}

func (s *ChatService) conversationLocked(id models.ID) []models.Message {
	if s.snapshot == nil {
		return nil
	}
	return s.snapshot.Messages[id]
}
