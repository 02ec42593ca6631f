// Package apitest runs an in-memory imitation of the People Meet API on a
// local port so the client, pollers and services can be exercised end to end.
package apitest

import (
	"io"
	"net"
	"sync"
	"time"

	"peoplemeet-client/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Shape selects how /online_users wraps its list.
type Shape int

const (
	ShapeArray Shape = iota // [...]
	ShapeUsers              // {"users": [...]}
	ShapeData               // {"data": [...]}
	ShapeBogus              // {"count": n}
)

type failure struct {
	status    int
	remaining int
}

// Server is a fake API. Its zero value is not usable; call New.
type Server struct {
	URL string

	app *fiber.App
	ln  net.Listener

	mu            sync.Mutex
	secret        []byte
	accounts      map[models.ID]*account
	byEmail       map[string]models.ID
	messages      []models.Message
	recoveryCodes map[string]string
	nextUserID    models.ID
	nextMessageID models.ID
	shape         Shape
	calls         map[string]int
	failures      map[string]*failure
	delays        map[string]time.Duration
	uploads       map[string][]byte
}

type Option func(*Server)

// WithLogOutput sends the fiber request log to w (discarded by default).
func WithLogOutput(w io.Writer) Option {
	return func(s *Server) {
		s.app.Use(logger.New(logger.Config{Output: w}))
	}
}

// New starts a server on a random loopback port.
func New(opts ...Option) (*Server, error) {
	s := &Server{
		secret:        []byte("apitest-secret"),
		accounts:      make(map[models.ID]*account),
		byEmail:       make(map[string]models.ID),
		recoveryCodes: make(map[string]string),
		nextUserID:    1,
		nextMessageID: 1,
		calls:         make(map[string]int),
		failures:      make(map[string]*failure),
		delays:        make(map[string]time.Duration),
		uploads:       make(map[string][]byte),
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             8 * 1024 * 1024,
	})
	s.app.Use(recover.New())
	for _, opt := range opts {
		opt(s)
	}
	s.app.Use(s.instrument)
	s.routes()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s.ln = ln
	s.URL = "http://" + ln.Addr().String()

	go func() {
		_ = s.app.Listener(ln)
	}()
	return s, nil
}

// Close stops the server, giving in-flight requests a moment to finish.
func (s *Server) Close() error {
	err := s.app.ShutdownWithTimeout(2 * time.Second)
	_ = s.ln.Close()
	return err
}

func (s *Server) routes() {
	// Public
	s.app.Post("/login", s.handleLogin)
	s.app.Post("/signup", s.handleSignUp)
	s.app.Post("/send_recovery_code", s.handleSendRecoveryCode)
	s.app.Post("/check_recovery_code", s.handleCheckRecoveryCode)
	s.app.Post("/change_password", s.handleChangePassword)

	// Token in body
	s.app.Post("/self", s.authenticated(s.handleSelf))
	s.app.Post("/online_users", s.authenticated(s.handleOnlineUsers))
	s.app.Post("/get_messages", s.authenticated(s.handleGetMessages))
	s.app.Post("/read_messages", s.authenticated(s.handleReadMessages))
	s.app.Post("/send_message", s.authenticated(s.handleSendMessage))
	s.app.Post("/online", s.authenticated(s.handleOnline))
	s.app.Post("/remove_conversation", s.authenticated(s.handleRemoveConversation))
	s.app.Post("/update_profile", s.authenticated(s.handleUpdateProfile))
	s.app.Post("/upload_image", s.authenticated(s.handleUploadImage))

	s.app.Get("/uploads/:name", s.handleServeUpload)
}

// instrument counts calls and applies injected failures and delays.
func (s *Server) instrument(c *fiber.Ctx) error {
	path := c.Path()

	s.mu.Lock()
	s.calls[path]++
	delay := s.delays[path]
	status := 0
	if f := s.failures[path]; f != nil {
		status = f.status
		if f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				delete(s.failures, path)
			}
		}
	}
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if status != 0 {
		return c.Status(status).JSON(fiber.Map{"message": "injected failure"})
	}
	return c.Next()
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Fail makes the next n requests to path answer with status. n <= 0 fails
// until Recover is called.
func (s *Server) Fail(path string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, remaining: n}
}

func (s *Server) Recover(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// Delay holds every request to path for d before handling it.
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

func (s *Server) SetOnlineShape(shape Shape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shape = shape
}
