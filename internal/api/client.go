// Package api is a typed client for the People Meet JSON API. Every endpoint
// is a POST with a JSON body; authenticated calls carry the session token in
// the body.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"peoplemeet-client/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const DefaultBaseURL = "https://peoplemeet.com.ua"

var (
	// ErrTransport wraps network level failures (DNS, refused, timeout).
	ErrTransport = errors.New("api: transport failure")
	// ErrDecode wraps responses whose body does not match the expected shape.
	ErrDecode = errors.New("api: unexpected response body")
	// ErrUnauthorized matches *Error values with status 401 or 403.
	ErrUnauthorized = errors.New("api: unauthorized")
)

// Error is a non-2xx response.
type Error struct {
	Status    int
	Message   string
	RequestID string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == fiber.StatusUnauthorized || e.Status == fiber.StatusForbidden)
}

// Message extracts the server supplied message from err, if any.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	baseURL   string
	timeout   time.Duration
	userAgent string
	logger    *log.Logger
}

type Option func(*Client)

// WithTimeout bounds every request. A context deadline that is sooner wins.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for baseURL, e.g. "https://peoplemeet.com.ua".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		timeout:   10 * time.Second,
		userAgent: "peoplemeet-client",
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// postJSON sends body as JSON to path and decodes the response into out
// (when out is non-nil).
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a := fiber.Post(c.baseURL + path)
	a.JSON(body)
	return c.do(ctx, path, a, out)
}

func (c *Client) do(ctx context.Context, path string, a *fiber.Agent, out interface{}) error {
	requestID := uuid.New().String()
	a.Set("X-Request-ID", requestID)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.userAgent != "" {
		a.UserAgent(c.userAgent)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		fiber.ReleaseAgent(a)
		return context.DeadlineExceeded
	}
	a.Timeout(timeout)

	status, body, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("%w: POST %s (request %s): %v", ErrTransport, path, requestID, errors.Join(errs...))
	}
	// The agent has no context support; honour a cancellation that happened in flight.
	if err := ctx.Err(); err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		apiErr := &Error{Status: status, Message: errorMessage(body), RequestID: requestID}
		c.logger.Printf("api: POST %s failed (request %s): %v", path, requestID, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := utils.SafeJSONParse(body, out); err != nil {
		return fmt.Errorf("%w: POST %s (request %s): %v", ErrDecode, path, requestID, err)
	}
	return nil
}

// errorMessage pulls "message" or "error" out of an error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return strings.TrimSpace(string(body))
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
