package apitest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"peoplemeet-client/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// authenticated resolves the token from the JSON body, or from the "token"
// form field of a multipart request, and stores the caller id in locals.
func (s *Server) authenticated(next fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string
		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
			token = c.FormValue("token")
		} else {
			var body models.TokenRequest
			if err := json.Unmarshal(c.Body(), &body); err != nil {
				return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
			}
			token = body.Token
		}
		if token == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "Token required"})
		}

		id, err := s.validateToken(token)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
		}
		c.Locals("user_id", id)
		return next(c)
	}
}

func userID(c *fiber.Ctx) models.ID {
	return c.Locals("user_id").(models.ID)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	profile, err := s.login(req.Email, req.Password)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"message": err.Error()})
	}
	token, err := s.Token(profile.ID)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(fiber.Map{"token": token, "user": profile})
}

func (s *Server) handleSignUp(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Email and password are required"})
	}

	s.mu.Lock()
	id, err := s.createUserLocked(req.Email, req.Password, models.Profile{})
	var profile models.Profile
	if err == nil {
		profile = s.accounts[id].profile
	}
	s.mu.Unlock()
	if err != nil {
		if errors.Is(err, errUserExists) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"message": err.Error()})
		}
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}

	token, err := s.Token(id)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	// Newer server versions answer signup with the profile under "data".
	return c.Status(http.StatusCreated).JSON(fiber.Map{"token": token, "data": profile})
}

func (s *Server) handleSendRecoveryCode(c *fiber.Ctx) error {
	var req models.RecoveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	}
	s.issueRecoveryCodeLocked(email)
	return c.JSON(fiber.Map{"message": "Recovery code sent"})
}

func (s *Server) checkCode(req models.RecoveryRequest) bool {
	code, ok := s.recoveryCodes[strings.ToLower(strings.TrimSpace(req.Email))]
	return ok && code == req.RecoveryCode
}

func (s *Server) handleCheckRecoveryCode(c *fiber.Ctx) error {
	var req models.RecoveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkCode(req) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid recovery code"})
	}
	return c.JSON(fiber.Map{"message": "Code is valid"})
}

func (s *Server) handleChangePassword(c *fiber.Ctx) error {
	var req models.RecoveryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checkCode(req) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid recovery code"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	s.accounts[s.byEmail[email]].passwordHash = string(hash)
	delete(s.recoveryCodes, email)
	return c.JSON(fiber.Map{"message": "Password changed"})
}

func (s *Server) handleSelf(c *fiber.Ctx) error {
	profile, ok := s.Profile(userID(c))
	if !ok {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	}
	return c.JSON(profile)
}

func (s *Server) handleOnlineUsers(c *fiber.Ctx) error {
	s.mu.Lock()
	users := s.onlineLocked(userID(c))
	shape := s.shape
	s.mu.Unlock()

	switch shape {
	case ShapeUsers:
		return c.JSON(fiber.Map{"users": users})
	case ShapeData:
		return c.JSON(fiber.Map{"data": users})
	case ShapeBogus:
		return c.JSON(fiber.Map{"count": len(users)})
	default:
		return c.JSON(users)
	}
}

func (s *Server) handleGetMessages(c *fiber.Ctx) error {
	s.mu.Lock()
	users, convs := s.snapshotLocked(userID(c))
	s.mu.Unlock()

	// Empty maps are encoded as [] the way the production backend does.
	body := fiber.Map{"users": []interface{}{}, "messages": []interface{}{}}
	if len(users) > 0 {
		body["users"] = users
	}
	if len(convs) > 0 {
		body["messages"] = convs
	}
	return c.JSON(body)
}

func (s *Server) handleReadMessages(c *fiber.Ctx) error {
	var req models.ChatPartnerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	me := userID(c)

	s.mu.Lock()
	marked := 0
	for i := range s.messages {
		m := &s.messages[i]
		if m.SenderID == req.ChatPartnerID && m.ReceiverID == me && !m.IsRead.Bool() {
			m.IsRead = 1
			marked++
		}
	}
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "ok", "marked": marked})
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	if strings.TrimSpace(req.MessageText) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Message text required"})
	}
	me := userID(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[req.ReceiverID]; !ok || req.ReceiverID == me {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid receiver"})
	}
	m := s.deliverLocked(me, req.ReceiverID, req.MessageText)
	return c.JSON(fiber.Map{"message": "sent", "id": m.ID})
}

func (s *Server) handleOnline(c *fiber.Ctx) error {
	var req models.OnlineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	online := req.IsOnline.Bool()
	if online && (!req.Lat.Valid || !req.Lng.Valid) {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Coordinates required"})
	}
	s.SetOnline(userID(c), online, req.Lat.Value, req.Lng.Value)
	return c.JSON(fiber.Map{"message": "ok"})
}

func (s *Server) handleRemoveConversation(c *fiber.Ctx) error {
	var req models.ChatPartnerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}
	me := userID(c)

	s.mu.Lock()
	kept := s.messages[:0]
	for _, m := range s.messages {
		between := (m.SenderID == me && m.ReceiverID == req.ChatPartnerID) ||
			(m.SenderID == req.ChatPartnerID && m.ReceiverID == me)
		if !between {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "Conversation removed"})
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var req models.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "Invalid request"})
	}

	s.mu.Lock()
	acc := s.accounts[userID(c)]
	acc.profile.Name = req.Name
	acc.profile.Age = req.Age
	acc.profile.Sex = req.Sex
	acc.profile.Description = req.Description
	acc.profile.Thoughts = req.Thoughts
	profile := acc.profile
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "Profile updated", "user": profile})
}

func (s *Server) handleUploadImage(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "image file is required"})
	}
	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "failed to read file"})
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "failed to read file"})
	}

	// Unique filename preserving extension
	filename := uuid.New().String() + strings.ToLower(filepath.Ext(fileHeader.Filename))

	s.mu.Lock()
	s.uploads[filename] = content
	acc := s.accounts[userID(c)]
	acc.profile.Image = filename
	profile := acc.profile
	s.mu.Unlock()

	return c.JSON(fiber.Map{"message": "Image uploaded", "user": profile})
}

func (s *Server) handleServeUpload(c *fiber.Ctx) error {
	content, ok := s.Upload(c.Params("name"))
	if !ok {
		return c.SendStatus(http.StatusNotFound)
	}
	return c.Send(content)
}
