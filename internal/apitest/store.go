package apitest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"peoplemeet-client/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUserExists         = errors.New("user with this email already exists")
	errInvalidCredentials = errors.New("invalid email or password")
	errInvalidToken       = errors.New("invalid token")
)

type account struct {
	profile      models.Profile
	passwordHash string
}

// CreateUser registers an account directly and returns its id and a valid token.
func (s *Server) CreateUser(email, password string, p models.Profile) (models.ID, string, error) {
	s.mu.Lock()
	id, err := s.createUserLocked(email, password, p)
	s.mu.Unlock()
	if err != nil {
		return 0, "", err
	}
	token, err := s.Token(id)
	return id, token, err
}

func (s *Server) createUserLocked(email, password string, p models.Profile) (models.ID, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.byEmail[email]; ok {
		return 0, errUserExists
	}
	// MinCost keeps the suite fast; the server side hashing is not under test.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, err
	}

	id := s.nextUserID
	s.nextUserID++
	p.ID = id
	p.UserID = 0
	p.Email = email
	s.accounts[id] = &account{profile: p, passwordHash: string(hash)}
	s.byEmail[email] = id
	return id, nil
}

func (s *Server) login(email, password string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return models.Profile{}, errInvalidCredentials
	}
	acc := s.accounts[id]
	if err := bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)); err != nil {
		return models.Profile{}, errInvalidCredentials
	}
	return acc.profile, nil
}

// Token issues a token for id.
func (s *Server) Token(id models.ID) (string, error) {
	claims := jwt.MapClaims{
		"user_id": int64(id),
		"exp":     time.Now().Add(time.Hour * 72).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Server) validateToken(tokenString string) (models.ID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errInvalidToken
	}
	idf, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errInvalidToken
	}

	id := models.ID(idf)
	s.mu.Lock()
	_, exists := s.accounts[id]
	s.mu.Unlock()
	if !exists {
		return 0, errInvalidToken
	}
	return id, nil
}

// Profile returns the stored profile of id.
func (s *Server) Profile(id models.ID) (models.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return models.Profile{}, false
	}
	return acc.profile, true
}

// SetOnline flips presence of id directly, bypassing /online.
func (s *Server) SetOnline(id models.ID, online bool, lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return
	}
	acc.profile.IsOnline = models.FlagOf(online)
	if online {
		acc.profile.Lat, acc.profile.Lng = models.CoordOf(lat), models.CoordOf(lng)
	} else {
		acc.profile.Lat, acc.profile.Lng = models.Coordinate{}, models.Coordinate{}
		acc.profile.LastTimeOnline = time.Now().UTC().Format("2006-01-02 15:04:05")
	}
}

// Deliver stores a message from one user to another as if it had been sent.
func (s *Server) Deliver(from, to models.ID, text string) models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliverLocked(from, to, text)
}

func (s *Server) deliverLocked(from, to models.ID, text string) models.Message {
	m := models.Message{
		ID:          s.nextMessageID,
		SenderID:    from,
		ReceiverID:  to,
		MessageText: text,
		CreatedAt:   time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	s.nextMessageID++
	s.messages = append(s.messages, m)
	return m
}

// Messages returns every stored message in delivery order.
func (s *Server) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetRecoveryCode fixes the code the next /send_recovery_code issues for email.
func (s *Server) SetRecoveryCode(email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveryCodes[strings.ToLower(email)] = code
}

// Upload returns the stored bytes of an uploaded image.
func (s *Server) Upload(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[name]
	return b, ok
}

// snapshotLocked builds the /get_messages view for id: conversations keyed
// by counterpart, messages in delivery order.
func (s *Server) snapshotLocked(id models.ID) (map[string]models.Profile, map[string][]models.Message) {
	users := make(map[string]models.Profile)
	convs := make(map[string][]models.Message)
	for _, m := range s.messages {
		var other models.ID
		switch id {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}
		key := other.String()
		convs[key] = append(convs[key], m)
		if _, ok := users[key]; !ok {
			if acc, ok := s.accounts[other]; ok {
				p := acc.profile
				// Conversation partners come without coordinates.
				p.Lat, p.Lng = models.Coordinate{}, models.Coordinate{}
				p.Email = ""
				users[key] = p
			}
		}
	}
	return users, convs
}

func (s *Server) onlineLocked(except models.ID) []models.Profile {
	out := make([]models.Profile, 0)
	for id, acc := range s.accounts {
		if id == except || !acc.profile.IsOnline.Bool() {
			continue
		}
		p := acc.profile
		p.Email = ""
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) issueRecoveryCodeLocked(email string) string {
	if code, ok := s.recoveryCodes[email]; ok {
		return code
	}
	code := fmt.Sprintf("%04d", time.Now().UnixNano()%10000)
	s.recoveryCodes[email] = code
	return code
}
