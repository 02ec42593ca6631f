package models

import (
	"encoding/json"
	"strings"

	"peoplemeet-client/internal/utils"
)

// Profile is one view of a user as returned by /self, /online_users and the
// users map of /get_messages. The server owns the authoritative copy.
type Profile struct {
	ID             ID         `json:"id"`
	UserID         ID         `json:"user_id,omitempty"`
	Email          string     `json:"email,omitempty"`
	Name           string     `json:"name"`
	Age            NullInt    `json:"age"`
	Sex            string     `json:"sex"`
	Description    string     `json:"description"`
	Thoughts       string     `json:"thoughts"`
	Image          string     `json:"image"`
	IsOnline       Flag       `json:"is_online"`
	Lat            Coordinate `json:"lat"`
	Lng            Coordinate `json:"lng"`
	LastTimeOnline string     `json:"last_time_online"`
}

// Key returns the user's id; some feeds only carry user_id.
func (p Profile) Key() ID {
	if p.ID != 0 {
		return p.ID
	}
	return p.UserID
}

// HasLocation reports whether both coordinates are known.
func (p Profile) HasLocation() bool {
	return p.Lat.Valid && p.Lng.Valid
}

// DisplayDescription expands the escaped newlines the server stores.
func (p Profile) DisplayDescription() string {
	return strings.ReplaceAll(p.Description, `\n`, "\n")
}

// DisplayName falls back to "user <id>" for profiles without a name.
func (p Profile) DisplayName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return "user " + p.Key().String()
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RecoveryRequest struct {
	Email        string `json:"email"`
	RecoveryCode string `json:"recoveryCode,omitempty"`
	Password     string `json:"password,omitempty"`
}

// AuthResponse is the body of /login and /signup. The profile arrives under
// "user", under "data" or inline depending on the server version.
type AuthResponse struct {
	Token   string   `json:"token"`
	Message string   `json:"message,omitempty"`
	User    *Profile `json:"-"`
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Token       string  `json:"token"`
	Name        string  `json:"name"`
	Age         NullInt `json:"age"`
	Sex         string  `json:"sex"`
	Description string  `json:"description"`
	Thoughts    string  `json:"thoughts"`
}

func (r *AuthResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		Token   string          `json:"token"`
		Message string          `json:"message"`
		User    json.RawMessage `json:"user"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Token = raw.Token
	r.Message = raw.Message
	r.User = nil
	for _, candidate := range [][]byte{raw.User, raw.Data, data} {
		if utils.JSONKind(candidate) != '{' {
			continue
		}
		var p Profile
		if err := json.Unmarshal(candidate, &p); err == nil && p.Key() != 0 {
			r.User = &p
			return nil
		}
	}
	return nil
}
