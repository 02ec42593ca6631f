package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"peoplemeet-client/internal/db"
	"peoplemeet-client/internal/models"
	"peoplemeet-client/internal/utils"
)

var (
	// ErrNoToken means there is no stored session; the user has to sign in.
	ErrNoToken = errors.New("not signed in")
	// ErrValidation wraps input rejected before any request is sent.
	ErrValidation = errors.New("invalid input")
)

// ValidationError carries the reason input was rejected. It matches
// ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Store is the device-local key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// AuthAPI is the subset of the remote API used for sign-in and recovery.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	SignUp(ctx context.Context, email, password string) (*models.AuthResponse, error)
	SendRecoveryCode(ctx context.Context, email string) error
	CheckRecoveryCode(ctx context.Context, email, code string) error
	ChangePassword(ctx context.Context, email, code, password string) error
	Self(ctx context.Context, token string) (*models.Profile, error)
}

// UserService owns the session: the stored token, the cached self profile
// and the sign-in flows that produce them.
type UserService struct {
	api   AuthAPI
	store Store
}

func NewUserService(api AuthAPI, store Store) *UserService {
	return &UserService{api: api, store: store}
}

func (s *UserService) SaveToken(ctx context.Context, token string) error {
	return s.store.Set(ctx, db.KeyAuthToken, token)
}

// Token returns the stored session token or ErrNoToken.
func (s *UserService) Token(ctx context.Context) (string, error) {
	token, err := s.store.Get(ctx, db.KeyAuthToken)
	if errors.Is(err, db.ErrNotFound) || (err == nil && token == "") {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

func (s *UserService) SaveUserData(ctx context.Context, p models.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, db.KeyUserData, string(data))
}

// UserData returns the cached self profile, or nil when nothing is cached.
func (s *UserService) UserData(ctx context.Context) (*models.Profile, error) {
	data, err := s.store.Get(ctx, db.KeyUserData)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := utils.SafeJSONParse([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("cached user data: %w", err)
	}
	return &p, nil
}

// Logout removes the token and the cached profile together.
func (s *UserService) Logout(ctx context.Context) error {
	return s.store.Delete(ctx, db.KeyAuthToken, db.KeyUserData)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, invalid("fill in all fields")
	}
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *UserService) SignUp(ctx context.Context, email, password, confirmation string) (*models.AuthResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" || confirmation == "" {
		return nil, invalid("fill in all fields")
	}
	if password != confirmation {
		return nil, invalid("passwords do not match")
	}
	res, err := s.api.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *UserService) persist(ctx context.Context, res *models.AuthResponse) error {
	if res.Token == "" {
		return errors.New("server returned no token")
	}
	if err := s.SaveToken(ctx, res.Token); err != nil {
		return err
	}
	if res.User != nil {
		if err := s.SaveUserData(ctx, *res.User); err != nil {
			return err
		}
	}
	return nil
}

func (s *UserService) SendRecoveryCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("enter your email")
	}
	return s.api.SendRecoveryCode(ctx, email)
}

func (s *UserService) CheckRecoveryCode(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("enter your email")
	}
	if !isRecoveryCode(code) {
		return invalid("the code has 4 digits")
	}
	return s.api.CheckRecoveryCode(ctx, email, code)
}

func (s *UserService) ChangePassword(ctx context.Context, email, code, password, confirmation string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" || confirmation == "" {
		return invalid("fill in all fields")
	}
	if !isRecoveryCode(code) {
		return invalid("the code has 4 digits")
	}
	if password != confirmation {
		return invalid("passwords do not match")
	}
	return s.api.ChangePassword(ctx, email, code, password)
}

func isRecoveryCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Self fetches the own profile and refreshes the cached copy.
func (s *UserService) Self(ctx context.Context) (*models.Profile, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.api.Self(ctx, token)
	if err != nil {
		return nil, err
	}
	utils.LogError(s.SaveUserData(ctx, *p), "cache self profile")
	return p, nil
}
