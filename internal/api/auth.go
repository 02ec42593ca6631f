package api

import (
	"context"

	"peoplemeet-client/internal/models"
)

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var res models.AuthResponse
	if err := c.postJSON(ctx, "/login", models.LoginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var res models.AuthResponse
	if err := c.postJSON(ctx, "/signup", models.RegisterRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendRecoveryCode asks the server to email a 4 digit recovery code.
func (c *Client) SendRecoveryCode(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/send_recovery_code", models.RecoveryRequest{Email: email}, nil)
}

func (c *Client) CheckRecoveryCode(ctx context.Context, email, code string) error {
	return c.postJSON(ctx, "/check_recovery_code", models.RecoveryRequest{Email: email, RecoveryCode: code}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, email, code, password string) error {
	req := models.RecoveryRequest{Email: email, RecoveryCode: code, Password: password}
	return c.postJSON(ctx, "/change_password", req, nil)
}

// Self returns the authenticated user's own profile.
func (c *Client) Self(ctx context.Context, token string) (*models.Profile, error) {
	var p models.Profile
	if err := c.postJSON(ctx, "/self", models.TokenRequest{Token: token}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
