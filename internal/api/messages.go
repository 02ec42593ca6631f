package api

import (
	"context"

	"peoplemeet-client/internal/models"
)

// GetMessages returns the full conversation snapshot of the authenticated user.
func (c *Client) GetMessages(ctx context.Context, token string) (*models.MessagesSnapshot, error) {
	snapshot := models.NewMessagesSnapshot()
	if err := c.postJSON(ctx, "/get_messages", models.TokenRequest{Token: token}, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ReadMessages marks every message from partner as read. Idempotent.
func (c *Client) ReadMessages(ctx context.Context, token string, partner models.ID) error {
	return c.postJSON(ctx, "/read_messages", models.ChatPartnerRequest{Token: token, ChatPartnerID: partner}, nil)
}

func (c *Client) SendMessage(ctx context.Context, token string, receiver models.ID, text string) error {
	req := models.SendMessageRequest{Token: token, ReceiverID: receiver, MessageText: text}
	return c.postJSON(ctx, "/send_message", req, nil)
}

// RemoveConversation deletes the whole history with partner.
func (c *Client) RemoveConversation(ctx context.Context, token string, partner models.ID) error {
	return c.postJSON(ctx, "/remove_conversation", models.ChatPartnerRequest{Token: token, ChatPartnerID: partner}, nil)
}
