package api

import (
	"context"
	"encoding/json"

	"peoplemeet-client/internal/models"
	"peoplemeet-client/internal/utils"
)

// OnlineUsersPayload normalises the three shapes /online_users has been seen
// to return: a bare array, {"users": [...]} or {"data": [...]}. Any other
// shape decodes to an empty list, and entries that fail to decode are skipped.
type OnlineUsersPayload []models.Profile

func (p *OnlineUsersPayload) UnmarshalJSON(data []byte) error {
	*p = OnlineUsersPayload{}

	var list json.RawMessage
	switch utils.JSONKind(data) {
	case '[':
		list = data
	case '{':
		var wrapped struct {
			Users json.RawMessage `json:"users"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil
		}
		if utils.JSONKind(wrapped.Users) == '[' {
			list = wrapped.Users
		} else if utils.JSONKind(wrapped.Data) == '[' {
			list = wrapped.Data
		}
	}
	if list == nil {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		return nil
	}
	for _, entry := range entries {
		var profile models.Profile
		if err := json.Unmarshal(entry, &profile); err != nil || profile.Key() == 0 {
			continue
		}
		if profile.ID == 0 {
			profile.ID = profile.UserID
		}
		*p = append(*p, profile)
	}
	return nil
}

// OnlineUsers returns everyone currently online except the caller.
func (c *Client) OnlineUsers(ctx context.Context, token string) ([]models.Profile, error) {
	var payload OnlineUsersPayload
	if err := c.postJSON(ctx, "/online_users", models.TokenRequest{Token: token}, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// SetOnline updates the caller's presence. Coordinates are sent as null when
// going offline regardless of what was passed.
func (c *Client) SetOnline(ctx context.Context, token string, online bool, lat, lng models.Coordinate) error {
	req := models.OnlineRequest{Token: token, IsOnline: models.FlagOf(online)}
	if online {
		req.Lat, req.Lng = lat, lng
	}
	return c.postJSON(ctx, "/online", req, nil)
}
