package api

import (
	"context"
	"path/filepath"

	"peoplemeet-client/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UpdateProfile saves the editable profile fields and returns the updated
// profile when the server echoes it.
func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.Profile, error) {
	var res models.AuthResponse
	if err := c.postJSON(ctx, "/update_profile", req, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}

// UploadImage uploads an already cropped avatar as multipart field "image".
func (c *Client) UploadImage(ctx context.Context, token, filename string, content []byte) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a := fiber.Post(c.baseURL + "/upload_image")
	a.FileData(&fiber.FormFile{
		Fieldname: "image",
		Name:      filepath.Base(filename),
		Content:   content,
	})
	args := fiber.AcquireArgs()
	args.Set("token", token)
	a.MultipartForm(args)
	fiber.ReleaseArgs(args)

	var res models.AuthResponse
	if err := c.do(ctx, "/upload_image", a, &res); err != nil {
		return nil, err
	}
	return res.User, nil
}
