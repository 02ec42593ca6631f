package models

import "strings"

// ImageURL resolves a profile image to an absolute URL. Images uploaded to the
// server are stored as bare filenames served from /uploads.
func ImageURL(baseURL, image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image
	}
	return strings.TrimRight(baseURL, "/") + "/uploads/" + strings.TrimLeft(image, "/")
}
