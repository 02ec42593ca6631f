package reconcile

import (
	"peoplemeet-client/internal/models"
)

// FindOnline returns the entry for id in the online users list.
func FindOnline(online []models.Profile, id models.ID) (models.Profile, bool) {
	for _, p := range online {
		if p.Key() == id {
			return p, true
		}
	}
	return models.Profile{}, false
}

// IsOnline reports whether p is online, either by its own flag or by being
// present in the online users list.
func IsOnline(p models.Profile, online []models.Profile) bool {
	if p.IsOnline.Bool() {
		return true
	}
	_, ok := FindOnline(online, p.Key())
	return ok
}

// MergeProfile builds the freshest view of a user from the three places a
// profile can come from. Descriptive fields prefer the messages snapshot
// entry, then the online list entry, then selected. Coordinates are only
// taken from the online list; a user missing from it has no location.
// Being in the online list forces is_online to 1.
func MergeProfile(selected models.Profile, online []models.Profile, fromMessages *models.Profile) models.Profile {
	merged := selected
	merged.Lat, merged.Lng = models.Coordinate{}, models.Coordinate{}

	live, isLive := FindOnline(online, selected.Key())
	if isLive {
		overlay(&merged, live)
		merged.Lat, merged.Lng = live.Lat, live.Lng
	}
	if fromMessages != nil {
		overlay(&merged, *fromMessages)
		merged.IsOnline = fromMessages.IsOnline
	}
	if isLive {
		merged.IsOnline = 1
	}
	if merged.ID == 0 {
		merged.ID = selected.Key()
	}
	return merged
}

// overlay copies the non-empty descriptive fields of src into dst.
func overlay(dst *models.Profile, src models.Profile) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Age.Valid {
		dst.Age = src.Age
	}
	if src.Sex != "" {
		dst.Sex = src.Sex
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.Thoughts != "" {
		dst.Thoughts = src.Thoughts
	}
	if src.Image != "" {
		dst.Image = src.Image
	}
	if src.LastTimeOnline != "" {
		dst.LastTimeOnline = src.LastTimeOnline
	}
}
