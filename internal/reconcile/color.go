package reconcile

import (
	"unicode/utf16"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	OnlineColor  = "#4ECDC4"
	OfflineColor = "#FF6B6B"
)

// Marker channels stay inside [markerLow, markerHigh] so markers are never
// close to black or white.
const (
	markerLow  = 64
	markerHigh = 223
)

// PresenceColor is the avatar border and badge colour for a presence state.
func PresenceColor(online bool) string {
	if online {
		return OnlineColor
	}
	return OfflineColor
}

// MarkerColor derives a stable map marker colour from a user's descriptive
// attributes. Equal inputs always give the same "#rrggbb".
func MarkerColor(name, age, sex string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(name + age + sex)) {
		h = int32(unit) + (h << 5) - h
	}
	u := uint32(h)
	c := colorful.Color{
		R: channel(uint8(u)),
		G: channel(uint8(u >> 8)),
		B: channel(uint8(u >> 16)),
	}
	return c.Hex()
}

func channel(v uint8) float64 {
	scaled := markerLow + int(v)*(markerHigh-markerLow)/255
	return float64(scaled) / 255
}
