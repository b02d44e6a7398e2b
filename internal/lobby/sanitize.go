package lobby

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// MaxNameLength caps member display names, in runes.
const MaxNameLength = 24

// maxRoomNameLength caps room names, in runes.
const maxRoomNameLength = 40

// SanitizeGuestName normalizes a requested display name: control characters
// are dropped, whitespace runs collapse to single spaces, and the result is
// capped at MaxNameLength runes. An empty result is replaced with a
// generated "Guest-xxxx" name.
func SanitizeGuestName(requested string) string {
	name := capRunes(normalize(requested), MaxNameLength)
	if name == "" {
		return generatedGuestName()
	}
	return name
}

// sanitizeRoomName normalizes a requested room name the same way as member
// names, with a wider cap. An empty result falls back to "<host>'s room".
func sanitizeRoomName(requested, hostName string) string {
	name := capRunes(normalize(requested), maxRoomNameLength)
	if name == "" {
		return fmt.Sprintf("%s's room", hostName)
	}
	return name
}

// normalize drops control characters and collapses whitespace runs into
// single spaces, trimming the ends.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsControl(r):
			// dropped
		case unicode.IsSpace(r):
			space = true
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit]), " ")
}

func generatedGuestName() string {
	b := make([]byte, 2)
	_, _ = rand.Read(b)
	return "Guest-" + hex.EncodeToString(b)
}
