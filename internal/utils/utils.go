package utils

import (
	"math/rand/v2"
	"strings"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRoomCode returns a random uppercase alphanumeric code.
func GenerateRoomCode() string {
	var b strings.Builder
	b.Grow(internal.RoomCodeLength)
	for range internal.RoomCodeLength {
		b.WriteByte(roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))])
	}
	return b.String()
}

// NormalizeRoomCode makes code lookups case-insensitive.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// RandomLetter draws a round letter. Repeats across rounds are allowed.
func RandomLetter(excludeDifficult bool) string {
	letters := internal.AllLetters
	if excludeDifficult {
		letters = internal.EasyLetters
	}
	return letters[rand.IntN(len(letters))]
}
