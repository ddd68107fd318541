package internal

import (
	"strings"
	"time"
	"unicode/utf8"
)

const maxPlayerNameLength = 32

type Player struct {
	Id       string    `json:"id"`
	Name     string    `json:"name"`
	IsHost   bool      `json:"isHost"`
	IsReady  bool      `json:"isReady"`
	JoinedAt time.Time `json:"joinedAt"`
}

// NormalizePlayerName trims the name and falls back to a default when it ends up empty.
func NormalizePlayerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPlayerName
	}
	if utf8.RuneCountInString(name) > maxPlayerNameLength {
		name = string([]rune(name)[:maxPlayerNameLength])
	}
	return name
}

func (p *Player) ResetRoundState() {
	p.IsReady = false
}

// ToPublicPlayer returns a copy that is safe to hand out after the room lock is released.
func (p *Player) ToPublicPlayer() Player {
	return Player{
		Id:       p.Id,
		Name:     p.Name,
		IsHost:   p.IsHost,
		IsReady:  p.IsReady,
		JoinedAt: p.JoinedAt,
	}
}
