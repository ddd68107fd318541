package websocket

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// Hub tracks which sessions are subscribed to which room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Session]struct{})}
}

func (h *Hub) Join(s *Session, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[roomID] = members
	}
	members[s] = struct{}{}
}

func (h *Hub) Leave(s *Session, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) Members(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast sends every message, in order, to each session of the room.
// Sessions that cannot keep up are disconnected.
func (h *Hub) Broadcast(roomID string, msgs ...internal.Message[any]) {
	if len(msgs) == 0 {
		return
	}

	payloads := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Error().Err(err).Str("room", roomID).Str("type", msg.Type).Msg("[Hub.Broadcast] failed to encode message")
			continue
		}
		payloads = append(payloads, data)
	}

	// Snapshot members so no lock is held while queueing
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.rooms[roomID]))
	for s := range h.rooms[roomID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		for _, data := range payloads {
			if !s.enqueue(data) {
				log.Warn().Str("room", roomID).Str("session", s.id).Msg("[Hub.Broadcast] dropping slow or closed session")
				break
			}
		}
	}
}
