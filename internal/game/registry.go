package game

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/utils"
)

// =============================================================================
// ROOM REGISTRY
// =============================================================================

// Registry maps room codes to live rooms. The registry lock is never held
// while a room lock is being acquired.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*internal.Room
	newCode func() string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*internal.Room),
		newCode: utils.GenerateRoomCode,
	}
}

// Create builds a room with its host already seated and publishes it under a
// fresh code, so the sweep can never observe it empty.
func (reg *Registry) Create(hostId, hostName string, config internal.GameConfig, now time.Time) (*internal.Room, *internal.Player) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := reg.newCode()
	for {
		if _, taken := reg.rooms[code]; !taken {
			break
		}
		log.Debug().Str("room", code).Msg("[Registry.Create] code collision, regenerating")
		code = reg.newCode()
	}

	room := internal.NewRoom(code, hostId, config)
	host := room.AddPlayer(hostId, hostName, now)
	reg.rooms[code] = room

	log.Info().Str("room", code).Str("host", hostId).Msg("[Registry.Create] created room")
	return room, host
}

func (reg *Registry) Get(code string) (*internal.Room, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	room, ok := reg.rooms[utils.NormalizeRoomCode(code)]
	if !ok {
		return nil, internal.NewGameError(internal.ErrNotFound, "Sala não encontrada")
	}
	return room, nil
}

// Delete removes a room by code. Deleting an unknown code is a no-op.
func (reg *Registry) Delete(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code = utils.NormalizeRoomCode(code)
	if _, exists := reg.rooms[code]; exists {
		delete(reg.rooms, code)
		log.Info().Str("room", code).Msg("[Registry.Delete] room removed")
	}
}

// remove deletes the entry only if it still points at this exact room.
func (reg *Registry) remove(room *internal.Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if current, ok := reg.rooms[room.Id]; ok && current == room {
		delete(reg.rooms, room.Id)
		return true
	}
	return false
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) snapshot() []*internal.Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rooms := make([]*internal.Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// SweepEmpty removes every room without players and returns their codes.
// Each room is judged under its own lock and marked closed before removal.
func (reg *Registry) SweepEmpty() []string {
	var removed []string
	for _, room := range reg.snapshot() {
		room.Mu.Lock()
		empty := room.GetPlayerCount() == 0
		if empty {
			room.Closed = true
			room.Generation++
		}
		room.Mu.Unlock()

		if empty && reg.remove(room) {
			removed = append(removed, room.Id)
		}
	}

	if len(removed) > 0 {
		log.Info().Strs("rooms", removed).Msg("[Registry.SweepEmpty] removed inactive rooms")
	}
	return removed
}
