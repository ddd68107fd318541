package game

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// =============================================================================
// ROOM MANAGEMENT
// =============================================================================

// CreateRoom opens a new room with the caller as host.
func (e *Engine) CreateRoom(playerID, playerName string) (Outcome, error) {
	now := e.now()
	room, host := e.registry.Create(playerID, playerName, internal.DefaultGameConfig(e.categories), now)

	// --- Critical section ---
	room.Mu.Lock()
	systemMessage := room.AddSystemMessage(fmt.Sprintf("%s criou a sala", host.Name), now)
	joined := internal.RoomJoinedData{Room: Snapshot(room, now), Player: host.ToPublicPlayer()}
	update := gameUpdate(room, now)
	room.Mu.Unlock()
	// --- End critical section ---

	return Outcome{
		RoomID:    room.Id,
		Reply:     []internal.Message[any]{internal.NewMessage(internal.EventRoomCreated, joined)},
		Broadcast: []internal.Message[any]{update, chatMessage(systemMessage)},
	}, nil
}

// JoinRoom seats the caller in an existing room. A new player joining a match
// in progress sends everybody back to the lobby with fresh scores. A player
// already seated only gets the current snapshot back.
func (e *Engine) JoinRoom(playerID, roomID, playerName string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	now := e.now()
	if seated, ok := room.Players[playerID]; ok {
		joined := internal.RoomJoinedData{Room: Snapshot(room, now), Player: seated.ToPublicPlayer()}
		room.Mu.Unlock()

		log.Debug().Str("room", room.Id).Str("player", playerID).Msg("[JoinRoom] already seated, resubscribing")
		return Outcome{
			RoomID: room.Id,
			Reply:  []internal.Message[any]{internal.NewMessage(internal.EventRoomJoined, joined)},
		}, nil
	}

	if room.GetPlayerCount() >= internal.MaxPlayersPerRoom {
		room.Mu.Unlock()
		log.Debug().Str("room", room.Id).Str("player", playerID).Msg("[JoinRoom] room is full")
		return Outcome{}, internal.NewGameError(internal.ErrFull, "Sala lotada")
	}

	broadcast := make([]internal.Message[any], 0, 3)
	if room.State != internal.StateWaiting {
		log.Info().Str("room", room.Id).Str("state", string(room.State)).Msg("[JoinRoom] match in progress, resetting to lobby")
		room.ResetToWaiting()
		e.scheduler.Cancel(room.Id)
		broadcast = append(broadcast, chatMessage(room.AddSystemMessage("Jogo resetado - novo jogador entrou", now)))
	}

	player := room.AddPlayer(playerID, playerName, now)
	systemMessage := room.AddSystemMessage(fmt.Sprintf("%s entrou na sala", player.Name), now)
	joined := internal.RoomJoinedData{Room: Snapshot(room, now), Player: player.ToPublicPlayer()}
	broadcast = append(broadcast, gameUpdate(room, now), chatMessage(systemMessage))
	count := room.GetPlayerCount()
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Str("player", playerID).Int("players", count).Msg("[JoinRoom] player joined")

	return Outcome{
		RoomID:    room.Id,
		Reply:     []internal.Message[any]{internal.NewMessage(internal.EventRoomJoined, joined)},
		Broadcast: broadcast,
	}, nil
}

// Leave removes the player from the room. The last player out deletes the
// room right away and invalidates its timers.
func (e *Engine) Leave(playerID, roomID string) Outcome {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}
	}

	// --- Critical section ---
	removed, promoted := room.RemovePlayer(playerID)
	if removed == nil {
		room.Mu.Unlock()
		return Outcome{}
	}

	if room.GetPlayerCount() == 0 {
		room.Closed = true
		room.Generation++
		room.Mu.Unlock()

		e.scheduler.Cancel(room.Id)
		e.registry.remove(room)
		log.Info().Str("room", room.Id).Msg("[Leave] last player left, room deleted")
		return Outcome{RoomID: room.Id}
	}

	now := e.now()
	systemMessage := room.AddSystemMessage(fmt.Sprintf("%s saiu da sala", removed.Name), now)
	update := gameUpdate(room, now)
	room.Mu.Unlock()
	// --- End critical section ---

	if promoted != nil {
		log.Info().Str("room", room.Id).Str("host", promoted.Id).Msg("[Leave] host left, promoted next player")
	}
	log.Info().Str("room", room.Id).Str("player", playerID).Msg("[Leave] player left")

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{update, chatMessage(systemMessage)},
	}
}

// SendMessage appends a player chat line. Blank text is ignored.
func (e *Engine) SendMessage(playerID, roomID, text string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	msg, ok := room.AddChatMessage(playerID, text, e.now())
	room.Mu.Unlock()

	if !ok {
		return Outcome{RoomID: room.Id}, nil
	}
	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{chatMessage(msg)},
	}, nil
}
