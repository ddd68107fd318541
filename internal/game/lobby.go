package game

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// =============================================================================
// GAME FLOW - LOBBY & INITIALIZATION
// =============================================================================

func forbidden(action string) error {
	return internal.NewGameError(internal.ErrForbidden, "Apenas o host pode %s", action)
}

// SetReady toggles the caller's ready flag.
func (e *Engine) SetReady(playerID, roomID string, ready bool) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	if !room.SetPlayerReady(playerID, ready) {
		room.Mu.Unlock()
		return Outcome{RoomID: room.Id}, nil
	}

	now := e.now()
	name := room.Players[playerID].Name
	text := fmt.Sprintf("%s está pronto", name)
	if !ready {
		text = fmt.Sprintf("%s não está mais pronto", name)
	}
	systemMessage := room.AddSystemMessage(text, now)
	update := gameUpdate(room, now)
	allReady := room.CanStartGame()
	room.Mu.Unlock()
	// --- End critical section ---

	log.Debug().Str("room", room.Id).Str("player", playerID).Bool("ready", ready).Bool("can_start", allReady).Msg("[SetReady] ready state changed")

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{update, chatMessage(systemMessage)},
	}, nil
}

// Configure merges a partial configuration. Host only, lobby only.
func (e *Engine) Configure(playerID, roomID string, patch internal.ConfigPatch) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	if !room.IsHost(playerID) {
		room.Mu.Unlock()
		return Outcome{}, forbidden("configurar o jogo")
	}
	if err := room.ApplyConfig(patch); err != nil {
		room.Mu.Unlock()
		return Outcome{}, err
	}
	update := gameUpdate(room, e.now())
	config := room.Config
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Int("rounds", config.Rounds).Int("time_per_round", config.TimePerRound).Msg("[Configure] configuration updated")

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{update},
	}, nil
}

// StartGame begins round one. The letter is announced by a timer after the
// reveal delay and the round closes itself when its time runs out.
func (e *Engine) StartGame(playerID, roomID string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	if !room.IsHost(playerID) {
		room.Mu.Unlock()
		return Outcome{}, forbidden("iniciar o jogo")
	}

	letter := e.randomLetter(room.Config.ExcludeDifficultLetters)
	if err := room.Start(letter, e.now().Add(e.revealDelay)); err != nil {
		room.Mu.Unlock()
		log.Debug().Err(err).Str("room", room.Id).Msg("[StartGame] refused")
		return Outcome{}, err
	}
	e.scheduleRound(room)
	starting := roundStarting(room)
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Str("letter", letter).Msg("[StartGame] game started")

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{starting},
	}, nil
}

// RestartGame sends the room back to the lobby with zeroed scores.
func (e *Engine) RestartGame(playerID, roomID string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	if !room.IsHost(playerID) {
		room.Mu.Unlock()
		return Outcome{}, forbidden("reiniciar")
	}

	now := e.now()
	room.ResetToWaiting()
	e.scheduler.Cancel(room.Id)
	systemMessage := room.AddSystemMessage("Jogo reiniciado pelo host", now)
	update := gameUpdate(room, now)
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Msg("[RestartGame] game restarted")

	return Outcome{
		RoomID: room.Id,
		Broadcast: []internal.Message[any]{
			internal.NewMessage(internal.EventGameRestarted, nil),
			update,
			chatMessage(systemMessage),
		},
	}, nil
}
