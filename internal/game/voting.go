package game

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// =============================================================================
// VOTING
// =============================================================================

// Vote records the caller's verdict on one answer. Votes on unknown entries,
// on the caller's own answer or repeated votes change nothing.
func (e *Engine) Vote(playerID, roomID, answerID string, isValid bool) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	accepted, err := room.RecordVote(playerID, answerID, isValid)
	if err != nil {
		room.Mu.Unlock()
		return Outcome{}, err
	}
	if !accepted {
		room.Mu.Unlock()
		log.Debug().Str("room", room.Id).Str("player", playerID).Str("answer", answerID).Msg("[Vote] vote ignored")
		return Outcome{RoomID: room.Id}, nil
	}
	update := gameUpdate(room, e.now())
	room.Mu.Unlock()
	// --- End critical section ---

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{update},
	}, nil
}

// FinishVoting scores the round and moves the room to review.
func (e *Engine) FinishVoting(playerID, roomID string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	if !room.IsHost(playerID) {
		room.Mu.Unlock()
		return Outcome{}, forbidden("finalizar a votação")
	}
	if room.State != internal.StateVoting {
		room.Mu.Unlock()
		return Outcome{}, internal.NewGameError(internal.ErrInvalidState, "a votação não está aberta")
	}

	participants := make([]string, 0, len(room.RoundAnswers))
	for playerId := range room.RoundAnswers {
		participants = append(participants, playerId)
	}
	slices.Sort(participants)

	scores := ScoreRound(room.VotingEntries, room.CurrentLetter, participants)
	if err := room.CloseVoting(scores); err != nil {
		room.Mu.Unlock()
		return Outcome{}, err
	}

	ended := internal.NewMessage(internal.EventRoundEnded, internal.RoundEndedData{
		Answers:       cloneAnswers(room.RoundAnswers),
		Scores:        scores,
		TotalScores:   internal.CloneScores(room.PlayerScores),
		VotingResults: cloneEntries(room.VotingEntries),
	})
	update := gameUpdate(room, e.now())
	round := room.CurrentRound
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Int("round", round).Interface("scores", scores).Msg("[FinishVoting] round scored")

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{ended, update},
	}, nil
}
