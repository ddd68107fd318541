package game

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

// =============================================================================
// GAME FLOW - ROUNDS
// =============================================================================

// scheduleRound arms the reveal and expiry timers for the room's current
// generation. Caller holds room.Mu.
func (e *Engine) scheduleRound(room *internal.Room) {
	roomID, generation := room.Id, room.Generation
	e.scheduler.Schedule(roomID, generation, e.revealDelay, func() {
		e.revealLetter(roomID, generation)
	})
	e.scheduler.Schedule(roomID, generation, e.revealDelay+room.RoundDuration(), func() {
		e.expireRound(roomID, generation)
	})
}

func roundStarting(room *internal.Room) internal.Message[any] {
	return internal.NewMessage(internal.EventRoundStarting, internal.RoundStartingData{
		Round:       room.CurrentRound,
		TotalRounds: room.Config.Rounds,
	})
}

// revealLetter announces the letter once the reveal delay is over. Stale
// generations and rooms that are gone are ignored.
func (e *Engine) revealLetter(roomID string, generation uint64) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		log.Debug().Str("room", roomID).Msg("[revealLetter] room no longer exists")
		return
	}

	// --- Critical section ---
	if room.Generation != generation || room.State != internal.StatePlaying {
		room.Mu.Unlock()
		log.Debug().Str("room", roomID).Uint64("generation", generation).Msg("[revealLetter] stale timer")
		return
	}

	now := e.now()
	text := "Jogo iniciado! Boa sorte!"
	if room.CurrentRound > 1 {
		text = fmt.Sprintf("Rodada %d iniciada", room.CurrentRound)
	}
	systemMessage := room.AddSystemMessage(text, now)
	revealed := internal.NewMessage(internal.EventLetterRevealed, internal.LetterRevealedData{
		Letter:    room.CurrentLetter,
		TimeLimit: room.Config.TimePerRound,
	})
	update := gameUpdate(room, now)
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", roomID).Uint64("generation", generation).Msg("[revealLetter] letter revealed")
	e.broadcast(roomID, revealed, update, chatMessage(systemMessage))
}

// expireRound closes the answer window when the round runs out of time.
func (e *Engine) expireRound(roomID string, generation uint64) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		log.Debug().Str("room", roomID).Msg("[expireRound] room no longer exists")
		return
	}

	// --- Critical section ---
	now := e.now()
	if !room.Expire(generation, now) {
		if room.Generation == generation && room.State == internal.StatePlaying {
			// Fired a little early against the wall clock, try again when due.
			remaining := room.TimeRemaining(now)
			e.scheduler.Schedule(roomID, generation, remaining, func() {
				e.expireRound(roomID, generation)
			})
		}
		room.Mu.Unlock()
		return
	}

	e.scheduler.Cancel(room.Id)
	voting := votingStarted(room)
	update := gameUpdate(room, now)
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", roomID).Msg("[expireRound] time is up, voting started")
	e.broadcast(roomID, voting, update)
}

func votingStarted(room *internal.Room) internal.Message[any] {
	return internal.NewMessage(internal.EventVotingStarted, internal.VotingStartedData{
		Answers: cloneEntries(room.VotingEntries),
	})
}

// SubmitAnswers stores the caller's answers for the running round. Late or
// out of round submissions are ignored.
func (e *Engine) SubmitAnswers(playerID, roomID string, answers map[string]string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	now := e.now()
	if !room.AcceptAnswers(playerID, answers, now) {
		room.Mu.Unlock()
		log.Debug().Str("room", room.Id).Str("player", playerID).Msg("[SubmitAnswers] submission ignored")
		return Outcome{RoomID: room.Id}, nil
	}

	name := room.Players[playerID].Name
	systemMessage := room.AddSystemMessage(fmt.Sprintf("%s enviou as respostas", name), now)
	room.Mu.Unlock()
	// --- End critical section ---

	return Outcome{
		RoomID: room.Id,
		Broadcast: []internal.Message[any]{
			internal.NewMessage(internal.EventPlayerSubmitted, internal.PlayerSubmittedData{PlayerId: playerID, PlayerName: name}),
			chatMessage(systemMessage),
		},
	}, nil
}

// CallStop ends the round early for everybody and opens voting.
func (e *Engine) CallStop(playerID, roomID string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	now := e.now()
	caller, ok := room.Players[playerID]
	if !ok || room.State != internal.StatePlaying || now.Before(room.RoundStartTime) {
		room.Mu.Unlock()
		return Outcome{RoomID: room.Id}, nil
	}

	if err := room.Stop(now); err != nil {
		room.Mu.Unlock()
		return Outcome{}, err
	}
	e.scheduler.Cancel(room.Id)

	systemMessage := room.AddSystemMessage(fmt.Sprintf("%s gritou STOP!", caller.Name), now)
	stopped := internal.NewMessage(internal.EventStopCalled, internal.StopCalledData{CallerId: caller.Id, CallerName: caller.Name})
	voting := votingStarted(room)
	update := gameUpdate(room, now)
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Str("player", playerID).Msg("[CallStop] stop called")

	return Outcome{
		RoomID:    room.Id,
		Broadcast: []internal.Message[any]{stopped, voting, update, chatMessage(systemMessage)},
	}, nil
}

// NextRound starts the next round after review, or finishes the match after
// the last one.
func (e *Engine) NextRound(playerID, roomID string) (Outcome, error) {
	room, err := e.lockRoom(roomID)
	if err != nil {
		return Outcome{}, err
	}

	// --- Critical section ---
	if !room.IsHost(playerID) {
		room.Mu.Unlock()
		return Outcome{}, forbidden("avançar")
	}

	now := e.now()
	letter := e.randomLetter(room.Config.ExcludeDifficultLetters)
	finished, err := room.Advance(letter, now.Add(e.revealDelay))
	if err != nil {
		room.Mu.Unlock()
		return Outcome{}, err
	}

	if !finished {
		e.scheduleRound(room)
		starting := roundStarting(room)
		round := room.CurrentRound
		room.Mu.Unlock()

		log.Info().Str("room", room.Id).Int("round", round).Msg("[NextRound] round started")
		return Outcome{RoomID: room.Id, Broadcast: []internal.Message[any]{starting}}, nil
	}

	e.scheduler.Cancel(room.Id)
	ranking := room.Ranking()
	var winner internal.RankingEntry
	if len(ranking) > 0 {
		winner = ranking[0]
	}
	systemMessage := room.AddSystemMessage(fmt.Sprintf("🏆 %s venceu com %d pontos!", winner.PlayerName, winner.Score), now)
	update := gameUpdate(room, now)
	result := internal.MatchResult{
		RoomId:     room.Id,
		Rounds:     room.Config.Rounds,
		FinishedAt: now,
		Ranking:    ranking,
	}
	room.Mu.Unlock()
	// --- End critical section ---

	log.Info().Str("room", room.Id).Str("winner", winner.PlayerName).Int("score", winner.Score).Msg("[NextRound] game finished")
	e.recordMatch(result)

	return Outcome{
		RoomID: room.Id,
		Broadcast: []internal.Message[any]{
			internal.NewMessage(internal.EventGameFinished, internal.GameFinishedData{Ranking: ranking, Winner: winner}),
			update,
			chatMessage(systemMessage),
		},
	}, nil
}
