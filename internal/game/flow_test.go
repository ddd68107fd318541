package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

func TestEngine_RevealLetter(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")

	env.sched.fire(0)

	assert.Equal(t, []string{internal.EventLetterRevealed, internal.EventGameUpdate, internal.EventChatMessage}, env.notifier.types())
	revealed := env.notifier.msgs[0].Data.(internal.LetterRevealedData)
	assert.Equal(t, internal.LetterRevealedData{Letter: "C", TimeLimit: internal.DefaultTimePerRound}, revealed)
	assert.Equal(t, "Jogo iniciado! Boa sorte!", env.notifier.msgs[2].Data.(internal.ChatMessage).Message)

	state := env.notifier.msgs[1].Data.(internal.GameStateData)
	require.NotNil(t, state.CurrentLetter)
	assert.Equal(t, "C", *state.CurrentLetter)
	assert.Equal(t, roomID, state.Id)
}

func TestEngine_LetterHiddenBeforeReveal(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.roomWith(t, "p1", "p2")
	_, _ = env.engine.SetReady("p1", roomID, true)
	_, _ = env.engine.SetReady("p2", roomID, true)
	_, err := env.engine.StartGame("p1", roomID)
	require.NoError(t, err)

	state, err := env.engine.State(roomID)
	require.NoError(t, err)
	assert.Nil(t, state.CurrentLetter)

	out, err := env.engine.SubmitAnswers("p1", roomID, map[string]string{"animal": "Cavalo"})
	require.NoError(t, err)
	assert.Empty(t, out.Broadcast, "answers before the reveal are ignored")

	env.clock.Advance(3 * time.Second)
	state, err = env.engine.State(roomID)
	require.NoError(t, err)
	require.NotNil(t, state.CurrentLetter)
	assert.Equal(t, int64(60_000), state.TimeRemaining)
}

func TestEngine_ExpiryOpensVoting(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")
	_, err := env.engine.SubmitAnswers("p1", roomID, map[string]string{"animal": "Cavalo"})
	require.NoError(t, err)

	env.clock.Advance(60 * time.Second)
	env.sched.fire(1)

	assert.Equal(t, []string{internal.EventVotingStarted, internal.EventGameUpdate}, env.notifier.types())
	voting := env.notifier.msgs[0].Data.(internal.VotingStartedData)
	assert.Contains(t, voting.Answers, internal.AnswerId("p1", "animal"))
	assert.Equal(t, internal.StateVoting, env.room(t, roomID).State)
}

func TestEngine_EarlyExpiryReschedules(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")

	env.clock.Advance(59 * time.Second)
	env.sched.fire(1)

	assert.Empty(t, env.notifier.types())
	tasks := env.sched.pending()
	require.Len(t, tasks, 3)
	assert.Equal(t, time.Second, tasks[2].delay)

	env.clock.Advance(time.Second)
	env.sched.fire(2)
	assert.Equal(t, internal.StateVoting, env.room(t, roomID).State)
}

func TestEngine_StaleExpiryAfterStopIsIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")

	out, err := env.engine.CallStop("p2", roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{internal.EventStopCalled, internal.EventVotingStarted, internal.EventGameUpdate, internal.EventChatMessage}, messageTypes(out.Broadcast))
	assert.Equal(t, internal.StopCalledData{CallerId: "p2", CallerName: "name-p2"}, out.Broadcast[0].Data)
	assert.Equal(t, "name-p2 gritou STOP!", out.Broadcast[3].Data.(internal.ChatMessage).Message)

	env.clock.Advance(2 * time.Minute)
	env.sched.fire(0)
	env.sched.fire(1)

	assert.Empty(t, env.notifier.types())
	assert.Equal(t, internal.StateVoting, env.room(t, roomID).State)
}

func TestEngine_TimersForDeletedRoomAreSwallowed(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")
	env.engine.Leave("p1", roomID)
	env.engine.Leave("p2", roomID)
	require.Zero(t, env.engine.registry.Len())

	env.clock.Advance(2 * time.Minute)
	assert.NotPanics(t, func() {
		env.sched.fire(0)
		env.sched.fire(1)
	})
	assert.Empty(t, env.notifier.types())
}

func TestEngine_CallStopOutsidePlayingIsNoop(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.roomWith(t, "p1", "p2")

	out, err := env.engine.CallStop("p1", roomID)
	require.NoError(t, err)
	assert.Empty(t, out.Broadcast)

	roomID = env.startedRoom(t, "h1", "h2")
	out, err = env.engine.CallStop("ghost", roomID)
	require.NoError(t, err)
	assert.Empty(t, out.Broadcast)
}

func TestEngine_SubmitAnswers(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")

	out, err := env.engine.SubmitAnswers("p1", roomID, map[string]string{"animal": "Cavalo"})
	require.NoError(t, err)
	assert.Equal(t, []string{internal.EventPlayerSubmitted, internal.EventChatMessage}, messageTypes(out.Broadcast))
	assert.Equal(t, internal.PlayerSubmittedData{PlayerId: "p1", PlayerName: "name-p1"}, out.Broadcast[0].Data)

	env.clock.Advance(61 * time.Second)
	out, err = env.engine.SubmitAnswers("p2", roomID, map[string]string{"animal": "Cobra"})
	require.NoError(t, err)
	assert.Empty(t, out.Broadcast, "late submission")
}

func TestEngine_VoteOutsideVoting(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")

	_, err := env.engine.Vote("p2", roomID, internal.AnswerId("p1", "animal"), true)
	assert.ErrorIs(t, err, internal.ErrInvalidState)

	_, err = env.engine.FinishVoting("p1", roomID)
	assert.ErrorIs(t, err, internal.ErrInvalidState)
}

func TestEngine_FullMatch(t *testing.T) {
	archive := &MockArchive{}
	archived := make(chan internal.MatchResult, 1)
	archive.On("RecordMatch", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		archived <- args.Get(1).(internal.MatchResult)
	})

	env := newTestEnv(t, archive)
	roomID := env.roomWith(t, "p1", "p2", "p3", "p4")
	one := 1
	_, err := env.engine.Configure("p1", roomID, internal.ConfigPatch{Rounds: &one})
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, _ = env.engine.SetReady(id, roomID, true)
	}
	_, err = env.engine.StartGame("p1", roomID)
	require.NoError(t, err)
	env.clock.Advance(3 * time.Second)

	answers := map[string]string{"p1": "Cachorro", "p2": "cachorro", "p3": "Cavalo", "p4": "Gato"}
	for id, answer := range answers {
		_, err := env.engine.SubmitAnswers(id, roomID, map[string]string{"animal": answer})
		require.NoError(t, err)
	}
	_, err = env.engine.CallStop("p4", roomID)
	require.NoError(t, err)

	// everybody approves everything they can vote on
	for voter := range answers {
		for author := range answers {
			out, err := env.engine.Vote(voter, roomID, internal.AnswerId(author, "animal"), true)
			require.NoError(t, err)
			if voter == author {
				assert.Empty(t, out.Broadcast, "own answer")
			} else {
				assert.Equal(t, []string{internal.EventGameUpdate}, messageTypes(out.Broadcast))
			}
		}
	}

	_, err = env.engine.FinishVoting("p2", roomID)
	assert.ErrorIs(t, err, internal.ErrForbidden)

	out, err := env.engine.FinishVoting("p1", roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{internal.EventRoundEnded, internal.EventGameUpdate}, messageTypes(out.Broadcast))

	ended := out.Broadcast[0].Data.(internal.RoundEndedData)
	want := map[string]int{"p1": 5, "p2": 5, "p3": 10, "p4": 0}
	assert.Equal(t, want, ended.Scores)
	assert.Equal(t, want, ended.TotalScores)
	assert.Len(t, ended.VotingResults, 4)
	assert.Len(t, ended.Answers, 4)

	state := out.Broadcast[1].Data.(internal.GameStateData)
	assert.Equal(t, internal.StateReviewing, state.State)
	assert.NotNil(t, state.RoundAnswers)
	assert.Nil(t, state.VotingAnswers)

	out, err = env.engine.NextRound("p1", roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{internal.EventGameFinished, internal.EventGameUpdate, internal.EventChatMessage}, messageTypes(out.Broadcast))

	finished := out.Broadcast[0].Data.(internal.GameFinishedData)
	assert.Equal(t, "p3", finished.Winner.PlayerId)
	require.Len(t, finished.Ranking, 4)
	assert.Equal(t, []string{"p3", "p1", "p2", "p4"}, []string{
		finished.Ranking[0].PlayerId, finished.Ranking[1].PlayerId, finished.Ranking[2].PlayerId, finished.Ranking[3].PlayerId,
	})
	assert.Equal(t, "🏆 name-p3 venceu com 10 pontos!", out.Broadcast[2].Data.(internal.ChatMessage).Message)

	select {
	case result := <-archived:
		assert.Equal(t, roomID, result.RoomId)
		assert.Equal(t, 1, result.Rounds)
		assert.Equal(t, finished.Ranking, result.Ranking)
	case <-time.After(2 * time.Second):
		t.Fatal("match was not archived")
	}
	archive.AssertExpectations(t)

	_, err = env.engine.NextRound("p1", roomID)
	assert.ErrorIs(t, err, internal.ErrInvalidState)
}

func TestEngine_NextRoundStartsAnotherRound(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")
	_, err := env.engine.CallStop("p1", roomID)
	require.NoError(t, err)

	_, err = env.engine.NextRound("p1", roomID)
	assert.ErrorIs(t, err, internal.ErrInvalidState, "still voting")

	_, err = env.engine.FinishVoting("p1", roomID)
	require.NoError(t, err)

	_, err = env.engine.NextRound("p2", roomID)
	assert.ErrorIs(t, err, internal.ErrForbidden)

	out, err := env.engine.NextRound("p1", roomID)
	require.NoError(t, err)
	assert.Equal(t, internal.RoundStartingData{Round: 2, TotalRounds: internal.DefaultRounds}, out.Broadcast[0].Data)

	tasks := env.sched.pending()
	require.Len(t, tasks, 4)
	env.notifier.reset()
	env.clock.Advance(3 * time.Second)
	env.sched.fire(2)
	assert.Equal(t, "Rodada 2 iniciada", env.notifier.msgs[2].Data.(internal.ChatMessage).Message)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2")
	_, _ = env.engine.SubmitAnswers("p1", roomID, map[string]string{"animal": "Cavalo"})
	_, _ = env.engine.CallStop("p1", roomID)
	_, _ = env.engine.Vote("p2", roomID, internal.AnswerId("p1", "animal"), true)

	state, err := env.engine.State(roomID)
	require.NoError(t, err)
	require.NotNil(t, state.VotingAnswers)
	assert.Nil(t, state.RoundAnswers)

	data, err := json.Marshal(state)
	require.NoError(t, err)
	var decoded internal.GameStateData
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, state.PlayerScores, decoded.PlayerScores)
	assert.Equal(t, state.TimeRemaining, decoded.TimeRemaining)
	assert.Equal(t, *state.RoundEndTime, *decoded.RoundEndTime)
	assert.Equal(t, state.VotingAnswers, decoded.VotingAnswers)
	require.Len(t, decoded.Players, 2)
	for i := range state.Players {
		assert.Equal(t, state.Players[i].Id, decoded.Players[i].Id)
		assert.Equal(t, state.Players[i].IsHost, decoded.Players[i].IsHost)
		assert.True(t, state.Players[i].JoinedAt.Equal(decoded.Players[i].JoinedAt))
	}
}

func TestEngine_StopBeforeRevealIsIgnored(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.roomWith(t, "p1", "p2")
	_, _ = env.engine.SetReady("p1", roomID, true)
	_, _ = env.engine.SetReady("p2", roomID, true)
	_, err := env.engine.StartGame("p1", roomID)
	require.NoError(t, err)

	env.clock.Advance(time.Second)
	out, err := env.engine.CallStop("p2", roomID)
	require.NoError(t, err)
	assert.Empty(t, out.Broadcast)

	room := env.room(t, roomID)
	assert.Equal(t, internal.StatePlaying, room.State)
	assert.True(t, room.RoundEndTime.After(room.RoundStartTime))
	assert.NotContains(t, env.sched.cancelled, roomID)

	env.clock.Advance(2 * time.Second)
	env.sched.fire(0)
	assert.Contains(t, env.notifier.types(), internal.EventLetterRevealed)

	out, err = env.engine.CallStop("p2", roomID)
	require.NoError(t, err)
	assert.Equal(t, internal.EventStopCalled, out.Broadcast[0].Type)
}

func TestEngine_DepartedPlayerKeepsRoundPoints(t *testing.T) {
	env := newTestEnv(t, nil)
	roomID := env.startedRoom(t, "p1", "p2", "p3")
	_, err := env.engine.SubmitAnswers("p3", roomID, map[string]string{"animal": "Cavalo"})
	require.NoError(t, err)
	_, err = env.engine.CallStop("p1", roomID)
	require.NoError(t, err)
	_, err = env.engine.Vote("p1", roomID, internal.AnswerId("p3", "animal"), true)
	require.NoError(t, err)

	env.engine.Leave("p3", roomID)

	out, err := env.engine.FinishVoting("p1", roomID)
	require.NoError(t, err)
	ended := out.Broadcast[0].Data.(internal.RoundEndedData)
	assert.Equal(t, UniqueAnswerPoints, ended.Scores["p3"])
	assert.Equal(t, UniqueAnswerPoints, ended.TotalScores["p3"])
}
