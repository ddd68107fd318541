package game

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/utils"
)

// Notifier delivers messages to every session in a room. It is used for
// broadcasts that are not triggered by a player action, such as timers.
type Notifier interface {
	Broadcast(roomID string, msgs ...internal.Message[any])
}

// Archive stores finished matches.
type Archive interface {
	RecordMatch(ctx context.Context, result internal.MatchResult) error
}

// Outcome is what a player action produced. Reply goes to the caller only,
// Broadcast goes to everybody in RoomID (the caller included).
type Outcome struct {
	RoomID    string
	Reply     []internal.Message[any]
	Broadcast []internal.Message[any]
}

type Options struct {
	RevealDelay    time.Duration
	Categories     []internal.Category
	Scheduler      Scheduler
	Archive        Archive
	ArchiveTimeout time.Duration
}

// Engine applies player actions and timer events to the rooms of a registry.
// Every mutation happens under the room lock and every broadcast after it.
type Engine struct {
	registry   *Registry
	scheduler  Scheduler
	notifier   Notifier
	archive    Archive
	categories []internal.Category

	revealDelay    time.Duration
	archiveTimeout time.Duration

	now          func() time.Time
	randomLetter func(excludeDifficult bool) string
}

func NewEngine(registry *Registry, notifier Notifier, opts Options) *Engine {
	e := &Engine{
		registry:       registry,
		scheduler:      opts.Scheduler,
		notifier:       notifier,
		archive:        opts.Archive,
		categories:     opts.Categories,
		revealDelay:    opts.RevealDelay,
		archiveTimeout: opts.ArchiveTimeout,
		now:            time.Now,
		randomLetter:   utils.RandomLetter,
	}
	if e.scheduler == nil {
		e.scheduler = NewTimerScheduler()
	}
	if e.revealDelay <= 0 {
		e.revealDelay = internal.RevealDelay
	}
	if e.archiveTimeout <= 0 {
		e.archiveTimeout = 5 * time.Second
	}
	if len(e.categories) == 0 {
		e.categories = internal.DefaultCategories()
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.registry
}

// lockRoom looks the room up and returns it locked. Rooms reaped between the
// lookup and the lock are reported as not found.
func (e *Engine) lockRoom(roomID string) (*internal.Room, error) {
	room, err := e.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	room.Mu.Lock()
	if room.Closed {
		room.Mu.Unlock()
		return nil, internal.NewGameError(internal.ErrNotFound, "Sala não encontrada")
	}
	return room, nil
}

func (e *Engine) broadcast(roomID string, msgs ...internal.Message[any]) {
	if e.notifier == nil || len(msgs) == 0 {
		return
	}
	e.notifier.Broadcast(roomID, msgs...)
}

func gameUpdate(room *internal.Room, now time.Time) internal.Message[any] {
	return internal.NewMessage(internal.EventGameUpdate, Snapshot(room, now))
}

func chatMessage(msg internal.ChatMessage) internal.Message[any] {
	return internal.NewMessage(internal.EventChatMessage, msg)
}

// Snapshot returns the public view of a room. Caller holds room.Mu.
func Snapshot(room *internal.Room, now time.Time) internal.GameStateData {
	players := make([]internal.Player, 0, len(room.Players))
	for _, p := range room.OrderedPlayers() {
		players = append(players, p.ToPublicPlayer())
	}

	data := internal.GameStateData{
		Id:            room.Id,
		State:         room.State,
		HostId:        room.HostId,
		Config:        room.Config,
		CurrentRound:  room.CurrentRound,
		Players:       players,
		PlayerScores:  internal.CloneScores(room.PlayerScores),
		TimeRemaining: room.TimeRemaining(now).Milliseconds(),
	}
	data.Config.Categories = append([]internal.Category(nil), room.Config.Categories...)

	if room.LetterVisible(now) {
		letter := room.CurrentLetter
		data.CurrentLetter = &letter
	}
	if !room.RoundStartTime.IsZero() {
		start := room.RoundStartTime.UnixMilli()
		end := room.RoundEndTime.UnixMilli()
		data.RoundStartTime = &start
		data.RoundEndTime = &end
	}

	switch room.State {
	case internal.StateVoting:
		data.VotingAnswers = cloneEntries(room.VotingEntries)
	case internal.StateReviewing:
		data.RoundAnswers = cloneAnswers(room.RoundAnswers)
	}
	return data
}

func cloneEntries(entries map[string]*internal.VotingEntry) map[string]internal.VotingEntry {
	out := make(map[string]internal.VotingEntry, len(entries))
	for id, entry := range entries {
		out[id] = entry.Clone()
	}
	return out
}

func cloneAnswers(answers map[string]internal.PlayerAnswers) map[string]internal.PlayerAnswers {
	out := make(map[string]internal.PlayerAnswers, len(answers))
	for playerId, submitted := range answers {
		out[playerId] = internal.PlayerAnswers{Answers: maps.Clone(submitted.Answers), SubmittedAt: submitted.SubmittedAt}
	}
	return out
}

// State returns a snapshot of a room for read-only callers.
func (e *Engine) State(roomID string) (internal.GameStateData, error) {
	room, err := e.registry.Get(roomID)
	if err != nil {
		return internal.GameStateData{}, err
	}

	room.Mu.RLock()
	defer room.Mu.RUnlock()
	if room.Closed {
		return internal.GameStateData{}, internal.NewGameError(internal.ErrNotFound, "Sala não encontrada")
	}
	return Snapshot(room, e.now()), nil
}

// Summary describes a room for the lobby lookup endpoint.
func (e *Engine) Summary(roomID string) (internal.RoomSummary, error) {
	room, err := e.registry.Get(roomID)
	if err != nil {
		return internal.RoomSummary{}, err
	}

	room.Mu.RLock()
	defer room.Mu.RUnlock()
	if room.Closed {
		return internal.RoomSummary{}, internal.NewGameError(internal.ErrNotFound, "Sala não encontrada")
	}
	return internal.RoomSummary{
		Id:       room.Id,
		State:    room.State,
		Players:  room.GetPlayerCount(),
		Capacity: internal.MaxPlayersPerRoom,
	}, nil
}

// RunSweeper removes empty rooms every interval until ctx is done.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = internal.SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("[RunSweeper] started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("[RunSweeper] stopped")
			return
		case <-ticker.C:
			for _, id := range e.registry.SweepEmpty() {
				e.scheduler.Cancel(id)
			}
		}
	}
}

func (e *Engine) recordMatch(result internal.MatchResult) {
	if e.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.archiveTimeout)
		defer cancel()
		if err := e.archive.RecordMatch(ctx, result); err != nil {
			log.Error().Err(err).Str("room", result.RoomId).Msg("[recordMatch] failed to archive match")
			return
		}
		log.Info().Str("room", result.RoomId).Int("players", len(result.Ranking)).Msg("[recordMatch] match archived")
	}()
}
