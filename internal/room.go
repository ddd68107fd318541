package internal

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Methods on Room do not lock. Callers hold room.Mu for the whole call.

func NewRoom(id, hostId string, config GameConfig) *Room {
	return &Room{
		Id:            id,
		HostId:        hostId,
		State:         StateWaiting,
		Config:        config,
		Players:       make(map[string]*Player),
		PlayerOrder:   make([]string, 0, MaxPlayersPerRoom),
		PlayerScores:  make(map[string]int),
		RoundAnswers:  make(map[string]PlayerAnswers),
		VotingEntries: make(map[string]*VotingEntry),
		ChatLog:       make([]ChatMessage, 0),
	}
}

// =============================================================================
// ROSTER
// =============================================================================

func (r *Room) GetPlayerCount() int {
	return len(r.Players)
}

func (r *Room) IsHost(playerId string) bool {
	return len(r.Players) > 0 && r.HostId == playerId
}

// OrderedPlayers returns players in join order.
func (r *Room) OrderedPlayers() []*Player {
	players := make([]*Player, 0, len(r.PlayerOrder))
	for _, id := range r.PlayerOrder {
		if p, ok := r.Players[id]; ok {
			players = append(players, p)
		}
	}
	return players
}

// AddPlayer seats a player. A known id keeps its cumulative score.
func (r *Room) AddPlayer(id, name string, now time.Time) *Player {
	if len(r.Players) == 0 {
		r.HostId = id
	}

	player := &Player{
		Id:       id,
		Name:     NormalizePlayerName(name),
		IsHost:   id == r.HostId,
		JoinedAt: now,
	}
	if _, exists := r.Players[id]; !exists {
		r.PlayerOrder = append(r.PlayerOrder, id)
	}
	r.Players[id] = player
	if _, scored := r.PlayerScores[id]; !scored {
		r.PlayerScores[id] = 0
	}
	return player
}

// RemovePlayer drops the player and their pending answers. When the host
// leaves the earliest remaining player is promoted and returned.
func (r *Room) RemovePlayer(id string) (removed *Player, promoted *Player) {
	removed, ok := r.Players[id]
	if !ok {
		return nil, nil
	}

	delete(r.Players, id)
	delete(r.RoundAnswers, id)
	r.PlayerOrder = slices.DeleteFunc(r.PlayerOrder, func(s string) bool {
		return s == id
	})

	if id == r.HostId && len(r.PlayerOrder) > 0 {
		next := r.Players[r.PlayerOrder[0]]
		next.IsHost = true
		r.HostId = next.Id
		promoted = next
	}
	return removed, promoted
}

// =============================================================================
// LOBBY
// =============================================================================

func (r *Room) SetPlayerReady(id string, ready bool) bool {
	player, ok := r.Players[id]
	if !ok {
		return false
	}
	player.IsReady = ready
	return true
}

func (r *Room) AreAllPlayersReady() bool {
	for _, player := range r.Players {
		if !player.IsReady {
			return false
		}
	}
	return true
}

func (r *Room) CanStartGame() bool {
	return r.GetPlayerCount() >= MinPlayersToStart && r.AreAllPlayersReady()
}

func (r *Room) ActiveCategories() []Category {
	active := make([]Category, 0, len(r.Config.Categories))
	for _, c := range r.Config.Categories {
		if c.Active {
			active = append(active, c)
		}
	}
	return active
}

// ApplyConfig merges a partial configuration. Only allowed while waiting.
func (r *Room) ApplyConfig(patch ConfigPatch) error {
	if r.State != StateWaiting {
		return NewGameError(ErrInvalidState, "a configuração só pode ser alterada antes do jogo começar")
	}

	next := r.Config
	if patch.Rounds != nil {
		if *patch.Rounds < MinRounds || *patch.Rounds > MaxRounds {
			return NewGameError(ErrValidationFailed, "número de rodadas deve estar entre %d e %d", MinRounds, MaxRounds)
		}
		next.Rounds = *patch.Rounds
	}
	if patch.TimePerRound != nil {
		if *patch.TimePerRound < MinTimePerRound || *patch.TimePerRound > MaxTimePerRound {
			return NewGameError(ErrValidationFailed, "tempo por rodada deve estar entre %d e %d segundos", MinTimePerRound, MaxTimePerRound)
		}
		next.TimePerRound = *patch.TimePerRound
	}
	if patch.Categories != nil {
		categories, err := validateCategories(patch.Categories)
		if err != nil {
			return err
		}
		next.Categories = categories
	}
	if patch.ExcludeDifficultLetters != nil {
		next.ExcludeDifficultLetters = *patch.ExcludeDifficultLetters
	}

	r.Config = next
	return nil
}

func validateCategories(categories []Category) ([]Category, error) {
	seen := make(map[string]struct{}, len(categories))
	active := 0
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		c.Id = strings.TrimSpace(c.Id)
		c.Label = strings.TrimSpace(c.Label)
		if c.Id == "" || c.Label == "" {
			return nil, NewGameError(ErrValidationFailed, "categoria inválida")
		}
		if _, dup := seen[c.Id]; dup {
			return nil, NewGameError(ErrValidationFailed, "categoria duplicada: %s", c.Id)
		}
		seen[c.Id] = struct{}{}
		if c.Active {
			active++
		}
		out = append(out, c)
	}
	if active == 0 {
		return nil, NewGameError(ErrValidationFailed, "pelo menos uma categoria deve estar ativa")
	}
	return out, nil
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// Start moves waiting → playing and begins round 1 with the given letter.
// The answer window opens at revealAt.
func (r *Room) Start(letter string, revealAt time.Time) error {
	if r.State != StateWaiting {
		return NewGameError(ErrInvalidState, "o jogo já está em andamento")
	}
	if r.GetPlayerCount() < MinPlayersToStart {
		return NewGameError(ErrValidationFailed, "são necessários pelo menos %d jogadores", MinPlayersToStart)
	}
	if !r.AreAllPlayersReady() {
		return NewGameError(ErrValidationFailed, "Todos os jogadores devem estar prontos para iniciar")
	}

	r.State = StatePlaying
	r.CurrentRound = 1
	r.beginRound(letter, revealAt)
	for _, p := range r.Players {
		p.ResetRoundState()
	}
	return nil
}

func (r *Room) beginRound(letter string, revealAt time.Time) {
	r.Generation++
	clear(r.RoundAnswers)
	clear(r.VotingEntries)
	r.CurrentLetter = letter
	r.RoundStartTime = revealAt
	r.RoundEndTime = revealAt.Add(r.RoundDuration())
}

func (r *Room) RoundDuration() time.Duration {
	return time.Duration(r.Config.TimePerRound) * time.Second
}

// LetterVisible reports whether the current letter has been revealed.
func (r *Room) LetterVisible(now time.Time) bool {
	if r.CurrentLetter == "" {
		return false
	}
	return r.State != StatePlaying || !now.Before(r.RoundStartTime)
}

// AcceptAnswers stores a player's answers if the round is still open.
func (r *Room) AcceptAnswers(playerId string, answers map[string]string, now time.Time) bool {
	if r.State != StatePlaying || now.Before(r.RoundStartTime) || !now.Before(r.RoundEndTime) {
		return false
	}
	if _, ok := r.Players[playerId]; !ok {
		return false
	}

	known := make(map[string]struct{}, len(r.Config.Categories))
	for _, c := range r.Config.Categories {
		known[c.Id] = struct{}{}
	}
	kept := make(map[string]string, len(answers))
	for categoryId, text := range answers {
		if _, ok := known[categoryId]; ok {
			kept[categoryId] = text
		}
	}

	r.RoundAnswers[playerId] = PlayerAnswers{
		Answers:     kept,
		SubmittedAt: now.UnixMilli(),
	}
	return true
}

// Stop closes the answer window early and opens voting. The window has to
// be open, so a stop before the letter reveal is refused.
func (r *Room) Stop(now time.Time) error {
	if r.State != StatePlaying {
		return NewGameError(ErrInvalidState, "não há rodada em andamento")
	}
	if now.Before(r.RoundStartTime) {
		return NewGameError(ErrInvalidState, "a letra ainda não foi revelada")
	}
	r.RoundEndTime = now
	r.openVoting()
	return nil
}

// Expire is the timer-driven playing → voting edge. It only fires for the
// generation it was scheduled for and once the round end time has passed.
func (r *Room) Expire(generation uint64, now time.Time) bool {
	if r.Closed || r.State != StatePlaying || r.Generation != generation {
		return false
	}
	if now.Before(r.RoundEndTime) {
		return false
	}
	r.openVoting()
	return true
}

func (r *Room) openVoting() {
	r.Generation++
	r.State = StateVoting
	r.BuildVotingEntries()
}

// BuildVotingEntries creates one entry per non-empty answer of an active category.
func (r *Room) BuildVotingEntries() {
	clear(r.VotingEntries)

	active := r.ActiveCategories()
	for playerId, submitted := range r.RoundAnswers {
		name := ""
		if p, ok := r.Players[playerId]; ok {
			name = p.Name
		}
		for _, category := range active {
			answer := strings.TrimSpace(submitted.Answers[category.Id])
			if answer == "" {
				continue
			}
			r.VotingEntries[AnswerId(playerId, category.Id)] = &VotingEntry{
				PlayerId:      playerId,
				PlayerName:    name,
				CategoryId:    category.Id,
				CategoryLabel: category.Label,
				Answer:        answer,
				Letter:        r.CurrentLetter,
				Voters:        make(map[string]struct{}),
			}
		}
	}
}

func AnswerId(playerId, categoryId string) string {
	return fmt.Sprintf("%s_%s", playerId, categoryId)
}

// RecordVote registers a vote. Votes on unknown entries, on one's own answer
// or repeated votes are rejected without error.
func (r *Room) RecordVote(voterId, answerId string, isValid bool) (bool, error) {
	if r.State != StateVoting {
		return false, NewGameError(ErrInvalidState, "a votação não está aberta")
	}
	entry, ok := r.VotingEntries[answerId]
	if !ok || entry.PlayerId == voterId {
		return false, nil
	}
	if _, voted := entry.Voters[voterId]; voted {
		return false, nil
	}
	if _, member := r.Players[voterId]; !member {
		return false, nil
	}

	entry.Voters[voterId] = struct{}{}
	if isValid {
		entry.ValidVotes++
	} else {
		entry.InvalidVotes++
	}
	return true, nil
}

// CloseVoting adds the round scores to the cumulative totals and moves voting → reviewing.
func (r *Room) CloseVoting(roundScores map[string]int) error {
	if r.State != StateVoting {
		return NewGameError(ErrInvalidState, "a votação não está aberta")
	}
	for playerId, score := range roundScores {
		r.PlayerScores[playerId] += score
	}
	r.State = StateReviewing
	return nil
}

// Advance moves reviewing → playing with a new letter, or reviewing → finished
// after the last round. It reports whether the match finished.
func (r *Room) Advance(letter string, revealAt time.Time) (bool, error) {
	if r.State != StateReviewing {
		return false, NewGameError(ErrInvalidState, "a rodada ainda não foi encerrada")
	}
	if r.CurrentRound < r.Config.Rounds {
		r.CurrentRound++
		r.State = StatePlaying
		r.beginRound(letter, revealAt)
		return false, nil
	}

	r.Generation++
	r.State = StateFinished
	return true, nil
}

// ResetToWaiting clears the match and returns the room to the lobby.
func (r *Room) ResetToWaiting() {
	r.Generation++
	r.State = StateWaiting
	r.CurrentRound = 0
	r.CurrentLetter = ""
	r.RoundStartTime = time.Time{}
	r.RoundEndTime = time.Time{}
	clear(r.RoundAnswers)
	clear(r.VotingEntries)
	clear(r.PlayerScores)
	for id, p := range r.Players {
		r.PlayerScores[id] = 0
		p.ResetRoundState()
	}
}

// Ranking sorts current players by cumulative score, keeping join order on ties.
func (r *Room) Ranking() []RankingEntry {
	ranking := make([]RankingEntry, 0, len(r.PlayerOrder))
	for _, p := range r.OrderedPlayers() {
		ranking = append(ranking, RankingEntry{
			PlayerId:   p.Id,
			PlayerName: p.Name,
			Score:      r.PlayerScores[p.Id],
		})
	}
	slices.SortStableFunc(ranking, func(a, b RankingEntry) int {
		return b.Score - a.Score
	})
	return ranking
}

func (r *Room) TimeRemaining(now time.Time) time.Duration {
	if r.RoundEndTime.IsZero() {
		return 0
	}
	return max(r.RoundEndTime.Sub(now), 0)
}

// =============================================================================
// CHAT
// =============================================================================

func (r *Room) nextChat(now time.Time) ChatMessage {
	r.lastChatId++
	return ChatMessage{Id: r.lastChatId, Timestamp: now.UnixMilli()}
}

func (r *Room) AddChatMessage(playerId, text string, now time.Time) (ChatMessage, bool) {
	player, ok := r.Players[playerId]
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return ChatMessage{}, false
	}

	msg := r.nextChat(now)
	msg.PlayerId = player.Id
	msg.PlayerName = player.Name
	msg.Message = text
	msg.Type = ChatPlayer
	r.ChatLog = append(r.ChatLog, msg)
	return msg, true
}

func (r *Room) AddSystemMessage(text string, now time.Time) ChatMessage {
	msg := r.nextChat(now)
	msg.Message = text
	msg.Type = ChatSystem
	r.ChatLog = append(r.ChatLog, msg)
	return msg
}

// StartsWithLetter reports whether the answer's first rune matches the round letter.
func StartsWithLetter(answer, letter string) bool {
	first, size := utf8.DecodeRuneInString(answer)
	if size == 0 || first == utf8.RuneError {
		return false
	}
	return string(unicode.ToUpper(first)) == strings.ToUpper(letter)
}

// CloneScores copies a score map for use outside the room lock.
func CloneScores(scores map[string]int) map[string]int {
	if scores == nil {
		return map[string]int{}
	}
	return maps.Clone(scores)
}
