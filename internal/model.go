package internal

import (
	"encoding/json"
	"slices"
	"sync"
	"time"
)

const (
	RevealDelay       = 3 * time.Second
	SweepInterval     = 5 * time.Minute
	MaxPlayersPerRoom = 8
	MinPlayersToStart = 2
	RoomCodeLength    = 6

	DefaultRounds       = 3
	DefaultTimePerRound = 60

	MinRounds       = 1
	MaxRounds       = 10
	MinTimePerRound = 10
	MaxTimePerRound = 300

	DefaultPlayerName = "Jogador"
)

type GameState string

const (
	StateWaiting   GameState = "waiting"
	StatePlaying   GameState = "playing"
	StateVoting    GameState = "voting"
	StateReviewing GameState = "reviewing"
	StateFinished  GameState = "finished"
)

// Letters that can be drawn for a round. EasyLetters drops the ones that are
// hard to find words for.
var (
	AllLetters  = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "L", "M", "N", "O", "P", "Q", "R", "S", "T", "U", "V", "Z"}
	EasyLetters = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "L", "M", "N", "O", "P", "R", "S", "T", "V"}
)

type Category struct {
	Id     string `json:"id" validate:"required,max=32"`
	Label  string `json:"label" validate:"required,max=48"`
	Active bool   `json:"active"`
}

// DefaultCategories returns a fresh copy of the built-in category list.
func DefaultCategories() []Category {
	return []Category{
		{Id: "nome", Label: "Nome", Active: true},
		{Id: "animal", Label: "Animal", Active: true},
		{Id: "objeto", Label: "Objeto", Active: true},
		{Id: "lugar", Label: "Lugar", Active: true},
		{Id: "comida", Label: "Comida", Active: true},
		{Id: "cor", Label: "Cor", Active: false},
		{Id: "marca", Label: "Marca", Active: false},
		{Id: "profissao", Label: "Profissão", Active: false},
	}
}

type GameConfig struct {
	Rounds                  int        `json:"rounds"`
	TimePerRound            int        `json:"timePerRound"`
	Categories              []Category `json:"categories"`
	ExcludeDifficultLetters bool       `json:"excludeDifficultLetters"`
}

func DefaultGameConfig(categories []Category) GameConfig {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return GameConfig{
		Rounds:                  DefaultRounds,
		TimePerRound:            DefaultTimePerRound,
		Categories:              slices.Clone(categories),
		ExcludeDifficultLetters: true,
	}
}

// ConfigPatch is a partial configuration sent by the host. Nil fields keep
// their current value.
type ConfigPatch struct {
	Rounds                  *int       `json:"rounds,omitempty" validate:"omitempty,min=1,max=10"`
	TimePerRound            *int       `json:"timePerRound,omitempty" validate:"omitempty,min=10,max=300"`
	Categories              []Category `json:"categories,omitempty" validate:"omitempty,dive"`
	ExcludeDifficultLetters *bool      `json:"excludeDifficultLetters,omitempty"`
}

type PlayerAnswers struct {
	Answers     map[string]string `json:"answers"`
	SubmittedAt int64             `json:"submittedAt"`
}

// VotingEntry is one player's answer for one category during the voting phase.
type VotingEntry struct {
	PlayerId      string `json:"playerId"`
	PlayerName    string `json:"playerName"`
	CategoryId    string `json:"categoryId"`
	CategoryLabel string `json:"categoryLabel"`
	Answer        string `json:"answer"`
	Letter        string `json:"letter"`
	ValidVotes    int    `json:"validVotes"`
	InvalidVotes  int    `json:"invalidVotes"`

	Voters map[string]struct{} `json:"-"`
}

type votingEntryJSON struct {
	PlayerId      string   `json:"playerId"`
	PlayerName    string   `json:"playerName"`
	CategoryId    string   `json:"categoryId"`
	CategoryLabel string   `json:"categoryLabel"`
	Answer        string   `json:"answer"`
	Letter        string   `json:"letter"`
	ValidVotes    int      `json:"validVotes"`
	InvalidVotes  int      `json:"invalidVotes"`
	Voters        []string `json:"voters"`
}

func (v VotingEntry) MarshalJSON() ([]byte, error) {
	voters := make([]string, 0, len(v.Voters))
	for id := range v.Voters {
		voters = append(voters, id)
	}
	slices.Sort(voters)

	return json.Marshal(votingEntryJSON{
		PlayerId:      v.PlayerId,
		PlayerName:    v.PlayerName,
		CategoryId:    v.CategoryId,
		CategoryLabel: v.CategoryLabel,
		Answer:        v.Answer,
		Letter:        v.Letter,
		ValidVotes:    v.ValidVotes,
		InvalidVotes:  v.InvalidVotes,
		Voters:        voters,
	})
}

func (v *VotingEntry) UnmarshalJSON(data []byte) error {
	var raw votingEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*v = VotingEntry{
		PlayerId:      raw.PlayerId,
		PlayerName:    raw.PlayerName,
		CategoryId:    raw.CategoryId,
		CategoryLabel: raw.CategoryLabel,
		Answer:        raw.Answer,
		Letter:        raw.Letter,
		ValidVotes:    raw.ValidVotes,
		InvalidVotes:  raw.InvalidVotes,
		Voters:        make(map[string]struct{}, len(raw.Voters)),
	}
	for _, id := range raw.Voters {
		v.Voters[id] = struct{}{}
	}
	return nil
}

// Clone copies the entry including its voter set.
func (v *VotingEntry) Clone() VotingEntry {
	c := *v
	c.Voters = make(map[string]struct{}, len(v.Voters))
	for id := range v.Voters {
		c.Voters[id] = struct{}{}
	}
	return c
}

type ChatKind string

const (
	ChatPlayer ChatKind = "player"
	ChatSystem ChatKind = "system"
)

type ChatMessage struct {
	Id         int64    `json:"id"`
	PlayerId   string   `json:"playerId,omitempty"`
	PlayerName string   `json:"playerName,omitempty"`
	Message    string   `json:"message"`
	Timestamp  int64    `json:"timestamp"`
	Type       ChatKind `json:"type"`
}

type RankingEntry struct {
	PlayerId   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// MatchResult is what gets archived once a match reaches the finished state.
type MatchResult struct {
	Id         int64          `json:"id,omitempty"`
	RoomId     string         `json:"roomId"`
	Rounds     int            `json:"rounds"`
	FinishedAt time.Time      `json:"finishedAt"`
	Ranking    []RankingEntry `json:"ranking"`
}

type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}

type Room struct {
	Id     string
	HostId string

	// Game State
	State         GameState
	Config        GameConfig
	CurrentRound  int
	CurrentLetter string

	// Round timing, zero when no round is running
	RoundStartTime time.Time
	RoundEndTime   time.Time

	// Roster. PlayerOrder keeps insertion order for host promotion.
	Players     map[string]*Player
	PlayerOrder []string

	// Scores outlive the Player entry until explicitly cleared
	PlayerScores map[string]int

	// Per-round data, rebuilt every round
	RoundAnswers  map[string]PlayerAnswers
	VotingEntries map[string]*VotingEntry

	ChatLog    []ChatMessage
	lastChatId int64

	// Generation is bumped whenever a round starts or the match is reset so
	// timers scheduled for an older round can tell they are stale.
	Generation uint64

	// Closed is set once the room has been reaped from the registry.
	Closed bool

	// Concurrency control
	Mu sync.RWMutex
}

type GameStateData struct {
	Id             string                   `json:"id"`
	State          GameState                `json:"state"`
	HostId         string                   `json:"hostId"`
	Config         GameConfig               `json:"config"`
	CurrentRound   int                      `json:"currentRound"`
	CurrentLetter  *string                  `json:"currentLetter"`
	RoundStartTime *int64                   `json:"roundStartTime"`
	RoundEndTime   *int64                   `json:"roundEndTime"`
	Players        []Player                 `json:"players"`
	PlayerScores   map[string]int           `json:"playerScores"`
	TimeRemaining  int64                    `json:"timeRemaining"`
	VotingAnswers  map[string]VotingEntry   `json:"votingAnswers"`
	RoundAnswers   map[string]PlayerAnswers `json:"roundAnswers"`
}

type RoomSummary struct {
	Id       string    `json:"id"`
	State    GameState `json:"state"`
	Players  int       `json:"players"`
	Capacity int       `json:"capacity"`
}
