package internal

type Message[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// Inbound event names
const (
	EventCreateRoom    = "create_room"
	EventJoinRoom      = "join_room"
	EventPlayerReady   = "player_ready"
	EventConfigureGame = "configure_game"
	EventStartGame     = "start_game"
	EventSubmitAnswers = "submit_answers"
	EventCallStop      = "call_stop"
	EventNextRound     = "next_round"
	EventRestartGame   = "restart_game"
	EventVoteAnswer    = "vote_answer"
	EventFinishVoting  = "finish_voting"
	EventSendMessage   = "send_message"
)

// Outbound event names
const (
	EventRoomCreated     = "room_created"
	EventRoomJoined      = "room_joined"
	EventGameUpdate      = "game_update"
	EventChatMessage     = "chat_message"
	EventRoundStarting   = "round_starting"
	EventLetterRevealed  = "letter_revealed"
	EventVotingStarted   = "voting_started"
	EventPlayerSubmitted = "player_submitted"
	EventStopCalled      = "stop_called"
	EventRoundEnded      = "round_ended"
	EventGameFinished    = "game_finished"
	EventGameRestarted   = "game_restarted"
	EventError           = "error"
)

func NewMessage(eventType string, data any) Message[any] {
	return Message[any]{Type: eventType, Data: data}
}

type RoomJoinedData struct {
	Room   GameStateData `json:"room"`
	Player Player        `json:"player"`
}

type RoundStartingData struct {
	Round       int `json:"round"`
	TotalRounds int `json:"totalRounds"`
}

type LetterRevealedData struct {
	Letter    string `json:"letter"`
	TimeLimit int    `json:"timeLimit"`
}

type VotingStartedData struct {
	Answers map[string]VotingEntry `json:"answers"`
}

type PlayerSubmittedData struct {
	PlayerId   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type StopCalledData struct {
	CallerId   string `json:"callerId"`
	CallerName string `json:"callerName"`
}

type RoundEndedData struct {
	Answers       map[string]PlayerAnswers `json:"answers"`
	Scores        map[string]int           `json:"scores"`
	TotalScores   map[string]int           `json:"totalScores"`
	VotingResults map[string]VotingEntry   `json:"votingResults"`
}

type GameFinishedData struct {
	Ranking []RankingEntry `json:"ranking"`
	Winner  RankingEntry   `json:"winner"`
}

type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
