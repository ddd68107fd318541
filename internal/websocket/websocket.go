package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/game"
)

const (
	codeBadRequest  = "bad_request"
	codeRateLimited = "rate_limited"
)

var validate = validator.New()

var errEmptyPayload = errors.New("empty payload")

// =============================================================================
// INBOUND PAYLOADS
// =============================================================================

type createRoomRequest struct {
	PlayerName string `json:"playerName" validate:"max=64"`
}

type joinRoomRequest struct {
	RoomId     string `json:"roomId" validate:"required,alphanum,max=16"`
	PlayerName string `json:"playerName" validate:"max=64"`
}

type voteRequest struct {
	AnswerId string `json:"answerId" validate:"required,max=128"`
	IsValid  bool   `json:"isValid"`
}

type HandlerConfig struct {
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// Handler upgrades HTTP requests to websocket sessions and feeds their
// messages to the game engine.
type Handler struct {
	engine   *game.Engine
	hub      *Hub
	upgrader websocket.Upgrader

	rateLimit rate.Limit
	rateBurst int
}

func NewHandler(engine *game.Engine, hub *Hub, cfg HandlerConfig) *Handler {
	h := &Handler{
		engine:    engine,
		hub:       hub,
		rateLimit: rate.Limit(cfg.RateLimit),
		rateBurst: cfg.RateBurst,
	}
	if h.rateLimit <= 0 {
		h.rateLimit = rate.Limit(10)
	}
	if h.rateBurst <= 0 {
		h.rateBurst = 20
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker accepts every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.ContainsFunc(allowed, func(o string) bool {
			return strings.EqualFold(strings.TrimSuffix(o, "/"), u.Scheme+"://"+u.Host)
		})
	}
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("[Handler.ServeHTTP] upgrade failed")
		return
	}

	s := newSession(uuid.NewString(), conn, rate.NewLimiter(h.rateLimit, h.rateBurst))
	log.Info().Str("session", s.id).Str("remote", r.RemoteAddr).Msg("[Handler.ServeHTTP] client connected")

	go s.writePump()
	s.readLoop(func(raw []byte) { h.dispatch(s, raw) })

	h.leaveRoom(s)
	s.close()
	log.Info().Str("session", s.id).Msg("[Handler.ServeHTTP] client disconnected")
}

// leaveRoom removes the session's player from its current room, if any.
func (h *Handler) leaveRoom(s *Session) {
	if s.roomID == "" {
		return
	}
	roomID := s.roomID
	s.roomID = ""

	h.hub.Leave(s, roomID)
	out := h.engine.Leave(s.id, roomID)
	h.hub.Broadcast(roomID, out.Broadcast...)
}

func (h *Handler) deliver(s *Session, out game.Outcome) {
	for _, msg := range out.Reply {
		s.sendMessage(msg)
	}
	if out.RoomID != "" {
		h.hub.Broadcast(out.RoomID, out.Broadcast...)
	}
}

func (h *Handler) fail(s *Session, eventType string, err error) {
	var gameErr *internal.GameError
	if errors.As(err, &gameErr) {
		log.Debug().Str("session", s.id).Str("type", eventType).Str("code", internal.ErrorCode(err)).Msg(gameErr.Message)
		s.sendError(gameErr.Message, internal.ErrorCode(err))
		return
	}

	log.Error().Err(err).Str("session", s.id).Str("type", eventType).Msg("[Handler.fail] unexpected error")
	s.sendError("Erro interno", internal.ErrorCode(err))
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 || string(raw) == "null" {
		return payload, errEmptyPayload
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func decodeStruct[T any](raw json.RawMessage) (T, error) {
	payload, err := decodePayload[T](raw)
	if err != nil {
		return payload, err
	}
	if err := validate.Struct(payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// dispatch routes one inbound frame by its event type.
func (h *Handler) dispatch(s *Session, raw []byte) {
	if !s.limiter.Allow() {
		s.sendError("Muitas mensagens, aguarde um pouco", codeRateLimited)
		return
	}

	var msg internal.Message[json.RawMessage]
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("session", s.id).Msg("[Handler.dispatch] malformed message")
		s.sendError("Mensagem inválida", codeBadRequest)
		return
	}

	log.Debug().Str("session", s.id).Str("type", msg.Type).Str("room", s.roomID).Msg("[Handler.dispatch] received")

	out, err := h.route(s, msg)
	if err != nil {
		var badRequest *badRequestError
		if errors.As(err, &badRequest) {
			log.Debug().Err(badRequest.err).Str("session", s.id).Str("type", msg.Type).Msg("[Handler.dispatch] bad payload")
			s.sendError(badRequest.Error(), codeBadRequest)
			return
		}
		h.fail(s, msg.Type, err)
		return
	}
	h.deliver(s, out)
}

type badRequestError struct {
	eventType string
	err       error
}

func (e *badRequestError) Error() string {
	return fmt.Sprintf("Dados inválidos para %s", e.eventType)
}

func (e *badRequestError) Unwrap() error {
	return e.err
}

func (h *Handler) route(s *Session, msg internal.Message[json.RawMessage]) (game.Outcome, error) {
	bad := func(err error) (game.Outcome, error) {
		return game.Outcome{}, &badRequestError{eventType: msg.Type, err: err}
	}

	switch msg.Type {
	case internal.EventCreateRoom:
		req, err := decodeStruct[createRoomRequest](msg.Data)
		if err != nil && !errors.Is(err, errEmptyPayload) {
			return bad(err)
		}
		h.leaveRoom(s)
		out, err := h.engine.CreateRoom(s.id, req.PlayerName)
		if err != nil {
			return out, err
		}
		h.subscribe(s, out.RoomID)
		return out, nil

	case internal.EventJoinRoom:
		req, err := decodeStruct[joinRoomRequest](msg.Data)
		if err != nil {
			return bad(err)
		}
		if s.roomID != "" && strings.EqualFold(s.roomID, req.RoomId) {
			h.hub.Leave(s, s.roomID)
			s.roomID = ""
		} else {
			h.leaveRoom(s)
		}
		out, err := h.engine.JoinRoom(s.id, req.RoomId, req.PlayerName)
		if err != nil {
			return out, err
		}
		h.subscribe(s, out.RoomID)
		return out, nil

	case internal.EventPlayerReady:
		ready, err := decodePayload[bool](msg.Data)
		if err != nil {
			return bad(err)
		}
		return h.engine.SetReady(s.id, s.roomID, ready)

	case internal.EventConfigureGame:
		patch, err := decodeStruct[internal.ConfigPatch](msg.Data)
		if err != nil {
			return bad(err)
		}
		return h.engine.Configure(s.id, s.roomID, patch)

	case internal.EventStartGame:
		return h.engine.StartGame(s.id, s.roomID)

	case internal.EventSubmitAnswers:
		answers, err := decodePayload[map[string]string](msg.Data)
		if err != nil {
			return bad(err)
		}
		if err := validate.Var(answers, "max=32,dive,keys,max=32,endkeys,max=100"); err != nil {
			return bad(err)
		}
		return h.engine.SubmitAnswers(s.id, s.roomID, answers)

	case internal.EventCallStop:
		return h.engine.CallStop(s.id, s.roomID)

	case internal.EventNextRound:
		return h.engine.NextRound(s.id, s.roomID)

	case internal.EventRestartGame:
		return h.engine.RestartGame(s.id, s.roomID)

	case internal.EventVoteAnswer:
		req, err := decodeStruct[voteRequest](msg.Data)
		if err != nil {
			return bad(err)
		}
		return h.engine.Vote(s.id, s.roomID, req.AnswerId, req.IsValid)

	case internal.EventFinishVoting:
		return h.engine.FinishVoting(s.id, s.roomID)

	case internal.EventSendMessage:
		text, err := decodePayload[string](msg.Data)
		if err != nil {
			return bad(err)
		}
		if err := validate.Var(text, "max=500"); err != nil {
			return bad(err)
		}
		return h.engine.SendMessage(s.id, s.roomID, text)

	default:
		return bad(fmt.Errorf("unknown event %q", msg.Type))
	}
}

func (h *Handler) subscribe(s *Session, roomID string) {
	s.roomID = roomID
	h.hub.Join(s, roomID)
}
