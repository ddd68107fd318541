package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 256
)

// Session is one websocket connection. Its id doubles as the player id.
type Session struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	// Only touched by the read loop goroutine
	roomID string

	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, limiter *rate.Limiter) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (s *Session) ID() string {
	return s.id
}

// enqueue queues data for the write pump. A full buffer closes the session.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- data:
		return true
	case <-s.done:
		return false
	default:
		s.close()
		return false
	}
}

func (s *Session) sendMessage(msg internal.Message[any]) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Str("type", msg.Type).Msg("[Session.sendMessage] failed to encode message")
		return
	}
	s.enqueue(data)
}

func (s *Session) sendError(message, code string) {
	s.sendMessage(internal.NewMessage(internal.EventError, internal.ErrorData{Message: message, Code: code}))
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("session", s.id).Msg("[Session.writePump] write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// readLoop feeds every inbound frame to handle until the connection drops.
func (s *Session) readLoop(handle func([]byte)) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", s.id).Msg("[Session.readLoop] unexpected close")
			}
			return
		}
		handle(raw)
	}
}
