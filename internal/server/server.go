package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/database"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/game"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/websocket"
)

type Server struct {
	port           int
	allowedOrigins []string

	engine *game.Engine
	db     database.Service
	ws     http.Handler
}

type Options struct {
	Port           int
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

func New(engine *game.Engine, hub *websocket.Hub, db database.Service, opts Options) *Server {
	if db == nil {
		db = database.Noop{}
	}
	return &Server{
		port:           opts.Port,
		allowedOrigins: opts.AllowedOrigins,
		engine:         engine,
		db:             db,
		ws: websocket.NewHandler(engine, hub, websocket.HandlerConfig{
			AllowedOrigins: opts.AllowedOrigins,
			RateLimit:      opts.RateLimit,
			RateBurst:      opts.RateBurst,
		}),
	}
}

// HTTPServer wraps the routes in an *http.Server listening on the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
