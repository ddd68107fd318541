package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/arl/statsviz"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal/database"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{roomId}", s.GetRoom).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/matches", s.GetRecentMatches).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/ws", s.ws)

	if viz, err := statsviz.NewServer(); err != nil {
		log.Warn().Err(err).Msg("[RegisterRoutes] statsviz disabled")
	} else {
		r.Methods(http.MethodGet).Path("/debug/statsviz/ws").HandlerFunc(viz.Ws())
		r.Methods(http.MethodGet).PathPrefix("/debug/statsviz/").Handler(viz.Index())
	}

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin(r.Header.Get("Origin")))
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if len(s.allowedOrigins) == 0 || slices.Contains(s.allowedOrigins, "*") {
		return "*"
	}
	if slices.Contains(s.allowedOrigins, origin) {
		return origin
	}
	return s.allowedOrigins[0]
}

func writeResponse(w http.ResponseWriter, startTime int64, status int, data any) {
	endTime := time.Now().UnixMilli()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: startTime,
		RespEndTime:   endTime,
		NetRespTime:   endTime - startTime,
		Data:          data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("[writeResponse] error encoding response")
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	health := map[string]any{
		"status":   "up",
		"rooms":    s.engine.Registry().Len(),
		"database": s.db.Health(r.Context()),
	}
	writeResponse(w, startTime, http.StatusOK, health)
}

// GetRoom tells a client whether a room code can be joined.
func (s *Server) GetRoom(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()
	roomId := mux.Vars(r)["roomId"]

	summary, err := s.engine.Summary(roomId)
	if err != nil {
		if errors.Is(err, internal.ErrNotFound) {
			writeResponse(w, startTime, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("room", roomId).Msg("[GetRoom] lookup failed")
		writeResponse(w, startTime, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeResponse(w, startTime, http.StatusOK, summary)
}

func (s *Server) GetRecentMatches(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now().UnixMilli()

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > database.MaxRecentMatches {
			writeResponse(w, startTime, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	matches, err := s.db.RecentMatches(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("[GetRecentMatches] query failed")
		writeResponse(w, startTime, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeResponse(w, startTime, http.StatusOK, matches)
}
