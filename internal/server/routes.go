package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/archive"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/themes", s.ThemesHandler).Methods(http.MethodGet)

	r.HandleFunc("/games", s.CreateGameHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/games/{gameId}", s.GetGameHandler).Methods(http.MethodGet)
	r.HandleFunc("/games/{gameId}", s.DeleteGameHandler).Methods(http.MethodDelete, http.MethodOptions)
	r.HandleFunc("/games/{gameId}/start", s.StartGameHandler).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/archive/stats", s.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/archive/{gameId}", s.ArchivedGameHandler).Methods(http.MethodGet)

	r.HandleFunc("/ws/{gameId}", s.HandleWebSocket)

	return r
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS Headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
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

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, time.Now(), http.StatusOK, map[string]any{
		"message": "ok",
		"games":   s.games.Len(),
	})
}

func (s *Server) ThemesHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, time.Now(), http.StatusOK, s.games.Themes())
}

func (s *Server) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var settings internal.GameSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.respond(w, start, http.StatusBadRequest, "invalid request body")
		return
	}

	ctrl, err := s.games.NewGame(settings)
	if err != nil {
		s.respondError(w, start, err)
		return
	}
	s.respond(w, start, http.StatusCreated, ctrl.Store().Snapshot())
}

func (s *Server) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctrl, err := s.games.Get(mux.Vars(r)["gameId"])
	if err != nil {
		s.respondError(w, start, err)
		return
	}
	s.respond(w, start, http.StatusOK, map[string]any{
		"game_state":        ctrl.Store().Snapshot(),
		"time_remaining_ms": ctrl.TimeRemaining(),
	})
}

func (s *Server) StartGameHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctrl, err := s.games.Get(mux.Vars(r)["gameId"])
	if err != nil {
		s.respondError(w, start, err)
		return
	}
	if err := ctrl.Start(r.Context()); err != nil {
		s.respondError(w, start, err)
		return
	}
	s.respond(w, start, http.StatusOK, ctrl.Store().Snapshot())
}

func (s *Server) DeleteGameHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := mux.Vars(r)["gameId"]
	if _, err := s.games.Get(id); err != nil {
		s.respondError(w, start, err)
		return
	}
	s.games.Remove(id)
	s.respond(w, start, http.StatusOK, id)
}

func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.archive == nil {
		s.respond(w, start, http.StatusNotFound, "archive disabled")
		return
	}
	stats, err := s.archive.Stats(r.Context())
	if err != nil {
		s.respondError(w, start, err)
		return
	}
	s.respond(w, start, http.StatusOK, stats)
}

func (s *Server) ArchivedGameHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.archive == nil {
		s.respond(w, start, http.StatusNotFound, "archive disabled")
		return
	}
	summary, err := s.archive.Get(r.Context(), mux.Vars(r)["gameId"])
	if err != nil {
		s.respondError(w, start, err)
		return
	}
	s.respond(w, start, http.StatusOK, summary)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrInputRejected):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrGameNotFound), errors.Is(err, archive.ErrNotArchived):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) respondError(w http.ResponseWriter, start time.Time, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("[API] request failed", zap.Error(err))
	}
	s.respond(w, start, status, err.Error())
}

func (s *Server) respond(w http.ResponseWriter, start time.Time, status int, data any) {
	end := time.Now()
	resp := internal.Response{
		StatusCode:    status,
		RespStartTime: start.UnixMilli(),
		RespEndTime:   end.UnixMilli(),
		NetRespTime:   end.Sub(start).Milliseconds(),
		Data:          data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("[API] error encoding response", zap.Error(err))
	}
}
