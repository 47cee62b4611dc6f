package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal/archive"
	"github.com/scythe504/whos-human-backend/internal/game"
)

type Server struct {
	games   *game.Manager
	archive *archive.Archive
	log     *zap.Logger
}

// NewServer wires the HTTP API. archive may be nil.
func NewServer(addr string, games *game.Manager, arch *archive.Archive, log *zap.Logger) *http.Server {
	s := &Server{games: games, archive: arch, log: log}

	return &http.Server{
		Addr:         addr,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
