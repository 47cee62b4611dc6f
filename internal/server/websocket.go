package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/game"
)

const eventBuffer = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// =============================================================================
// WEBSOCKET CONNECTION HANDLING
// =============================================================================

// client serializes writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) SafeWriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleWebSocket attaches the human's browser to a game: store events go out, user
// actions come in.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]
	ctrl, release, err := s.games.Attach(gameID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		release()
		s.log.Warn("[HandleWebSocket] upgrade failed", zap.String("game", gameID), zap.Error(err))
		return
	}
	c := &client{conn: conn}

	events, cancel := ctrl.Store().Subscribe(eventBuffer)
	defer func() {
		cancel()
		conn.Close()
		release()
		s.log.Info("[HandleWebSocket] connection closed", zap.String("game", gameID))
	}()

	welcome := internal.Envelope[any]{Type: internal.EventGameState, Data: ctrl.Store().Snapshot()}
	if err := c.SafeWriteJSON(welcome); err != nil {
		s.log.Warn("[HandleWebSocket] failed to send state", zap.String("game", gameID), zap.Error(err))
		return
	}

	go func() {
		for evt := range events {
			if err := c.SafeWriteJSON(evt); err != nil {
				s.log.Warn("[HandleWebSocket] write failed", zap.String("game", gameID), zap.Error(err))
				return
			}
		}
	}()

	s.handleMessages(r.Context(), c, ctrl)
}

// handleMessages reads actions until the connection drops.
func (s *Server) handleMessages(ctx context.Context, c *client, ctrl *game.Controller) {
	gameID := ctrl.Store().ID()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			s.log.Debug("[handleMessages] read error", zap.String("game", gameID), zap.Error(err))
			return
		}

		var msg internal.Envelope[json.RawMessage]
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.log.Warn("[handleMessages] failed to parse message", zap.String("game", gameID), zap.Error(err))
			continue
		}
		s.log.Debug("[handleMessages] received action", zap.String("game", gameID), zap.String("type", msg.Type))

		if err := dispatch(ctx, ctrl, msg); err != nil {
			s.log.Info("[handleMessages] action rejected",
				zap.String("game", gameID),
				zap.String("type", msg.Type),
				zap.Error(err))
			reply := internal.Envelope[any]{Type: internal.EventErrorMessage, Data: internal.ErrorData{Message: err.Error()}}
			if err := c.SafeWriteJSON(reply); err != nil {
				return
			}
		}
	}
}

// dispatch routes one client action to the controller.
func dispatch(ctx context.Context, ctrl *game.Controller, msg internal.Envelope[json.RawMessage]) error {
	switch msg.Type {
	case internal.ActionStart:
		return ctrl.Start(ctx)

	case internal.ActionChat:
		var text string
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			return fmt.Errorf("%w: chat payload: %v", internal.ErrInputRejected, err)
		}
		_, err := ctrl.SubmitMessage(ctx, text)
		return err

	case internal.ActionEndChat:
		return ctrl.EndChat(ctx)

	case internal.ActionSuspect:
		var action internal.SuspicionAction
		if err := json.Unmarshal(msg.Data, &action); err != nil {
			return fmt.Errorf("%w: suspicion payload: %v", internal.ErrInputRejected, err)
		}
		return ctrl.SubmitSuspicion(ctx, action.SuspectID, action.Reasoning)

	case internal.ActionSkip:
		return ctrl.SkipSuspicion(ctx)

	case internal.ActionVote:
		var action internal.VoteAction
		if err := json.Unmarshal(msg.Data, &action); err != nil {
			return fmt.Errorf("%w: vote payload: %v", internal.ErrInputRejected, err)
		}
		_, err := ctrl.CastVote(ctx, action.TargetID)
		return err

	case internal.ActionProceed:
		return ctrl.Advance(ctx)
	}
	return fmt.Errorf("%w: unknown action %q", internal.ErrInputRejected, msg.Type)
}
