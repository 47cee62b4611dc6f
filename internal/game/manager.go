package game

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/content"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/store"
)

const (
	maxPlayerNameLength = 20
	defaultTheme        = "cafe-talk"

	defaultIdleTimeout = 2 * time.Minute
	defaultFinishedTTL = 5 * time.Minute
)

// =============================================================================
// GAME MANAGEMENT
// =============================================================================

type ManagerConfig struct {
	Generator      llm.Generator
	Catalog        *content.Catalog
	Settings       Settings
	Rand           random.Source
	Log            *zap.Logger
	AIParticipants int
	// OnCreate runs for every new game before it is returned, e.g. to attach an archiver.
	OnCreate func(*Controller)
	// IdleTimeout is how long a game with no attached client survives.
	IdleTimeout time.Duration
	// FinishedTTL is how long a game is kept after game over.
	FinishedTTL time.Duration
}

// Manager owns every live game.
type Manager struct {
	cfg ManagerConfig

	mu    sync.RWMutex
	games map[string]*entry
}

// entry tracks the clients attached to a game and its pending removal.
type entry struct {
	ctrl     *Controller
	clients  int
	finished bool
	reap     *time.Timer
	// gen invalidates timers that already fired but lost the race to a reschedule.
	gen int
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.AIParticipants == 0 {
		cfg.AIParticipants = 4
	}
	if cfg.Catalog == nil {
		cfg.Catalog = content.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.FinishedTTL <= 0 {
		cfg.FinishedTTL = defaultFinishedTTL
	}
	return &Manager{cfg: cfg, games: make(map[string]*entry)}
}

// NewGame validates the settings, casts the participants and registers a game in
// the lobby phase.
func (m *Manager) NewGame(settings internal.GameSettings) (*Controller, error) {
	settings.PlayerName = strings.TrimSpace(settings.PlayerName)
	if settings.PlayerName == "" || utf8.RuneCountInString(settings.PlayerName) > maxPlayerNameLength {
		return nil, fmt.Errorf("%w: player name must be 1-%d characters", internal.ErrInputRejected, maxPlayerNameLength)
	}
	if settings.Difficulty == "" {
		settings.Difficulty = internal.DifficultyMedium
	}
	if !settings.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", internal.ErrInputRejected, settings.Difficulty)
	}
	if settings.Pace == "" {
		settings.Pace = internal.PaceNormal
	}
	if !settings.Pace.Valid() {
		return nil, fmt.Errorf("%w: unknown pace %q", internal.ErrInputRejected, settings.Pace)
	}
	if settings.Theme == "" {
		settings.Theme = defaultTheme
	}
	theme, ok := m.cfg.Catalog.Theme(settings.Theme)
	if !ok {
		return nil, fmt.Errorf("%w: unknown theme %q", internal.ErrInputRejected, settings.Theme)
	}

	roster, err := m.cfg.Catalog.Cast(settings.PlayerName, m.cfg.AIParticipants, m.cfg.Rand)
	if err != nil {
		return nil, err
	}

	s := store.NewGameStore(uuid.NewString(), settings)
	if err := s.SetParticipants(roster); err != nil {
		return nil, err
	}
	id := s.ID()

	ctrl := NewController(ControllerConfig{
		Store:      s,
		Generator:  m.cfg.Generator,
		Theme:      theme,
		Settings:   m.cfg.Settings,
		Rand:       m.cfg.Rand,
		Log:        m.cfg.Log,
		OnGameOver: func() { m.finish(id) },
	})
	if m.cfg.OnCreate != nil {
		m.cfg.OnCreate(ctrl)
	}

	e := &entry{ctrl: ctrl}
	m.mu.Lock()
	m.games[id] = e
	// A game nobody connects to is reaped like an abandoned one.
	m.scheduleLocked(id, e, m.cfg.IdleTimeout)
	m.mu.Unlock()

	m.cfg.Log.Info("[NewGame] created game",
		zap.String("game", s.ID()),
		zap.String("difficulty", string(settings.Difficulty)),
		zap.String("pace", string(settings.Pace)),
		zap.String("theme", theme.ID),
		zap.Int("participants", len(roster)))
	return ctrl, nil
}

func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.games[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", internal.ErrGameNotFound, id)
	}
	return e.ctrl, nil
}

// Attach registers a client on a game and cancels any pending removal. The
// returned release detaches it; the game is removed IdleTimeout after its last
// client leaves.
func (m *Manager) Attach(id string) (*Controller, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.games[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", internal.ErrGameNotFound, id)
	}
	e.clients++
	if !e.finished {
		m.stopLocked(e)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			e.clients--
			if e.clients > 0 || m.games[id] != e || e.finished {
				return
			}
			m.cfg.Log.Info("[CleanupGame] last client left", zap.String("game", id))
			m.scheduleLocked(id, e, m.cfg.IdleTimeout)
		})
	}
	return e.ctrl, release, nil
}

// finish schedules removal of a game that reached its reveal.
func (m *Manager) finish(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.games[id]
	if !ok {
		return
	}
	e.finished = true
	m.scheduleLocked(id, e, m.cfg.FinishedTTL)
}

func (m *Manager) scheduleLocked(id string, e *entry, after time.Duration) {
	m.stopLocked(e)
	gen := e.gen
	e.reap = time.AfterFunc(after, func() { m.reap(id, e, gen) })
}

func (m *Manager) stopLocked(e *entry) {
	e.gen++
	if e.reap != nil {
		e.reap.Stop()
		e.reap = nil
	}
}

// reap removes e unless a client reattached or the game was replaced meanwhile.
func (m *Manager) reap(id string, e *entry, gen int) {
	m.mu.Lock()
	if m.games[id] != e || e.gen != gen || (e.clients > 0 && !e.finished) {
		m.mu.Unlock()
		return
	}
	delete(m.games, id)
	m.mu.Unlock()

	e.ctrl.Close()
	m.cfg.Log.Info("[CleanupGame] game reaped",
		zap.String("game", id),
		zap.Bool("finished", e.finished))
}

// Remove closes a game and forgets it.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	e, ok := m.games[id]
	if ok {
		m.stopLocked(e)
		delete(m.games, id)
	}
	m.mu.Unlock()

	if ok {
		e.ctrl.Close()
		m.cfg.Log.Info("[CleanupGame] game removed", zap.String("game", id))
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// Themes lists the themes games can be created with.
func (m *Manager) Themes() []content.Theme {
	return m.cfg.Catalog.Themes
}

// Close shuts every game down.
func (m *Manager) Close() {
	m.mu.Lock()
	games := m.games
	m.games = make(map[string]*entry)
	for _, e := range games {
		m.stopLocked(e)
	}
	m.mu.Unlock()

	for _, e := range games {
		e.ctrl.Close()
	}
}
