package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
)

func newTestManager(t *testing.T, onCreate func(*Controller), opts ...func(*ManagerConfig)) *Manager {
	t.Helper()

	rng := random.NewLocked(1)
	cfg := ManagerConfig{
		Generator: llm.NewCanned(rng),
		Settings:  quietSettings(),
		Rand:      rng,
		Log:       zap.NewNop(),
		OnCreate:  onCreate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(m.Close)
	return m
}

func TestManagerNewGameDefaults(t *testing.T) {
	var created *Controller
	m := newTestManager(t, func(c *Controller) { created = c })

	ctrl, err := m.NewGame(internal.GameSettings{PlayerName: "  Jordan  "})
	require.NoError(t, err)
	assert.Same(t, ctrl, created)

	settings := ctrl.Store().Settings()
	assert.Equal(t, "Jordan", settings.PlayerName)
	assert.Equal(t, internal.DifficultyMedium, settings.Difficulty)
	assert.Equal(t, internal.PaceNormal, settings.Pace)
	assert.Equal(t, "cafe-talk", settings.Theme)

	participants := ctrl.Store().Participants()
	assert.Len(t, participants, 5)
	human, ok := ctrl.Store().Human()
	require.True(t, ok)
	assert.Equal(t, "Jordan", human.Name)
	assert.Equal(t, internal.PhaseLobby, ctrl.Store().Phase())

	got, err := m.Get(ctrl.Store().ID())
	require.NoError(t, err)
	assert.Same(t, ctrl, got)
	assert.Equal(t, 1, m.Len())
}

func TestManagerNewGameValidation(t *testing.T) {
	m := newTestManager(t, nil)

	tests := []struct {
		name     string
		settings internal.GameSettings
	}{
		{name: "empty name", settings: internal.GameSettings{PlayerName: " "}},
		{name: "long name", settings: internal.GameSettings{PlayerName: strings.Repeat("n", 21)}},
		{name: "difficulty", settings: internal.GameSettings{PlayerName: "Jo", Difficulty: "impossible"}},
		{name: "pace", settings: internal.GameSettings{PlayerName: "Jo", Pace: "glacial"}},
		{name: "theme", settings: internal.GameSettings{PlayerName: "Jo", Theme: "no-such-theme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.NewGame(tt.settings)
			assert.ErrorIs(t, err, internal.ErrInputRejected)
		})
	}
	assert.Zero(t, m.Len())
}

func TestManagerGetAndRemove(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.Get("missing")
	assert.ErrorIs(t, err, internal.ErrGameNotFound)

	ctrl, err := m.NewGame(internal.GameSettings{PlayerName: "Jordan", Difficulty: internal.DifficultyHard})
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(context.Background()))

	m.Remove(ctrl.Store().ID())
	m.Remove(ctrl.Store().ID())

	_, err = m.Get(ctrl.Store().ID())
	assert.ErrorIs(t, err, internal.ErrGameNotFound)
	assert.ErrorIs(t, ctrl.EndChat(context.Background()), internal.ErrInvalidState)
}

func TestManagerThemes(t *testing.T) {
	m := newTestManager(t, nil)

	themes := m.Themes()
	require.NotEmpty(t, themes)
	ids := make([]string, len(themes))
	for i, th := range themes {
		ids[i] = th.ID
	}
	assert.Contains(t, ids, "cafe-talk")
}

func withTimeouts(idle, finished time.Duration) func(*ManagerConfig) {
	return func(cfg *ManagerConfig) {
		cfg.IdleTimeout = idle
		cfg.FinishedTTL = finished
	}
}

func TestManagerReapsUnattachedGame(t *testing.T) {
	m := newTestManager(t, nil, withTimeouts(20*time.Millisecond, time.Hour))

	ctrl, err := m.NewGame(internal.GameSettings{PlayerName: "Jordan"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, err = m.Get(ctrl.Store().ID())
	assert.ErrorIs(t, err, internal.ErrGameNotFound)
	require.Eventually(t, func() bool { return storeClosed(ctrl) }, 2*time.Second, 5*time.Millisecond)
}

// storeClosed reports whether the game's store has ended its subscriptions.
func storeClosed(ctrl *Controller) bool {
	events, cancel := ctrl.Store().Subscribe(1)
	defer cancel()
	select {
	case _, open := <-events:
		return !open
	default:
		return false
	}
}

func TestManagerKeepsAttachedGame(t *testing.T) {
	m := newTestManager(t, nil, withTimeouts(50*time.Millisecond, time.Hour))

	ctrl, err := m.NewGame(internal.GameSettings{PlayerName: "Jordan"})
	require.NoError(t, err)
	id := ctrl.Store().ID()

	got, release, err := m.Attach(id)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)

	_, second, err := m.Attach(id)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, m.Len())

	release()
	release()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, m.Len(), "one client is still attached")

	second()
	require.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	_, _, err = m.Attach(id)
	assert.ErrorIs(t, err, internal.ErrGameNotFound)
}

func TestManagerReattachCancelsRemoval(t *testing.T) {
	m := newTestManager(t, nil, withTimeouts(200*time.Millisecond, time.Hour))

	ctrl, err := m.NewGame(internal.GameSettings{PlayerName: "Jordan"})
	require.NoError(t, err)
	id := ctrl.Store().ID()

	_, release, err := m.Attach(id)
	require.NoError(t, err)
	release()

	time.Sleep(20 * time.Millisecond)
	_, release, err = m.Attach(id)
	require.NoError(t, err)
	defer release()

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, m.Len())
}

func TestManagerReapsFinishedGame(t *testing.T) {
	m := newTestManager(t, nil, withTimeouts(time.Hour, 20*time.Millisecond))

	ctrl, err := m.NewGame(internal.GameSettings{PlayerName: "Jordan", Difficulty: internal.DifficultyHard})
	require.NoError(t, err)
	id := ctrl.Store().ID()

	_, release, err := m.Attach(id)
	require.NoError(t, err)
	defer release()

	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))
	_, err = ctrl.SubmitMessage(ctx, "yeah lol")
	require.NoError(t, err)
	require.NoError(t, ctrl.EndChat(ctx))
	require.NoError(t, ctrl.SkipSuspicion(ctx))
	_, err = ctrl.CastVote(ctx, ctrl.Store().ActiveAIs()[0].ID)
	require.NoError(t, err)
	require.True(t, ctrl.Store().Outcome().Over)

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 1, m.Len(), "kept until the reveal")

	require.NoError(t, ctrl.Advance(ctx))
	require.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return storeClosed(ctrl) }, 2*time.Second, 5*time.Millisecond)
}
