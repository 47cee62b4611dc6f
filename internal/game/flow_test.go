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
	"github.com/scythe504/whos-human-backend/internal/humanize"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
)

// quietSettings keep the AIs from speaking so scores depend only on the human.
func quietSettings() Settings {
	s := fastSettings()
	s.FirstMessageDelay = time.Hour
	return s
}

func newTestController(t *testing.T, difficulty internal.Difficulty, ais int, settings Settings) *Controller {
	t.Helper()

	rng := random.NewLocked(1)
	c := NewController(ControllerConfig{
		Store:     lobbyStore(t, difficulty, ais),
		Generator: llm.NewCanned(rng),
		Theme:     testTheme(),
		Settings:  settings,
		Rand:      rng,
		Log:       zap.NewNop(),
		Humanize:  &humanize.Options{MaxWords: 35, MaxChars: 200},
	})
	t.Cleanup(c.Close)
	return c
}

func TestControllerStart(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyMedium, 3, quietSettings())

	require.NoError(t, c.Start(ctx))

	s := c.Store()
	assert.Equal(t, internal.PhaseChat, s.Phase())
	assert.Equal(t, 1, s.Round())
	assert.Equal(t, "Pizza or burgers?", s.Prompt())
	assert.Greater(t, c.TimeRemaining(), int64(0))

	assert.ErrorIs(t, c.Start(ctx), internal.ErrInvalidState)
}

func TestControllerStartNeedsTwoAIs(t *testing.T) {
	c := newTestController(t, internal.DifficultyMedium, 1, quietSettings())

	assert.ErrorIs(t, c.Start(context.Background()), internal.ErrInvalidState)
	assert.Equal(t, internal.PhaseLobby, c.Store().Phase())
}

func TestControllerWrongPhase(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyMedium, 3, quietSettings())

	_, err := c.SubmitMessage(ctx, "hello")
	assert.ErrorIs(t, err, internal.ErrInvalidState)
	assert.ErrorIs(t, c.EndChat(ctx), internal.ErrInvalidState)

	require.NoError(t, c.Start(ctx))

	assert.ErrorIs(t, c.SubmitSuspicion(ctx, "ai-Alex", "Too polished."), internal.ErrInvalidState)
	assert.ErrorIs(t, c.SkipSuspicion(ctx), internal.ErrInvalidState)
	_, err = c.CastVote(ctx, "ai-Alex")
	assert.ErrorIs(t, err, internal.ErrInvalidState)
	assert.ErrorIs(t, c.Advance(ctx), internal.ErrInvalidState)

	require.NoError(t, c.EndChat(ctx))

	_, err = c.SubmitMessage(ctx, "still here")
	assert.ErrorIs(t, err, internal.ErrInvalidState)
	assert.ErrorIs(t, c.EndChat(ctx), internal.ErrInvalidState)
}

func TestControllerChatTimerOpensDiscussion(t *testing.T) {
	tests := []struct {
		difficulty internal.Difficulty
		duration   time.Duration
	}{
		{difficulty: internal.DifficultyHard, duration: 60 * time.Millisecond},
		{difficulty: internal.DifficultyMedium, duration: 100 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(string(tt.difficulty), func(t *testing.T) {
			settings := fastSettings()
			ds := settings.Difficulty[tt.difficulty]
			ds.ChatDuration = tt.duration
			settings.Difficulty[tt.difficulty] = ds

			c := newTestController(t, tt.difficulty, 3, settings)
			started := time.Now()
			require.NoError(t, c.Start(context.Background()))

			require.Eventually(t, func() bool {
				return c.Store().Phase() == internal.PhaseDiscussion
			}, 5*time.Second, time.Millisecond)
			assert.GreaterOrEqual(t, time.Since(started), tt.duration)

			// No AI message lands after the chat closed.
			count := len(c.Store().RoundMessages(1))
			time.Sleep(30 * time.Millisecond)
			assert.Len(t, c.Store().RoundMessages(1), count)
		})
	}
}

func TestControllerDiscussionTimerSkipsHuman(t *testing.T) {
	settings := quietSettings()
	ds := settings.Difficulty[internal.DifficultyMedium]
	ds.DiscussionDuration = 40 * time.Millisecond
	settings.Difficulty[internal.DifficultyMedium] = ds

	ctx := context.Background()
	c := newTestController(t, internal.DifficultyMedium, 3, settings)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.EndChat(ctx))

	require.Eventually(t, func() bool {
		return c.Store().Phase() == internal.PhaseVoting
	}, 5*time.Second, time.Millisecond)

	suspicions := c.Store().Suspicions(1)
	require.Len(t, suspicions, 4)
	assert.Equal(t, internal.HumanParticipantID, suspicions[0].ParticipantID)
	assert.True(t, suspicions[0].Skipped)
}

func TestControllerSubmitSuspicion(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyMedium, 3, quietSettings())
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.EndChat(ctx))

	tests := []struct {
		name      string
		suspect   string
		reasoning string
	}{
		{name: "missing reasoning", suspect: "ai-Alex", reasoning: "  "},
		{name: "long reasoning", suspect: "ai-Alex", reasoning: strings.Repeat("x", internal.MaxReasoningLength+1)},
		{name: "self", suspect: internal.HumanParticipantID, reasoning: "Just checking."},
		{name: "unknown", suspect: "ai-Nobody", reasoning: "Who is this?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.SubmitSuspicion(ctx, tt.suspect, tt.reasoning)
			assert.ErrorIs(t, err, internal.ErrInputRejected)
		})
	}
	require.Equal(t, internal.PhaseDiscussion, c.Store().Phase())

	require.NoError(t, c.SubmitSuspicion(ctx, "ai-Sam", "Too polished to be real."))
	assert.Equal(t, internal.PhaseVoting, c.Store().Phase())

	suspicions := c.Store().Suspicions(1)
	require.Len(t, suspicions, 4)
	assert.Equal(t, "ai-Sam", suspicions[0].SuspectID)

	// Nobody spoke, so every AI names the first other participant in roster order.
	bySpeaker := make(map[string]string)
	for _, sp := range suspicions[1:] {
		bySpeaker[sp.ParticipantID] = sp.SuspectID
	}
	assert.Equal(t, map[string]string{
		"ai-Alex":  "ai-Sam",
		"ai-Sam":   "ai-Alex",
		"ai-Casey": "ai-Alex",
	}, bySpeaker)

	statements := c.Store().RoundMessages(1)
	require.Len(t, statements, 4)
	assert.Equal(t, "I suspect Sam. Too polished to be real.", statements[0].Content)
	assert.Equal(t, internal.MessageKindSuspicion, statements[0].Kind)
	assert.Equal(t, "I suspect Sam. Sam: No participation", statements[1].Content)
}

func TestControllerSkipSuspicion(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyMedium, 2, quietSettings())
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.EndChat(ctx))

	require.NoError(t, c.SkipSuspicion(ctx))

	assert.Equal(t, internal.PhaseVoting, c.Store().Phase())
	for _, m := range c.Store().RoundMessages(1) {
		assert.NotEqual(t, internal.HumanParticipantID, m.ParticipantID)
	}
}

// playRound drives the human through one round and returns the resolution.
func playRound(t *testing.T, c *Controller, lines ...string) internal.RoundResult {
	t.Helper()
	ctx := context.Background()

	for _, line := range lines {
		_, err := c.SubmitMessage(ctx, line)
		require.NoError(t, err)
	}
	require.NoError(t, c.EndChat(ctx))
	require.NoError(t, c.SkipSuspicion(ctx))

	_, err := c.CastVote(ctx, internal.HumanParticipantID)
	require.ErrorIs(t, err, internal.ErrInputRejected)

	res, err := c.CastVote(ctx, c.Store().ActiveAIs()[0].ID)
	require.NoError(t, err)

	_, err = c.CastVote(ctx, c.Store().ActiveAIs()[0].ID)
	require.ErrorIs(t, err, internal.ErrInvalidState)
	return res
}

func TestControllerHumanSurvivesThreeRounds(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyHard, 4, quietSettings())
	events, cancel := c.Store().Subscribe(512)
	defer cancel()

	require.NoError(t, c.Start(ctx))

	for round := 1; round <= internal.TotalRounds; round++ {
		require.Equal(t, round, c.Store().Round())
		require.Equal(t, testTheme().Prompts[round-1], c.Store().Prompt())

		res := playRound(t, c, formalHuman, formalHuman)
		assert.Equal(t, round, res.Round)
		assert.NotEqual(t, internal.HumanParticipantID, res.EliminatedID)

		res2, ok := c.Result()
		require.True(t, ok)
		assert.Equal(t, res, res2)

		require.NoError(t, c.Advance(ctx))
	}

	s := c.Store()
	assert.Equal(t, internal.PhaseReveal, s.Phase())
	assert.Equal(t, internal.Outcome{Over: true, HumanWon: true}, s.Outcome())
	assert.ErrorIs(t, c.Advance(ctx), internal.ErrInvalidState)

	var over *internal.GameOverData
	for over == nil {
		select {
		case ev := <-events:
			if ev.Type == internal.EventGameOver {
				data := ev.Data.(internal.GameOverData)
				over = &data
			}
		case <-time.After(time.Second):
			t.Fatal("no game over event")
		}
	}
	assert.True(t, over.HumanWon)
	assert.Equal(t, internal.TotalRounds, over.RoundsPlayed)
}

func TestControllerHumanEliminated(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyHard, 3, quietSettings())
	require.NoError(t, c.Start(ctx))

	res := playRound(t, c, "yeah lol")

	assert.Equal(t, internal.HumanParticipantID, res.EliminatedID)
	assert.Equal(t, 3, res.Tally[internal.HumanParticipantID])
	require.NotNil(t, res.Record)
	require.NotNil(t, res.Record.Analysis)
	assert.Equal(t, []string{"yeah lol"}, res.Record.Analysis.ExampleMessages)

	s := c.Store()
	assert.Equal(t, internal.Outcome{Over: true}, s.Outcome())
	human, _ := s.Human()
	assert.True(t, human.IsEliminated)
	assert.Equal(t, 1, human.EliminatedInRound)

	require.NoError(t, c.Advance(ctx))
	assert.Equal(t, internal.PhaseReveal, s.Phase())
	assert.Equal(t, 1, s.Round())
}

func TestControllerAdvanceClearsVotes(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyHard, 4, quietSettings())
	require.NoError(t, c.Start(ctx))

	_, err := c.SubmitMessage(ctx, formalHuman)
	require.NoError(t, err)
	_, err = c.SubmitMessage(ctx, formalHuman)
	require.NoError(t, err)
	require.NoError(t, c.EndChat(ctx))
	require.NoError(t, c.SkipSuspicion(ctx))
	assert.ErrorIs(t, c.Advance(ctx), internal.ErrInvalidState, "votes not resolved yet")

	_, err = c.CastVote(ctx, "ai-Alex")
	require.NoError(t, err)
	require.NotEmpty(t, c.Store().Snapshot().Votes)
	require.False(t, c.Store().Outcome().Over)

	require.NoError(t, c.Advance(ctx))
	assert.Empty(t, c.Store().Snapshot().Votes)
	assert.Equal(t, internal.PhaseChat, c.Store().Phase())
	_, ok := c.Result()
	assert.False(t, ok)
}

func TestControllerClose(t *testing.T) {
	ctx := context.Background()
	c := newTestController(t, internal.DifficultyMedium, 3, fastSettings())
	require.NoError(t, c.Start(ctx))

	c.Close()

	_, err := c.SubmitMessage(ctx, "anyone there?")
	assert.Error(t, err)
	assert.ErrorIs(t, c.EndChat(ctx), internal.ErrInvalidState)
}
