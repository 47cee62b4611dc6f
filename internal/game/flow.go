package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/content"
	"github.com/scythe504/whos-human-backend/internal/humanize"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/scoring"
	"github.com/scythe504/whos-human-backend/internal/store"
)

// =============================================================================
// GAME FLOW - PHASE CONTROLLER
// =============================================================================

type ControllerConfig struct {
	Store     *store.GameStore
	Generator llm.Generator
	Theme     content.Theme
	Settings  Settings
	Rand      random.Source
	Log       *zap.Logger
	// Humanize defaults to humanize.DefaultOptions.
	Humanize *humanize.Options
	// OnGameOver runs once the reveal is published. It must not call back into the
	// controller.
	OnGameOver func()
}

// Controller drives one game through lobby, chat, discussion, voting and reveal.
// Every transition goes through it; the store only validates and records.
type Controller struct {
	store      *store.GameStore
	sched      *Scheduler
	resolver   *Resolver
	timer      *PhaseTimer
	theme      content.Theme
	difficulty DifficultySettings
	log        *zap.Logger
	onGameOver func()

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	result *internal.RoundResult
	closed bool
}

func NewController(cfg ControllerConfig) *Controller {
	opts := humanize.DefaultOptions()
	if cfg.Humanize != nil {
		opts = *cfg.Humanize
	}
	log := cfg.Log.With(zap.String("game", cfg.Store.ID()))
	difficulty := cfg.Settings.ForDifficulty(cfg.Store.Settings().Difficulty)

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store: cfg.Store,
		sched: NewScheduler(SchedulerConfig{
			Store:     cfg.Store,
			Generator: cfg.Generator,
			Humanizer: humanize.New(cfg.Rand, opts),
			Rand:      cfg.Rand,
			Log:       log,
			Settings:  cfg.Settings,
		}),
		resolver:   NewResolver(scoring.NewScorer(), cfg.Rand, difficulty, log),
		timer:      NewPhaseTimer(cfg.Store, log, cfg.Settings.TimerTick),
		theme:      cfg.Theme,
		difficulty: difficulty,
		log:        log,
		onGameOver: cfg.OnGameOver,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *Controller) Store() *store.GameStore {
	return c.store
}

// Result returns the resolution of the current round, if votes were resolved.
func (c *Controller) Result() (internal.RoundResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return internal.RoundResult{}, false
	}
	return *c.result, true
}

// TimeRemaining is the countdown of the current phase.
func (c *Controller) TimeRemaining() int64 {
	return c.timer.TimeRemaining().Milliseconds()
}

// Start moves the game from the lobby into round 1.
func (c *Controller) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(internal.PhaseLobby); err != nil {
		return err
	}
	if len(c.store.ActiveAIs()) < internal.MinAIParticipants {
		return fmt.Errorf("%w: need at least %d AI participants", internal.ErrInvalidState, internal.MinAIParticipants)
	}
	if err := c.store.SetRound(1, c.theme.Prompt(1)); err != nil {
		return err
	}
	if err := c.store.SetPhase(internal.PhaseChat); err != nil {
		return err
	}

	c.log.Info("[StartGame] game started", zap.String("theme", c.theme.ID))
	return c.startChatLocked(1)
}

func (c *Controller) startChatLocked(round int) error {
	c.result = nil
	if err := c.sched.Start(c.ctx, round); err != nil {
		return err
	}
	c.timer.Start(internal.PhaseChat, c.difficulty.ChatDuration, func() {
		c.onChatExpired(round)
	})
	c.log.Info("[StartChatPhase] chat open",
		zap.Int("round", round),
		zap.Duration("duration", c.difficulty.ChatDuration))
	return nil
}

// =============================================================================
// CHAT
// =============================================================================

// SubmitMessage appends a human chat line. Only valid while chat is open.
func (c *Controller) SubmitMessage(ctx context.Context, text string) (internal.Message, error) {
	if err := ctx.Err(); err != nil {
		return internal.Message{}, err
	}
	if phase := c.store.Phase(); phase != internal.PhaseChat {
		return internal.Message{}, fmt.Errorf("%w: cannot chat during %s", internal.ErrInvalidState, phase)
	}
	return c.sched.SubmitHuman(text)
}

// EndChat closes the chat phase early and opens discussion.
func (c *Controller) EndChat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endChatLocked(c.store.Round())
}

func (c *Controller) onChatExpired(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.store.Round() != round || c.store.Phase() != internal.PhaseChat {
		return
	}
	c.log.Info("[ChatTimer] chat time is up", zap.Int("round", round))
	if err := c.endChatLocked(round); err != nil {
		c.log.Error("[ChatTimer] could not end chat", zap.Int("round", round), zap.Error(err))
	}
}

func (c *Controller) endChatLocked(round int) error {
	if err := c.checkLocked(internal.PhaseChat); err != nil {
		return err
	}

	c.timer.Cancel()
	c.sched.Stop()

	if err := c.store.SetPhase(internal.PhaseDiscussion); err != nil {
		return err
	}
	c.timer.Start(internal.PhaseDiscussion, c.difficulty.DiscussionDuration, func() {
		c.onDiscussionExpired(round)
	})
	c.log.Info("[StartDiscussionPhase] discussion open", zap.Int("round", round))
	return nil
}

// =============================================================================
// DISCUSSION
// =============================================================================

// SubmitSuspicion records the human's suspicion, then collects the AI statements and
// opens voting.
func (c *Controller) SubmitSuspicion(ctx context.Context, suspectID, reasoning string) error {
	reasoning = strings.TrimSpace(reasoning)
	if reasoning == "" {
		return fmt.Errorf("%w: reasoning is required", internal.ErrInputRejected)
	}
	if utf8.RuneCountInString(reasoning) > internal.MaxReasoningLength {
		return fmt.Errorf("%w: reasoning longer than %d characters", internal.ErrInputRejected, internal.MaxReasoningLength)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(internal.PhaseDiscussion); err != nil {
		return err
	}
	suspect, err := c.otherActiveLocked(suspectID)
	if err != nil {
		return err
	}

	return c.concludeDiscussionLocked(ctx, internal.Suspicion{
		ParticipantID: internal.HumanParticipantID,
		SuspectID:     suspect.ID,
		Round:         c.store.Round(),
		Reasoning:     reasoning,
	}, suspect.Name)
}

// SkipSuspicion passes on the human's statement.
func (c *Controller) SkipSuspicion(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(internal.PhaseDiscussion); err != nil {
		return err
	}
	return c.concludeDiscussionLocked(ctx, internal.Suspicion{
		ParticipantID: internal.HumanParticipantID,
		Round:         c.store.Round(),
		Skipped:       true,
	}, "")
}

func (c *Controller) onDiscussionExpired(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.store.Round() != round || c.store.Phase() != internal.PhaseDiscussion {
		return
	}
	c.log.Info("[DiscussionTimer] time is up, skipping human statement", zap.Int("round", round))
	err := c.concludeDiscussionLocked(c.ctx, internal.Suspicion{
		ParticipantID: internal.HumanParticipantID,
		Round:         round,
		Skipped:       true,
	}, "")
	if err != nil {
		c.log.Error("[DiscussionTimer] could not conclude discussion", zap.Int("round", round), zap.Error(err))
	}
}

func (c *Controller) concludeDiscussionLocked(ctx context.Context, human internal.Suspicion, suspectName string) error {
	round := human.Round
	active := c.store.ActiveParticipants()

	ai, err := c.resolver.CollectAISuspicions(ctx, round, active, c.store.RoundMessages(round))
	if err != nil {
		return err
	}

	c.timer.Cancel()

	if err := c.appendSuspicionLocked(human, suspectName); err != nil {
		return err
	}
	for _, sp := range ai {
		suspect, _ := c.store.Participant(sp.SuspectID)
		if err := c.appendSuspicionLocked(sp, suspect.Name); err != nil {
			return err
		}
	}

	if err := c.store.SetPhase(internal.PhaseVoting); err != nil {
		return err
	}
	c.log.Info("[StartVotingPhase] voting open",
		zap.Int("round", round),
		zap.Int("suspicions", len(ai)+1))
	return nil
}

func (c *Controller) appendSuspicionLocked(sp internal.Suspicion, suspectName string) error {
	if err := c.store.AppendSuspicion(sp); err != nil {
		return err
	}
	if sp.Skipped {
		return nil
	}
	author, ok := c.store.Participant(sp.ParticipantID)
	if !ok {
		return fmt.Errorf("%w: unknown participant %q", internal.ErrInvalidState, sp.ParticipantID)
	}
	return c.store.AppendMessage(newMessage(author, sp.Round, Statement(suspectName, sp.Reasoning), internal.MessageKindSuspicion))
}

// =============================================================================
// VOTING
// =============================================================================

// CastVote records the human vote, collects the AI votes and resolves the round.
// The game outcome is decided only after the elimination, if any, is stored.
func (c *Controller) CastVote(ctx context.Context, targetID string) (internal.RoundResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(internal.PhaseVoting); err != nil {
		return internal.RoundResult{}, err
	}
	if c.result != nil {
		return internal.RoundResult{}, fmt.Errorf("%w: round %d is already resolved", internal.ErrInvalidState, c.result.Round)
	}
	target, err := c.otherActiveLocked(targetID)
	if err != nil {
		return internal.RoundResult{}, err
	}

	round := c.store.Round()
	active := c.store.ActiveParticipants()
	transcript := c.store.RoundMessages(round)

	aiVotes, err := c.resolver.CollectAIVotes(ctx, round, active, transcript)
	if err != nil {
		return internal.RoundResult{}, err
	}

	err = c.store.AppendVote(internal.Vote{
		VoterID:  internal.HumanParticipantID,
		TargetID: target.ID,
		Round:    round,
	})
	if err != nil {
		return internal.RoundResult{}, err
	}
	for _, v := range aiVotes {
		if err := c.store.AppendVote(v); err != nil {
			return internal.RoundResult{}, err
		}
	}

	result, err := c.resolver.ResolveRound(round, active, c.store.RoundVotes(round), transcript)
	if err != nil {
		return internal.RoundResult{}, err
	}
	if result.Record != nil {
		if err := c.store.Eliminate(*result.Record); err != nil {
			return internal.RoundResult{}, err
		}
	}

	outcome := c.evaluateLocked(round, result)
	c.store.SetOutcome(outcome)
	c.result = &result

	c.store.Publish(internal.EventRoundResolved, result)
	c.log.Info("[ResolveVotes] round resolved",
		zap.Int("round", round),
		zap.String("eliminated", result.EliminatedID),
		zap.Bool("tie", result.Tie),
		zap.Bool("over", outcome.Over))
	return result, nil
}

// evaluateLocked decides the outcome from a completed resolution.
func (c *Controller) evaluateLocked(round int, result internal.RoundResult) internal.Outcome {
	switch {
	case result.Record != nil && result.Record.WasHuman:
		return internal.Outcome{Over: true}
	case round >= internal.TotalRounds:
		return internal.Outcome{Over: true, HumanWon: true}
	case len(c.store.ActiveAIs()) == 0:
		return internal.Outcome{Over: true, HumanWon: true}
	}
	return internal.Outcome{}
}

// Advance leaves a resolved voting phase: into the next round's chat, or into the
// reveal once the game is over.
func (c *Controller) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkLocked(internal.PhaseVoting); err != nil {
		return err
	}
	if c.result == nil {
		return fmt.Errorf("%w: votes for round %d are not resolved", internal.ErrInvalidState, c.store.Round())
	}

	if c.store.Outcome().Over {
		return c.revealLocked()
	}

	next := c.store.Round() + 1
	c.store.ClearVotes()
	if err := c.store.SetRound(next, c.theme.Prompt(next)); err != nil {
		return err
	}
	if err := c.store.SetPhase(internal.PhaseChat); err != nil {
		return err
	}
	return c.startChatLocked(next)
}

func (c *Controller) revealLocked() error {
	if err := c.store.SetPhase(internal.PhaseReveal); err != nil {
		return err
	}
	outcome := c.store.Outcome()
	c.store.Publish(internal.EventGameOver, internal.GameOverData{
		GameID:       c.store.ID(),
		HumanWon:     outcome.HumanWon,
		RoundsPlayed: c.store.Round(),
		Eliminations: c.store.Eliminations(),
	})
	c.log.Info("[RevealPhase] game over",
		zap.Bool("human_won", outcome.HumanWon),
		zap.Int("rounds", c.store.Round()))
	if c.onGameOver != nil {
		c.onGameOver()
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Close stops timers and the scheduler and waits for their goroutines.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.timer.Cancel()
	c.sched.Stop()
	c.timer.Wait()
	c.sched.Wait()
	c.store.Close()
}

func (c *Controller) checkLocked(want internal.GamePhase) error {
	if c.closed {
		return fmt.Errorf("%w: game is closed", internal.ErrInvalidState)
	}
	if phase := c.store.Phase(); phase != want {
		return fmt.Errorf("%w: expected phase %s, got %s", internal.ErrInvalidState, want, phase)
	}
	return nil
}

// otherActiveLocked validates a target chosen by the human.
func (c *Controller) otherActiveLocked(id string) (internal.Participant, error) {
	if id == internal.HumanParticipantID {
		return internal.Participant{}, fmt.Errorf("%w: cannot target yourself", internal.ErrInputRejected)
	}
	p, ok := c.store.Participant(id)
	if !ok || p.IsEliminated {
		return internal.Participant{}, fmt.Errorf("%w: %q is not an active participant", internal.ErrInputRejected, id)
	}
	return p, nil
}
