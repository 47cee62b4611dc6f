package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/humanize"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
	"github.com/scythe504/whos-human-backend/internal/store"
)

// othersBeforeRepeat is how many messages from other participants an AI must see
// before it may speak again in the same round.
const othersBeforeRepeat = 2

// =============================================================================
// MESSAGE SCHEDULER
// =============================================================================

// Scheduler decides which AI speaks next during the chat phase and when. One round
// runs at a time; Stop ends it and any generation that finishes afterwards is dropped.
type Scheduler struct {
	store     *store.GameStore
	gen       llm.Generator
	humanizer *humanize.Humanizer
	rng       random.Source
	log       *zap.Logger

	messageCap        int
	pace              PaceSettings
	firstDelay        time.Duration
	backoff           time.Duration
	generationTimeout time.Duration

	mu          sync.Mutex
	active      bool
	round       int
	counts      map[string]int
	othersSince map[string]int
	inFlight    map[string]bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type SchedulerConfig struct {
	Store     *store.GameStore
	Generator llm.Generator
	Humanizer *humanize.Humanizer
	Rand      random.Source
	Log       *zap.Logger
	Settings  Settings
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	settings := cfg.Store.Settings()
	return &Scheduler{
		store:             cfg.Store,
		gen:               cfg.Generator,
		humanizer:         cfg.Humanizer,
		rng:               cfg.Rand,
		log:               cfg.Log,
		messageCap:        cfg.Settings.ForDifficulty(settings.Difficulty).MessageCap,
		pace:              cfg.Settings.ForPace(settings.Pace),
		firstDelay:        cfg.Settings.FirstMessageDelay,
		backoff:           cfg.Settings.RetryBackoff,
		generationTimeout: cfg.Settings.GenerationTimeout,
		counts:            make(map[string]int),
		othersSince:       make(map[string]int),
		inFlight:          make(map[string]bool),
	}
}

// Start begins pacing AI messages for round. The round runs until Stop is called or
// every active AI has reached its cap.
func (s *Scheduler) Start(ctx context.Context, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("%w: scheduler already running round %d", internal.ErrInvalidState, s.round)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.active = true
	s.round = round
	s.cancel = cancel
	s.counts = make(map[string]int)
	s.othersSince = make(map[string]int)
	s.inFlight = make(map[string]bool)

	s.log.Info("[StartScheduler] round started",
		zap.String("game", s.store.ID()),
		zap.Int("round", round),
		zap.Int("cap", s.messageCap))

	s.wg.Add(1)
	go s.run(ctx, round)
	return nil
}

// Stop marks the round inactive and cancels pending delays and generations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.active = false
	s.cancel()
	s.log.Info("[StopScheduler] round stopped",
		zap.String("game", s.store.ID()),
		zap.Int("round", s.round))
}

// Wait blocks until the loop and every in-flight generation have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Active reports whether a round is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Count returns how many messages participantID sent in the running round.
func (s *Scheduler) Count(participantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[participantID]
}

// SubmitHuman appends a human chat message. Human messages are never capped but do
// count toward everyone else's fairness counter.
func (s *Scheduler) SubmitHuman(text string) (internal.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return internal.Message{}, fmt.Errorf("%w: empty message", internal.ErrInputRejected)
	}
	if utf8.RuneCountInString(text) > internal.MaxHumanMessageLength {
		return internal.Message{}, fmt.Errorf("%w: message longer than %d characters", internal.ErrInputRejected, internal.MaxHumanMessageLength)
	}

	human, ok := s.store.Human()
	if !ok {
		return internal.Message{}, fmt.Errorf("%w: no human participant", internal.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return internal.Message{}, fmt.Errorf("%w: chat is closed", internal.ErrInvalidState)
	}

	msg := newMessage(human, s.round, text, internal.MessageKindChat)
	if err := s.store.AppendMessage(msg); err != nil {
		return internal.Message{}, err
	}
	s.recordLocked(human.ID)
	return msg, nil
}

// =============================================================================
// ROUND LOOP
// =============================================================================

func (s *Scheduler) run(ctx context.Context, round int) {
	defer s.wg.Done()

	delay := s.firstDelay
	for {
		if !s.sleep(ctx, delay) {
			return
		}

		speaker, ok, done := s.next(round)
		if done {
			s.log.Info("[RunScheduler] every AI reached its cap",
				zap.String("game", s.store.ID()),
				zap.Int("round", round))
			return
		}
		if !ok {
			delay = s.backoff
			continue
		}

		s.wg.Add(1)
		go s.speak(ctx, round, speaker)
		delay = s.pace.Delay(s.rng)
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// next picks the speaker and claims its in-flight guard. done is true once every
// active AI is at its cap and nothing is in flight.
func (s *Scheduler) next(round int) (speaker internal.Participant, ok bool, done bool) {
	ais := s.store.ActiveAIs()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.round != round {
		return internal.Participant{}, false, true
	}

	capped := 0
	eligible := make([]internal.Participant, 0, len(ais))
	for _, ai := range ais {
		count := s.counts[ai.ID]
		if count >= s.messageCap {
			capped++
			continue
		}
		if s.inFlight[ai.ID] {
			continue
		}
		if count > 0 && s.othersSince[ai.ID] < othersBeforeRepeat {
			continue
		}
		eligible = append(eligible, ai)
	}

	if capped == len(ais) {
		return internal.Participant{}, false, true
	}
	if len(eligible) == 0 {
		return internal.Participant{}, false, false
	}

	fewest := s.counts[eligible[0].ID]
	for _, ai := range eligible[1:] {
		fewest = min(fewest, s.counts[ai.ID])
	}
	candidates := make([]internal.Participant, 0, len(eligible))
	for _, ai := range eligible {
		if s.counts[ai.ID] == fewest {
			candidates = append(candidates, ai)
		}
	}

	speaker = random.Pick(s.rng, candidates)
	s.inFlight[speaker.ID] = true
	return speaker, true, false
}

func (s *Scheduler) speak(ctx context.Context, round int, speaker internal.Participant) {
	defer s.wg.Done()

	if !s.isRunning(round) {
		s.release(speaker.ID, round)
		return
	}
	s.store.Publish(internal.EventTypingIndicator, internal.TypingData{ParticipantID: speaker.ID, Typing: true})
	defer s.store.Publish(internal.EventTypingIndicator, internal.TypingData{ParticipantID: speaker.ID})

	prompt := s.buildPrompt(speaker, round)

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	raw, err := s.gen.Generate(genCtx, prompt)
	cancel()

	if !s.isRunning(round) {
		s.release(speaker.ID, round)
		s.log.Debug("[Speak] round ended during generation, discarding",
			zap.String("game", s.store.ID()),
			zap.String("participant", speaker.ID),
			zap.Int("round", round))
		return
	}
	if err != nil {
		s.log.Warn("[Speak] generation failed, using fallback",
			zap.String("game", s.store.ID()),
			zap.String("participant", speaker.ID),
			zap.Error(err))
		raw = llm.FallbackMessage(s.rng)
	}

	res := s.humanizer.Humanize(raw, speaker.Name)

	roster := make([]string, 0)
	for _, p := range s.store.Participants() {
		roster = append(roster, p.Name)
	}
	if unknown := llm.UnknownNames(res.Text, roster); len(unknown) > 0 {
		s.log.Warn("[Speak] message mentions names outside the roster",
			zap.String("game", s.store.ID()),
			zap.String("participant", speaker.ID),
			zap.Strings("names", unknown))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.round != round {
		return
	}
	defer delete(s.inFlight, speaker.ID)

	msg := newMessage(speaker, round, res.Text, internal.MessageKindChat)
	if err := s.store.AppendMessage(msg); err != nil {
		s.log.Warn("[Speak] append rejected",
			zap.String("game", s.store.ID()),
			zap.String("participant", speaker.ID),
			zap.Error(err))
		return
	}
	s.recordLocked(speaker.ID)

	s.log.Debug("[Speak] message appended",
		zap.String("game", s.store.ID()),
		zap.String("participant", speaker.ID),
		zap.Int("round", round),
		zap.Stringer("corruption", res.Corruption))
}

func (s *Scheduler) buildPrompt(speaker internal.Participant, round int) string {
	others := make([]string, 0)
	for _, p := range s.store.ActiveParticipants() {
		if p.ID != speaker.ID {
			others = append(others, p.Name)
		}
	}
	transcript := make([]internal.Message, 0)
	for _, m := range s.store.RoundMessages(round) {
		if m.Kind == internal.MessageKindChat {
			transcript = append(transcript, m)
		}
	}
	return llm.BuildChatPrompt(llm.ChatPromptInput{
		Speaker:    speaker,
		Topic:      s.store.Prompt(),
		Others:     others,
		Transcript: transcript,
	})
}

func (s *Scheduler) isRunning(round int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.round == round
}

// release drops the in-flight guard, unless a newer round already reset it.
func (s *Scheduler) release(participantID string, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.round == round {
		delete(s.inFlight, participantID)
	}
}

// recordLocked updates the counters after a durable append. Callers hold s.mu.
func (s *Scheduler) recordLocked(participantID string) {
	s.counts[participantID]++
	s.othersSince[participantID] = 0
	for _, p := range s.store.ActiveParticipants() {
		if p.ID != participantID {
			s.othersSince[p.ID]++
		}
	}
}

func newMessage(p internal.Participant, round int, content string, kind internal.MessageKind) internal.Message {
	return internal.Message{
		ID:              uuid.NewString(),
		ParticipantID:   p.ID,
		ParticipantName: p.Name,
		Round:           round,
		Content:         content,
		Kind:            kind,
		CreatedAt:       time.Now(),
	}
}
