package store

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/scythe504/whos-human-backend/internal"
)

// Event is what subscribers receive after every mutation.
type Event = internal.Envelope[any]

// GameStore holds the state of one game in memory. Every accessor returns copies, so
// callers can never mutate stored state except through the methods below.
type GameStore struct {
	state internal.GameState
	mu    sync.RWMutex

	subs    map[int]chan Event
	nextSub int
	closed  bool
	subMu   sync.Mutex
}

// NewGameStore creates a store in the lobby phase.
func NewGameStore(id string, settings internal.GameSettings) *GameStore {
	return &GameStore{
		state: internal.GameState{
			ID:           id,
			Settings:     settings,
			Phase:        internal.PhaseLobby,
			TotalRounds:  internal.TotalRounds,
			Participants: make([]internal.Participant, 0),
			Messages:     make([]internal.Message, 0),
			Votes:        make([]internal.Vote, 0),
			Suspicions:   make([]internal.Suspicion, 0),
			Eliminations: make([]internal.EliminationRecord, 0),
			CreatedAt:    time.Now(),
		},
		subs: make(map[int]chan Event),
	}
}

// =============================================================================
// READS
// =============================================================================

func (s *GameStore) ID() string {
	return s.state.ID
}

func (s *GameStore) Settings() internal.GameSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Settings
}

// Snapshot returns a deep copy of the whole game state.
func (s *GameStore) Snapshot() internal.GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.Participants = slices.Clone(s.state.Participants)
	snap.Messages = slices.Clone(s.state.Messages)
	snap.Votes = slices.Clone(s.state.Votes)
	snap.Suspicions = slices.Clone(s.state.Suspicions)
	snap.Eliminations = make([]internal.EliminationRecord, len(s.state.Eliminations))
	for i, rec := range s.state.Eliminations {
		rec.Votes = slices.Clone(rec.Votes)
		snap.Eliminations[i] = rec
	}
	return snap
}

func (s *GameStore) Phase() internal.GamePhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Phase
}

func (s *GameStore) Round() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Round
}

func (s *GameStore) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Prompt
}

func (s *GameStore) Outcome() internal.Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Outcome
}

func (s *GameStore) Participants() []internal.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Participants)
}

func (s *GameStore) Participant(id string) (internal.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Participant(id)
}

func (s *GameStore) ActiveParticipants() []internal.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActiveParticipants()
}

func (s *GameStore) ActiveAIs() []internal.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ActiveAIs()
}

func (s *GameStore) Human() (internal.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Human()
}

func (s *GameStore) Messages() []internal.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Messages)
}

func (s *GameStore) RoundMessages(round int) []internal.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RoundMessages(round)
}

func (s *GameStore) RoundVotes(round int) []internal.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RoundVotes(round)
}

func (s *GameStore) Suspicions(round int) []internal.Suspicion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]internal.Suspicion, 0)
	for _, sp := range s.state.Suspicions {
		if sp.Round == round {
			out = append(out, sp)
		}
	}
	return out
}

func (s *GameStore) Eliminations() []internal.EliminationRecord {
	return s.Snapshot().Eliminations
}

// =============================================================================
// WRITES
// =============================================================================

// SetPhase moves the state machine, rejecting transitions it does not allow.
func (s *GameStore) SetPhase(phase internal.GamePhase) error {
	s.mu.Lock()
	from := s.state.Phase
	if !from.CanTransitionTo(phase) {
		s.mu.Unlock()
		return fmt.Errorf("%w: phase %s -> %s", internal.ErrInvalidState, from, phase)
	}
	s.state.Phase = phase
	round := s.state.Round
	s.mu.Unlock()

	s.Publish(internal.EventPhaseChanged, internal.PhaseChangedData{Phase: phase, Round: round})
	return nil
}

// SetRound sets the round counter. It only ever moves forward by one and never past
// the fixed total.
func (s *GameStore) SetRound(round int, prompt string) error {
	s.mu.Lock()
	if round != s.state.Round+1 || round > s.state.TotalRounds {
		current := s.state.Round
		s.mu.Unlock()
		return fmt.Errorf("%w: round %d -> %d (total %d)", internal.ErrInvalidState, current, round, internal.TotalRounds)
	}
	s.state.Round = round
	s.state.Prompt = prompt
	s.mu.Unlock()

	s.Publish(internal.EventRoundStarted, internal.RoundStartedData{Round: round, Prompt: prompt})
	return nil
}

// SetParticipants installs the roster. Only allowed before the game starts.
func (s *GameStore) SetParticipants(participants []internal.Participant) error {
	s.mu.Lock()
	if s.state.Phase != internal.PhaseLobby {
		s.mu.Unlock()
		return fmt.Errorf("%w: roster is fixed once the game started", internal.ErrInvalidState)
	}
	humans := 0
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p.ID] {
			s.mu.Unlock()
			return fmt.Errorf("%w: duplicate participant id %q", internal.ErrInvalidState, p.ID)
		}
		seen[p.ID] = true
		if p.IsHuman {
			humans++
		}
	}
	if humans != 1 {
		s.mu.Unlock()
		return fmt.Errorf("%w: expected exactly one human, got %d", internal.ErrInvalidState, humans)
	}
	s.state.Participants = slices.Clone(participants)
	snapshot := slices.Clone(participants)
	s.mu.Unlock()

	s.Publish(internal.EventParticipants, snapshot)
	return nil
}

// AppendMessage adds to the transcript. The message round must be the current round
// and the author must be an active participant.
func (s *GameStore) AppendMessage(msg internal.Message) error {
	s.mu.Lock()
	if msg.Round != s.state.Round {
		s.mu.Unlock()
		return fmt.Errorf("%w: message for round %d during round %d", internal.ErrInvalidState, msg.Round, s.state.Round)
	}
	if !s.state.IsActive(msg.ParticipantID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: participant %q is not active", internal.ErrInvalidState, msg.ParticipantID)
	}
	if msg.Kind == "" {
		msg.Kind = internal.MessageKindChat
	}
	s.state.Messages = append(s.state.Messages, msg)
	s.mu.Unlock()

	s.Publish(internal.EventMessageAppended, msg)
	return nil
}

// AppendVote records one vote. Each active participant votes at most once per round
// and never for themselves.
func (s *GameStore) AppendVote(vote internal.Vote) error {
	s.mu.Lock()
	if vote.VoterID == vote.TargetID {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q voted for themselves", internal.ErrInvalidState, vote.VoterID)
	}
	if vote.Round != s.state.Round {
		s.mu.Unlock()
		return fmt.Errorf("%w: vote for round %d during round %d", internal.ErrInvalidState, vote.Round, s.state.Round)
	}
	if !s.state.IsActive(vote.VoterID) || !s.state.IsActive(vote.TargetID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: vote %q -> %q involves an inactive participant", internal.ErrInvalidState, vote.VoterID, vote.TargetID)
	}
	for _, v := range s.state.Votes {
		if v.Round == vote.Round && v.VoterID == vote.VoterID {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q already voted in round %d", internal.ErrInvalidState, vote.VoterID, vote.Round)
		}
	}
	s.state.Votes = append(s.state.Votes, vote)
	s.mu.Unlock()

	s.Publish(internal.EventVoteCast, vote)
	return nil
}

// ClearVotes drops the vote log. Called only when a round fully advances.
func (s *GameStore) ClearVotes() {
	s.mu.Lock()
	s.state.Votes = make([]internal.Vote, 0)
	s.mu.Unlock()

	s.Publish(internal.EventVotesCleared, nil)
}

func (s *GameStore) AppendSuspicion(sp internal.Suspicion) error {
	s.mu.Lock()
	if sp.Round != s.state.Round {
		s.mu.Unlock()
		return fmt.Errorf("%w: suspicion for round %d during round %d", internal.ErrInvalidState, sp.Round, s.state.Round)
	}
	for _, existing := range s.state.Suspicions {
		if existing.Round == sp.Round && existing.ParticipantID == sp.ParticipantID {
			s.mu.Unlock()
			return fmt.Errorf("%w: %q already shared a suspicion in round %d", internal.ErrInvalidState, sp.ParticipantID, sp.Round)
		}
	}
	s.state.Suspicions = append(s.state.Suspicions, sp)
	s.mu.Unlock()

	s.Publish(internal.EventSuspicionAdded, sp)
	return nil
}

// Eliminate marks the record's participant as eliminated and stores the record.
// The participant must still be active.
func (s *GameStore) Eliminate(rec internal.EliminationRecord) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.state.Participants, func(p internal.Participant) bool {
		return p.ID == rec.EliminatedID
	})
	if idx < 0 || s.state.Participants[idx].IsEliminated {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot eliminate %q", internal.ErrInvalidState, rec.EliminatedID)
	}
	s.state.Participants[idx].IsEliminated = true
	s.state.Participants[idx].EliminatedInRound = rec.Round
	rec.WasHuman = s.state.Participants[idx].IsHuman
	rec.Votes = slices.Clone(rec.Votes)
	s.state.Eliminations = append(s.state.Eliminations, rec)
	s.mu.Unlock()

	s.Publish(internal.EventElimination, rec)
	return nil
}

func (s *GameStore) SetOutcome(outcome internal.Outcome) {
	s.mu.Lock()
	s.state.Outcome = outcome
	s.mu.Unlock()
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe returns a channel receiving every event published after the call, plus
// a cancel function that closes it.
func (s *GameStore) Subscribe(buffer int) (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan Event, buffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Publish fans an event out to subscribers. A subscriber whose buffer is full misses
// the event rather than blocking the game.
func (s *GameStore) Publish(eventType string, data any) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	evt := Event{Type: eventType, Data: data}
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close ends every subscription. Later publishes are dropped.
func (s *GameStore) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
