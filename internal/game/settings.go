package game

import (
	"time"

	"github.com/scythe504/whos-human-backend/internal"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
)

// DifficultySettings are the knobs a difficulty tier turns.
type DifficultySettings struct {
	// MessageCap is the per-round message limit of each AI.
	MessageCap         int
	ChatDuration       time.Duration
	DiscussionDuration time.Duration
	// RandomVoteProbability is the chance an AI ignores the scorer and votes at random.
	RandomVoteProbability float64
	RandomVoteReasoning   string
	// EvidenceFlags is how many scorer flags back a vote.
	EvidenceFlags int
}

// PaceSettings define the AI inter-message delay: uniform in [Base, Base+Jitter).
type PaceSettings struct {
	Base   time.Duration
	Jitter time.Duration
}

// Delay draws one inter-message delay.
func (p PaceSettings) Delay(rng random.Source) time.Duration {
	if p.Jitter <= 0 {
		return p.Base
	}
	return p.Base + time.Duration(rng.Float64()*float64(p.Jitter))
}

type Settings struct {
	FirstMessageDelay time.Duration
	RetryBackoff      time.Duration
	GenerationTimeout time.Duration
	TimerTick         time.Duration

	Difficulty map[internal.Difficulty]DifficultySettings
	Pace       map[internal.Pace]PaceSettings
}

func DefaultSettings() Settings {
	return Settings{
		FirstMessageDelay: 3 * time.Second,
		RetryBackoff:      3 * time.Second,
		GenerationTimeout: 10 * time.Second,
		TimerTick:         time.Second,
		Difficulty: map[internal.Difficulty]DifficultySettings{
			internal.DifficultyEasy: {
				MessageCap:            3,
				ChatDuration:          150 * time.Second,
				DiscussionDuration:    120 * time.Second,
				RandomVoteProbability: 0.5,
				RandomVoteReasoning:   llm.ReasoningHunch,
				EvidenceFlags:         1,
			},
			internal.DifficultyMedium: {
				MessageCap:            3,
				ChatDuration:          150 * time.Second,
				DiscussionDuration:    120 * time.Second,
				RandomVoteProbability: 0.25,
				RandomVoteReasoning:   llm.ReasoningGut,
				EvidenceFlags:         2,
			},
			internal.DifficultyHard: {
				MessageCap:         4,
				ChatDuration:       90 * time.Second,
				DiscussionDuration: 90 * time.Second,
				EvidenceFlags:      3,
			},
		},
		Pace: map[internal.Pace]PaceSettings{
			internal.PaceRelaxed: {Base: 12 * time.Second, Jitter: 6 * time.Second},
			internal.PaceNormal:  {Base: 8 * time.Second, Jitter: 4 * time.Second},
			internal.PaceFast:    {Base: 5 * time.Second, Jitter: 3 * time.Second},
		},
	}
}

// ForDifficulty falls back to medium for unknown tiers.
func (s Settings) ForDifficulty(d internal.Difficulty) DifficultySettings {
	if ds, ok := s.Difficulty[d]; ok {
		return ds
	}
	return s.Difficulty[internal.DifficultyMedium]
}

// ForPace falls back to normal for unknown tiers.
func (s Settings) ForPace(p internal.Pace) PaceSettings {
	if ps, ok := s.Pace[p]; ok {
		return ps
	}
	return s.Pace[internal.PaceNormal]
}
