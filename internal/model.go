package internal

import (
	"time"
)

const (
	TotalRounds           = 3
	MinAIParticipants     = 2
	MaxAIParticipants     = 8
	MaxHumanMessageLength = 500
	MaxReasoningLength    = 300
	HumanParticipantID    = "human"
)

type GamePhase string

const (
	PhaseLobby      GamePhase = "lobby"
	PhaseChat       GamePhase = "chat"
	PhaseDiscussion GamePhase = "discussion"
	PhaseVoting     GamePhase = "voting"
	PhaseReveal     GamePhase = "reveal"
)

var phaseTransitions = map[GamePhase][]GamePhase{
	PhaseLobby:      {PhaseChat},
	PhaseChat:       {PhaseDiscussion},
	PhaseDiscussion: {PhaseVoting},
	PhaseVoting:     {PhaseChat, PhaseReveal},
}

// CanTransitionTo reports whether the state machine allows moving from p to target.
func (p GamePhase) CanTransitionTo(target GamePhase) bool {
	for _, next := range phaseTransitions[p] {
		if next == target {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Pace string

const (
	PaceRelaxed Pace = "relaxed"
	PaceNormal  Pace = "normal"
	PaceFast    Pace = "fast"
)

func (p Pace) Valid() bool {
	switch p {
	case PaceRelaxed, PaceNormal, PaceFast:
		return true
	}
	return false
}

type MessageKind string

const (
	MessageKindChat      MessageKind = "chat"
	MessageKindSuspicion MessageKind = "suspicion"
)

type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsHuman     bool   `json:"is_human"`
	Personality string `json:"personality,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Avatar      string `json:"avatar"`

	IsEliminated      bool `json:"is_eliminated"`
	EliminatedInRound int  `json:"eliminated_in_round,omitempty"`
}

type Message struct {
	ID              string      `json:"id"`
	ParticipantID   string      `json:"participant_id"`
	ParticipantName string      `json:"participant_name"`
	Round           int         `json:"round"`
	Content         string      `json:"content"`
	Kind            MessageKind `json:"kind"`
	CreatedAt       time.Time   `json:"created_at"`
}

type Vote struct {
	VoterID   string `json:"voter_id"`
	TargetID  string `json:"target_id"`
	Round     int    `json:"round"`
	Reasoning string `json:"reasoning,omitempty"`
}

type Suspicion struct {
	ParticipantID string `json:"participant_id"`
	SuspectID     string `json:"suspect_id,omitempty"`
	Round         int    `json:"round"`
	Reasoning     string `json:"reasoning,omitempty"`
	Skipped       bool   `json:"skipped"`
}

type HumanAnalysis struct {
	Flags           []string `json:"detection_flags"`
	ExampleMessages []string `json:"example_messages"`
	Tips            []string `json:"tips"`
}

type EliminationRecord struct {
	Round        int            `json:"round"`
	EliminatedID string         `json:"eliminated_id"`
	Votes        []Vote         `json:"votes"`
	WasHuman     bool           `json:"was_human"`
	Analysis     *HumanAnalysis `json:"human_analysis,omitempty"`
}

// RoundResult is the outcome of one vote resolution. EliminatedID is empty on a tie
// or when nobody received a vote.
type RoundResult struct {
	Round        int                `json:"round"`
	Tally        map[string]int     `json:"tally"`
	EliminatedID string             `json:"eliminated_id,omitempty"`
	Tie          bool               `json:"tie"`
	Record       *EliminationRecord `json:"record,omitempty"`
}

type Outcome struct {
	Over     bool `json:"over"`
	HumanWon bool `json:"human_won"`
}

type GameSettings struct {
	PlayerName string     `json:"player_name"`
	Difficulty Difficulty `json:"difficulty"`
	Pace       Pace       `json:"pace"`
	Theme      string     `json:"theme"`
}

// GameState is a point-in-time copy of everything the store holds.
type GameState struct {
	ID           string              `json:"id"`
	Settings     GameSettings        `json:"settings"`
	Phase        GamePhase           `json:"phase"`
	Round        int                 `json:"round"`
	TotalRounds  int                 `json:"total_rounds"`
	Prompt       string              `json:"prompt"`
	Participants []Participant       `json:"participants"`
	Messages     []Message           `json:"messages"`
	Votes        []Vote              `json:"votes"`
	Suspicions   []Suspicion         `json:"suspicions"`
	Eliminations []EliminationRecord `json:"eliminations"`
	Outcome      Outcome             `json:"outcome"`
	CreatedAt    time.Time           `json:"created_at"`
}
