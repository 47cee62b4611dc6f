package internal

// Envelope is the {type,data} frame pushed to subscribers and read from clients.
type Envelope[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

const (
	EventPhaseChanged    = "phase_changed"
	EventRoundStarted    = "round_started"
	EventParticipants    = "participants_updated"
	EventMessageAppended = "message_appended"
	EventSuspicionAdded  = "suspicion_added"
	EventVoteCast        = "vote_cast"
	EventVotesCleared    = "votes_cleared"
	EventElimination     = "participant_eliminated"
	EventRoundResolved   = "round_resolved"
	EventTimerUpdate     = "timer_update"
	EventGameOver        = "game_over"
	EventTypingIndicator = "typing"
	EventErrorMessage    = "error_message"
	EventGameState       = "game_state"
)

type TimerUpdateData struct {
	TimeRemaining int64     `json:"time_remaining_ms"`
	Phase         GamePhase `json:"phase"`
	IsActive      bool      `json:"is_active"`
}

type PhaseChangedData struct {
	Phase GamePhase `json:"phase"`
	Round int       `json:"round"`
}

type RoundStartedData struct {
	Round  int    `json:"round"`
	Prompt string `json:"prompt"`
}

type TypingData struct {
	ParticipantID string `json:"participant_id"`
	Typing        bool   `json:"typing"`
}

type GameOverData struct {
	GameID       string              `json:"game_id"`
	HumanWon     bool                `json:"human_won"`
	RoundsPlayed int                 `json:"rounds_played"`
	Eliminations []EliminationRecord `json:"eliminations"`
}

// Action types sent by the presentation layer.
const (
	ActionStart   = "start_game"
	ActionChat    = "chat_message"
	ActionSuspect = "submit_suspicion"
	ActionSkip    = "skip_suspicion"
	ActionEndChat = "end_chat"
	ActionVote    = "cast_vote"
	ActionProceed = "proceed"
)

type SuspicionAction struct {
	SuspectID string `json:"suspect_id"`
	Reasoning string `json:"reasoning"`
}

type VoteAction struct {
	TargetID string `json:"target_id"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// Response wraps every HTTP API reply.
type Response struct {
	StatusCode    int   `json:"status_code"`
	RespStartTime int64 `json:"resp_time_start_ms"`
	RespEndTime   int64 `json:"resp_time_end_ms"`
	NetRespTime   int64 `json:"net_resp_time_ms"`
	Data          any   `json:"data"`
}
