package tournament

// Status is the lifecycle state of a tournament session.
type Status string

const (
	StatusNotConfigured         Status = "not_configured"
	StatusAwaitingPlayers       Status = "awaiting_players"
	StatusPreparingQuestionPool Status = "preparing_question_pool"
	StatusReadyToStart          Status = "ready_to_start"
	StatusInProgress            Status = "in_progress"
	StatusPaused                Status = "paused"
	StatusSuddenDeath           Status = "sudden_death"
	StatusCompleted             Status = "completed"
	StatusCancelled             Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsPlaying reports whether questions are being driven.
func (s Status) IsPlaying() bool {
	return s == StatusInProgress || s == StatusSuddenDeath
}

// PlayerStatus is the participation state of a player within a session.
type PlayerStatus string

const (
	PlayerPending    PlayerStatus = "pending"
	PlayerActive     PlayerStatus = "active"
	PlayerEliminated PlayerStatus = "eliminated"
	PlayerSpectator  PlayerStatus = "spectator"
)

// SourceMode selects where the question pool comes from.
type SourceMode string

const (
	SourceBank SourceMode = "bank"
	SourceAI   SourceMode = "ai"
)
