package tournament

import "time"

// Player is a participant of a tournament session.
type Player struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Status           PlayerStatus `json:"status"`
	Score            int          `json:"score"`
	CorrectAnswers   int          `json:"correct_answers"`
	IncorrectAnswers int          `json:"incorrect_answers"`
	SuddenDeathScore int          `json:"sudden_death_score"`
	// TieBreak orders survivors of a resolved sudden-death episode whose main
	// scores are still equal. Higher is better; reset at the start of each tour.
	TieBreak         int       `json:"tie_break"`
	JoinedAt         time.Time `json:"joined_at"`
	EliminatedInTour int       `json:"eliminated_in_tour,omitempty"`
}

// IsActive reports whether the player is still competing.
func (p Player) IsActive() bool {
	return p.Status == PlayerActive
}

// Answered returns the number of questions the player has been asked and has
// either answered or timed out on.
func (p Player) Answered() int {
	return p.CorrectAnswers + p.IncorrectAnswers
}
