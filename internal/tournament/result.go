package tournament

import "time"

// PlayerResult is one row of the archived final standings.
type PlayerResult struct {
	PlayerID         string       `json:"player_id"`
	Name             string       `json:"name"`
	Status           PlayerStatus `json:"status"`
	Placement        int          `json:"placement,omitempty"`
	Score            int          `json:"score"`
	CorrectAnswers   int          `json:"correct_answers"`
	IncorrectAnswers int          `json:"incorrect_answers"`
	EliminatedInTour int          `json:"eliminated_in_tour,omitempty"`
}

// GameStatistics summarizes a finished match.
type GameStatistics struct {
	ToursPlayed         int           `json:"tours_played"`
	QuestionsAsked      int           `json:"questions_asked"`
	CorrectAnswers      int           `json:"correct_answers"`
	IncorrectAnswers    int           `json:"incorrect_answers"`
	SuddenDeathEpisodes int           `json:"sudden_death_episodes"`
	Duration            time.Duration `json:"duration"`
}

// GameResult is the write-once archival snapshot of a terminated session.
type GameResult struct {
	ID          string         `json:"id"`
	ChatID      string         `json:"chat_id"`
	Status      Status         `json:"status"`
	Language    string         `json:"language"`
	Topics      []string       `json:"topics"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Players     []PlayerResult `json:"players"`
	Statistics  GameStatistics `json:"statistics"`
}

// Winner returns the first-placed player, if any.
func (r GameResult) Winner() (PlayerResult, bool) {
	for _, p := range r.Players {
		if p.Placement == 1 {
			return p, true
		}
	}
	return PlayerResult{}, false
}

// BuildResult snapshots the session into a GameResult. Only Active players
// receive a placement; eliminated players are listed without one.
func BuildResult(id string, s *Session, completedAt time.Time) GameResult {
	result := GameResult{
		ID:          id,
		ChatID:      s.ChatID,
		Status:      s.Status,
		Language:    s.Language,
		Topics:      append([]string(nil), s.Topics...),
		CompletedAt: completedAt,
	}
	if s.StartedAt != nil {
		result.StartedAt = *s.StartedAt
		result.Statistics.Duration = completedAt.Sub(*s.StartedAt)
	}

	placement := 0
	for _, p := range Standings(s) {
		if p.Status == PlayerSpectator || p.Status == PlayerPending {
			continue
		}
		row := PlayerResult{
			PlayerID:         p.ID,
			Name:             p.Name,
			Status:           p.Status,
			Score:            p.Score,
			CorrectAnswers:   p.CorrectAnswers,
			IncorrectAnswers: p.IncorrectAnswers,
			EliminatedInTour: p.EliminatedInTour,
		}
		if p.Status == PlayerActive {
			placement++
			row.Placement = placement
		}
		result.Players = append(result.Players, row)
		result.Statistics.CorrectAnswers += p.CorrectAnswers
		result.Statistics.IncorrectAnswers += p.IncorrectAnswers
	}

	result.Statistics.QuestionsAsked = len(s.AskedQuestions)
	result.Statistics.SuddenDeathEpisodes = s.SuddenDeathEpisodes
	result.Statistics.ToursPlayed = min(s.CurrentTour, s.Tours)
	return result
}
