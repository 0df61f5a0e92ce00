package tournament

import (
	"encoding/json"
	"errors"
	"time"
)

// ReserveTour is the QuestionsByTour key holding the sudden-death reserve.
const ReserveTour = 0

// ErrSessionNotFound is returned by stores when a chat has no session.
var ErrSessionNotFound = errors.New("tournament: session not found")

// SuddenDeathState carries the participants of a running tie-break episode.
type SuddenDeathState struct {
	Participants []string `json:"participants"`
	Episode      int      `json:"episode"`
}

// Includes reports whether playerID takes part in the episode.
func (sd *SuddenDeathState) Includes(playerID string) bool {
	if sd == nil {
		return false
	}
	for _, id := range sd.Participants {
		if id == playerID {
			return true
		}
	}
	return false
}

// PauseSnapshot records what Resume needs to restore.
type PauseSnapshot struct {
	PreviousStatus   Status         `json:"previous_status"`
	PausedAt         time.Time      `json:"paused_at"`
	RemainingTimeout *time.Duration `json:"remaining_timeout,omitempty"`
	RemainingBreak   *time.Duration `json:"remaining_break,omitempty"`
}

// Session is the complete state of one chat's tournament.
type Session struct {
	ChatID               string     `json:"chat_id"`
	Language             string     `json:"language"`
	SourceMode           SourceMode `json:"source_mode"`
	Topics               []string   `json:"topics"`
	Tours                int        `json:"tours"`
	RoundsPerTour        int        `json:"rounds_per_tour"`
	AnswerTimeoutSeconds int        `json:"answer_timeout_seconds"`
	EliminateLowest      bool       `json:"eliminate_lowest"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Players         []Player              `json:"players"`
	TurnQueue       []string              `json:"turn_queue"`
	QuestionsByTour map[int]QuestionQueue `json:"questions_by_tour"`
	CurrentTour     int                   `json:"current_tour"`
	CurrentRound    int                   `json:"current_round"`

	CurrentQuestion        *Question  `json:"current_question,omitempty"`
	CurrentPlayerID        *string    `json:"current_player_id,omitempty"`
	CurrentQuestionAskedAt *time.Time `json:"current_question_asked_at,omitempty"`
	QuestionSeq            int64      `json:"question_seq"`

	AskedQuestions      []Question        `json:"asked_questions"`
	SuddenDeath         *SuddenDeathState `json:"sudden_death,omitempty"`
	SuddenDeathEpisodes int               `json:"sudden_death_episodes"`
	PausedState         *PauseSnapshot    `json:"paused_state,omitempty"`
	BreakUntil          *time.Time        `json:"break_until,omitempty"`
	ResultID            string            `json:"result_id,omitempty"`
}

// NewSession returns an unconfigured session for chatID.
func NewSession(chatID string, now time.Time) *Session {
	return &Session{
		ChatID:          chatID,
		Status:          StatusNotConfigured,
		CreatedAt:       now,
		UpdatedAt:       now,
		QuestionsByTour: make(map[int]QuestionQueue),
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	data, err := json.Marshal(s)
	if err != nil {
		panic("tournament: session is not serializable: " + err.Error())
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		panic("tournament: session round-trip failed: " + err.Error())
	}
	return &out
}

// Player returns the player with the given ID, or nil.
func (s *Session) Player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// ActivePlayers returns pointers to the Active players in join order.
func (s *Session) ActivePlayers() []*Player {
	var out []*Player
	for i := range s.Players {
		if s.Players[i].IsActive() {
			out = append(out, &s.Players[i])
		}
	}
	return out
}

// ActiveCount returns the number of Active players.
func (s *Session) ActiveCount() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].IsActive() {
			n++
		}
	}
	return n
}

// ActivePlayerIDs returns the IDs of Active players in join order.
func (s *Session) ActivePlayerIDs() []string {
	var ids []string
	for i := range s.Players {
		if s.Players[i].IsActive() {
			ids = append(ids, s.Players[i].ID)
		}
	}
	return ids
}

// HasQuestionInFlight reports whether a question awaits an answer.
func (s *Session) HasQuestionInFlight() bool {
	return s.CurrentQuestion != nil
}

// SetCurrentQuestion records the question in flight and bumps QuestionSeq.
func (s *Session) SetCurrentQuestion(q Question, playerID string, askedAt time.Time) {
	s.QuestionSeq++
	s.CurrentQuestion = &q
	s.CurrentPlayerID = &playerID
	s.CurrentQuestionAskedAt = &askedAt
}

// ClearCurrentQuestion drops the question in flight.
func (s *Session) ClearCurrentQuestion() {
	s.CurrentQuestion = nil
	s.CurrentPlayerID = nil
	s.CurrentQuestionAskedAt = nil
}

// AnswerTimeout returns the per-question deadline as a duration.
func (s *Session) AnswerTimeout() time.Duration {
	return time.Duration(s.AnswerTimeoutSeconds) * time.Second
}

// Topic returns the topic of the given tour, or "" when none was configured.
func (s *Session) Topic(tour int) string {
	if tour < 1 || tour > len(s.Topics) {
		return ""
	}
	return s.Topics[tour-1]
}

// PoolSize returns the number of unused questions across all tours.
func (s *Session) PoolSize() int {
	n := 0
	for _, q := range s.QuestionsByTour {
		n += len(q)
	}
	return n
}

// ParticipantIDs returns the registered sudden-death participants that are
// still Active, in join order.
func (s *Session) ParticipantIDs() []string {
	if s.SuddenDeath == nil {
		return nil
	}
	var ids []string
	for i := range s.Players {
		p := &s.Players[i]
		if p.IsActive() && s.SuddenDeath.Includes(p.ID) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
