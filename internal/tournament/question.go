package tournament

// Question is a single trivia prompt. It is treated as an immutable value.
type Question struct {
	Topic     string   `json:"topic"`
	Text      string   `json:"text"`
	Answer    string   `json:"answer"`
	SourceIDs []string `json:"source_ids,omitempty"`
}

// QuestionQueue is a FIFO of unused questions for one tour.
type QuestionQueue []Question

// Pop removes and returns the head of the queue.
func (q *QuestionQueue) Pop() (Question, bool) {
	if len(*q) == 0 {
		return Question{}, false
	}
	head := (*q)[0]
	*q = (*q)[1:]
	return head, true
}

// PoolRequest describes the questions a provider should produce. Tour
// queues are keyed 1..Tours; Reserve extra questions go under ReserveTour.
type PoolRequest struct {
	ChatID        string     `json:"chat_id"`
	Topics        []string   `json:"topics"`
	Tours         int        `json:"tours"`
	RoundsPerTour int        `json:"rounds_per_tour"`
	Players       []string   `json:"players"`
	Language      string     `json:"language"`
	Mode          SourceMode `json:"mode"`
	Reserve       int        `json:"reserve"`
	ReserveTopic  string     `json:"reserve_topic"`
	Exclude       []string   `json:"exclude,omitempty"`
}

// PerTour returns how many questions one tour consumes.
func (r PoolRequest) PerTour() int {
	return r.RoundsPerTour * len(r.Players)
}
