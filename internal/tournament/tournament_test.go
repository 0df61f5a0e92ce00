package tournament

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *Session {
	s := NewSession("chat-1", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	s.Tours = 2
	s.Players = []Player{
		{ID: "a", Name: "Alice", Status: PlayerActive, Score: 3, IncorrectAnswers: 1},
		{ID: "b", Name: "Bob", Status: PlayerActive, Score: 5},
		{ID: "c", Name: "Carol", Status: PlayerEliminated, Score: 9},
		{ID: "d", Name: "Dave", Status: PlayerActive, Score: 3},
		{ID: "e", Name: "Eve", Status: PlayerSpectator},
	}
	return s
}

func TestStandingsOrdering(t *testing.T) {
	t.Parallel()
	s := testSession()

	got := Standings(s)
	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.ID
	}

	// Active before eliminated; equal scores fall back to fewer incorrect answers.
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, ids)
	assert.Equal(t, "a", s.Players[0].ID, "standings must not reorder the session")
}

func TestStandingsUsesTieBreak(t *testing.T) {
	t.Parallel()
	s := testSession()
	s.Player("a").IncorrectAnswers = 0
	s.Player("a").TieBreak = 2
	s.Player("d").TieBreak = 1

	got := Standings(s)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "d", got[2].ID)
}

func TestLowestGroup(t *testing.T) {
	t.Parallel()
	s := testSession()

	minScore, group := LowestGroup(s.ActivePlayers())
	assert.Equal(t, 3, minScore)
	require.Len(t, group, 2)
	assert.Equal(t, "a", group[0].ID)
	assert.Equal(t, "d", group[1].ID)

	_, empty := LowestGroup(nil)
	assert.Empty(t, empty)
}

func TestTieGroups(t *testing.T) {
	t.Parallel()
	players := []*Player{
		{ID: "a", Score: 4},
		{ID: "b", Score: 2},
		{ID: "c", Score: 4},
		{ID: "d", Score: 2, TieBreak: 1},
		{ID: "e", Score: 1},
	}

	groups := TieGroups(players)
	require.Len(t, groups, 1)
	assert.Equal(t, "a", groups[0][0].ID)
	assert.Equal(t, "c", groups[0][1].ID)

	players[3].TieBreak = 0
	groups = TieGroups(players)
	require.Len(t, groups, 2)
	assert.Equal(t, 2, groups[0][0].Score, "lowest tie group comes first")
}

func TestBuildResultPlacesActivePlayersOnly(t *testing.T) {
	t.Parallel()
	s := testSession()
	started := s.CreatedAt
	s.StartedAt = &started
	s.Status = StatusCompleted
	s.CurrentTour = 3
	s.AskedQuestions = make([]Question, 7)
	s.Player("c").EliminatedInTour = 1

	result := BuildResult("r-1", s, started.Add(10*time.Minute))

	require.Len(t, result.Players, 4, "spectators are not part of the result")
	assert.Equal(t, 1, result.Players[0].Placement)
	assert.Equal(t, "b", result.Players[0].PlayerID)
	assert.Equal(t, 2, result.Players[1].Placement)
	assert.Equal(t, 3, result.Players[2].Placement)
	assert.Zero(t, result.Players[3].Placement)
	assert.Equal(t, 1, result.Players[3].EliminatedInTour)

	assert.Equal(t, 7, result.Statistics.QuestionsAsked)
	assert.Equal(t, 2, result.Statistics.ToursPlayed)
	assert.Equal(t, 10*time.Minute, result.Statistics.Duration)

	winner, ok := result.Winner()
	require.True(t, ok)
	assert.Equal(t, "Bob", winner.Name)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()
	s := testSession()
	s.QuestionsByTour[1] = QuestionQueue{{Text: "q1", Answer: "a1"}}
	s.SetCurrentQuestion(Question{Text: "q0"}, "a", s.CreatedAt)
	s.SuddenDeath = &SuddenDeathState{Participants: []string{"a", "d"}}

	c := s.Clone()
	c.Player("a").Score = 100
	c.QuestionsByTour[1][0].Text = "changed"
	c.SuddenDeath.Participants[0] = "x"

	assert.Equal(t, 3, s.Player("a").Score)
	assert.Equal(t, "q1", s.QuestionsByTour[1][0].Text)
	assert.Equal(t, "a", s.SuddenDeath.Participants[0])
	require.NotNil(t, c.CurrentQuestionAskedAt)
	assert.True(t, c.CurrentQuestionAskedAt.Equal(*s.CurrentQuestionAskedAt))
}

func TestQuestionQueuePop(t *testing.T) {
	t.Parallel()
	q := QuestionQueue{{Text: "one"}, {Text: "two"}}

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "one", first.Text)
	assert.Len(t, q, 1)

	_, _ = q.Pop()
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestSessionHelpers(t *testing.T) {
	t.Parallel()
	s := testSession()
	s.Topics = []string{"History", "Science"}
	s.SuddenDeath = &SuddenDeathState{Participants: []string{"d", "c", "a"}}

	assert.Equal(t, 3, s.ActiveCount())
	assert.Equal(t, []string{"a", "b", "d"}, s.ActivePlayerIDs())
	assert.Equal(t, []string{"a", "d"}, s.ParticipantIDs(), "eliminated participants are dropped")
	assert.Equal(t, "Science", s.Topic(2))
	assert.Equal(t, "", s.Topic(3))
	assert.Nil(t, s.Player("zzz"))

	s.SetCurrentQuestion(Question{Text: "q"}, "a", s.CreatedAt)
	assert.True(t, s.HasQuestionInFlight())
	s.ClearCurrentQuestion()
	assert.False(t, s.HasQuestionInFlight())
	assert.Nil(t, s.CurrentPlayerID)
	assert.Nil(t, s.CurrentQuestionAskedAt)
}
