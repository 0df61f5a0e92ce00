package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/lox/quiztour/internal/i18n"
	"github.com/lox/quiztour/internal/tournament"
)

// completeTour publishes standings and applies the tour-end cut:
//
//   - three or more players outside the lowest group: the whole group goes;
//   - a single lowest player goes as long as anyone remains;
//   - otherwise the lowest group plays sudden death.
//
// Once the field is down to three, any remaining tie group is settled by
// sudden death before the next tour.
func (e *Engine) completeTour(ctx context.Context, s *tournament.Session) error {
	s.TurnQueue = nil
	s.CurrentRound = 0
	e.announceStandings(ctx, s, e.printer(s).Sprintf(i18n.StandingsHeader, s.CurrentTour))

	if s.EliminateLowest && s.ActiveCount() > 1 {
		active := s.ActivePlayers()
		_, lowest := tournament.LowestGroup(active)
		remaining := len(active) - len(lowest)
		switch {
		case remaining >= 3:
			e.eliminate(ctx, s, lowest)
		case remaining >= 1 && len(lowest) == 1:
			e.eliminate(ctx, s, lowest)
		case remaining >= 1:
			return e.startSuddenDeath(ctx, s, lowest)
		}
		if started, err := e.settleRemainingTies(ctx, s); started || err != nil {
			return err
		}
	}
	return e.nextTour(ctx, s)
}

// settleRemainingTies starts sudden death for the lowest tie group once
// three or fewer players remain.
func (e *Engine) settleRemainingTies(ctx context.Context, s *tournament.Session) (bool, error) {
	if !s.EliminateLowest || s.ActiveCount() > 3 || s.ActiveCount() < 2 {
		return false, nil
	}
	groups := tournament.TieGroups(s.ActivePlayers())
	if len(groups) == 0 {
		return false, nil
	}
	return true, e.startSuddenDeath(ctx, s, groups[0])
}

func (e *Engine) eliminate(ctx context.Context, s *tournament.Session, players []*tournament.Player) {
	names := make([]string, 0, len(players))
	for _, p := range players {
		p.Status = tournament.PlayerEliminated
		p.EliminatedInTour = s.CurrentTour
		names = append(names, p.Name)
		e.logger.Info("Player eliminated", "chat", s.ChatID, "player", p.ID, "tour", s.CurrentTour, "score", p.Score)
	}
	e.say(ctx, s, i18n.Eliminated, strings.Join(names, ", "))
}

func (e *Engine) startSuddenDeath(ctx context.Context, s *tournament.Session, group []*tournament.Player) error {
	ids := make([]string, 0, len(group))
	names := make([]string, 0, len(group))
	for _, p := range group {
		p.SuddenDeathScore = 0
		ids = append(ids, p.ID)
		names = append(names, p.Name)
	}
	s.SuddenDeathEpisodes++
	s.SuddenDeath = &tournament.SuddenDeathState{Participants: ids, Episode: s.SuddenDeathEpisodes}
	s.Status = tournament.StatusSuddenDeath
	s.TurnQueue = append([]string(nil), ids...)
	s.CurrentRound = 1

	e.logger.Info("Sudden death started", "chat", s.ChatID, "players", ids, "episode", s.SuddenDeathEpisodes)
	e.say(ctx, s, i18n.SuddenDeathStart, strings.Join(names, ", "))
	e.ensureReserve(s, len(ids))
	return e.advance(ctx, s)
}

// suddenDeathResolved reports whether the participants' sudden-death
// scores are pairwise distinct.
func suddenDeathResolved(s *tournament.Session) bool {
	seen := make(map[int]bool)
	for _, id := range s.ParticipantIDs() {
		score := s.Player(id).SuddenDeathScore
		if seen[score] {
			return false
		}
		seen[score] = true
	}
	return true
}

// resolveSuddenDeath eliminates the participant ranked last and records
// the survivors' order as their tie-break. When questions ran out before
// the scores separated, fewer incorrect answers and then join order decide.
func (e *Engine) resolveSuddenDeath(ctx context.Context, s *tournament.Session) error {
	var participants []*tournament.Player
	for _, id := range s.ParticipantIDs() {
		participants = append(participants, s.Player(id))
	}
	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if a.SuddenDeathScore != b.SuddenDeathScore {
			return a.SuddenDeathScore > b.SuddenDeathScore
		}
		return a.IncorrectAnswers < b.IncorrectAnswers
	})

	if n := len(participants); n > 1 {
		for i, p := range participants[:n-1] {
			p.TieBreak = n - i
		}
		e.eliminate(ctx, s, participants[n-1:])
	}
	for i := range s.Players {
		s.Players[i].SuddenDeathScore = 0
	}

	e.logger.Info("Sudden death resolved", "chat", s.ChatID, "episode", s.SuddenDeath.Episode)
	s.SuddenDeath = nil
	s.Status = tournament.StatusInProgress
	s.TurnQueue = nil
	s.CurrentRound = 0
	e.say(ctx, s, i18n.SuddenDeathResolved)

	if started, err := e.settleRemainingTies(ctx, s); started || err != nil {
		return err
	}
	return e.nextTour(ctx, s)
}

// nextTour moves to the following tour, or finishes the match when the
// last tour is done or a single player remains.
func (e *Engine) nextTour(ctx context.Context, s *tournament.Session) error {
	s.TurnQueue = nil
	s.CurrentRound = 0
	if s.CurrentTour >= s.Tours || s.ActiveCount() <= 1 {
		return e.finish(ctx, s, tournament.StatusCompleted)
	}

	s.CurrentTour++
	for i := range s.Players {
		s.Players[i].TieBreak = 0
	}
	e.say(ctx, s, i18n.TourStart, s.CurrentTour, s.Tours, s.Topic(s.CurrentTour))

	if e.cfg.TourBreak <= 0 {
		return e.beginTour(ctx, s)
	}
	until := e.clock.Now().Add(e.cfg.TourBreak)
	s.BreakUntil = &until
	if err := e.save(ctx, s); err != nil {
		return err
	}
	e.say(ctx, s, i18n.TourBreak, int(e.cfg.TourBreak.Seconds()))
	e.armBreakTimer(s.ChatID, until, e.cfg.TourBreak)
	return nil
}

// announceStandings posts the standings table under header.
func (e *Engine) announceStandings(ctx context.Context, s *tournament.Session, header string) {
	p := e.printer(s)
	var b strings.Builder
	b.WriteString(header)
	place := 0
	for _, player := range tournament.Standings(s) {
		switch player.Status {
		case tournament.PlayerActive:
			place++
			b.WriteString("\n" + p.Sprintf(i18n.StandingsRow, place, player.Name, player.Score, player.CorrectAnswers, player.IncorrectAnswers))
		case tournament.PlayerEliminated:
			b.WriteString("\n" + p.Sprintf(i18n.StandingsRowOut, player.Name, player.Score))
		}
	}
	e.send(ctx, s.ChatID, b.String())
}
