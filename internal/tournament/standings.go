package tournament

import "sort"

// Standings returns a copy of the players ordered for display: Active players
// first, then by score descending, tie-break descending, fewer incorrect
// answers, and finally join order.
func Standings(s *Session) []Player {
	out := make([]Player, len(s.Players))
	copy(out, s.Players)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsActive() != b.IsActive() {
			return a.IsActive()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TieBreak != b.TieBreak {
			return a.TieBreak > b.TieBreak
		}
		return a.IncorrectAnswers < b.IncorrectAnswers
	})
	return out
}

// LowestGroup returns the Active players sharing the minimum score.
func LowestGroup(players []*Player) (int, []*Player) {
	if len(players) == 0 {
		return 0, nil
	}
	minScore := players[0].Score
	for _, p := range players[1:] {
		minScore = min(minScore, p.Score)
	}
	var group []*Player
	for _, p := range players {
		if p.Score == minScore {
			group = append(group, p)
		}
	}
	return minScore, group
}

// TieGroups returns the groups of two or more players that share both score
// and tie-break, ordered from the lowest score upward.
func TieGroups(players []*Player) [][]*Player {
	type key struct{ score, tieBreak int }
	buckets := make(map[key][]*Player)
	var keys []key
	for _, p := range players {
		k := key{p.Score, p.TieBreak}
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], p)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].score != keys[j].score {
			return keys[i].score < keys[j].score
		}
		return keys[i].tieBreak < keys[j].tieBreak
	})
	var groups [][]*Player
	for _, k := range keys {
		if len(buckets[k]) > 1 {
			groups = append(groups, buckets[k])
		}
	}
	return groups
}
