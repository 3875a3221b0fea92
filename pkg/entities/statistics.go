package entities

// GameStat is the per-game counters kept on an account
type GameStat struct {
	Plays  int   `json:"plays" bson:"plays"`
	Wins   int   `json:"wins" bson:"wins"`
	MaxWin int64 `json:"maxWin" bson:"maxWin"`
}

// WinRate calculates the player's win rate as a percentage
func (s GameStat) WinRate() float64 {
	if s.Plays == 0 {
		return 0.0
	}
	return float64(s.Wins) / float64(s.Plays) * 100.0
}

// Record returns the stat updated with one more play
func (s GameStat) Record(won bool, winnings int64) GameStat {
	s.Plays++
	if won {
		s.Wins++
		if winnings > s.MaxWin {
			s.MaxWin = winnings
		}
	}
	return s
}
