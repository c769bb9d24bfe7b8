package domain

import "time"

// Vote is one round's ballot cast by one seat for one map. Multiplayer
// sessions only. At most one vote exists per (session, seat, round).
type Vote struct {
	ID        int64
	SessionID string
	SeatID    string
	MapID     string
	Round     int
	CreatedAt time.Time
}

// votesForRound filters votes cast in the given round.
func votesForRound(votes []Vote, round int) []Vote {
	filtered := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if v.Round == round {
			filtered = append(filtered, v)
		}
	}
	return filtered
}
