package domain

import (
	"strconv"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

// abbaOrder is the fixed ABBA ban sequence, indexed by currentTurn mod 4.
var abbaOrder = [4]SeatRole{RolePlayerA, RolePlayerB, RolePlayerB, RolePlayerA}

// ActiveSeat computes the seat whose ban is due. It is a pure function of the
// session format, turn counter, and seat assignments; the engine, not the
// caller, decides whose turn it is.
//
// Multiplayer sessions have no single active seat; callers use DueSeats.
func ActiveSeat(format Format, currentTurn int, seats []Seat) (Seat, error) {
	if format != FormatABBA {
		return Seat{}, apperrors.New(apperrors.CodeValidationFormat, "only ABBA sessions have a single active seat")
	}
	role := abbaOrder[currentTurn%len(abbaOrder)]
	seat, ok := SeatByRole(seats, role)
	if !ok {
		return Seat{}, apperrors.WithMetadata(apperrors.CodeNotFound, "active seat role is not assigned", map[string]string{
			"Role": string(role),
		})
	}
	return seat, nil
}

// DueSeats returns the seats expected to act: the single active seat in ABBA,
// every seat that has not voted this round in multiplayer.
func DueSeats(format Format, currentTurn int, seats []Seat) []Seat {
	if format == FormatABBA {
		seat, err := ActiveSeat(format, currentTurn, seats)
		if err != nil {
			return nil
		}
		return []Seat{seat}
	}
	due := make([]Seat, 0, len(seats))
	for _, seat := range seats {
		if !seat.HasVoted {
			due = append(due, seat)
		}
	}
	return due
}

// BanOutcome captures the result of an accepted ABBA ban.
type BanOutcome struct {
	Session Session
	Banned  SessionMap
	// Winner is set when this ban left one map standing; the session in the
	// outcome is then COMPLETE.
	Winner *SessionMap
}

// ApplyBan validates and applies one ABBA ban. The outcome carries the
// advanced session and the updated map records for the caller to persist
// atomically.
func ApplyBan(sess Session, seats []Seat, maps []SessionMap, seatID, mapID string, now time.Time) (BanOutcome, error) {
	if sess.Format != FormatABBA {
		return BanOutcome{}, apperrors.New(apperrors.CodeValidationFormat, "bans only apply to ABBA sessions")
	}
	if sess.Status != StatusInProgress {
		return BanOutcome{}, apperrors.WithMetadata(apperrors.CodeConflictStatus, "session is not in progress", map[string]string{
			"Status": string(sess.Status),
		})
	}

	seat, ok := FindSeat(seats, seatID)
	if !ok {
		return BanOutcome{}, apperrors.New(apperrors.CodeNotFound, "seat not found in session")
	}
	active, err := ActiveSeat(sess.Format, sess.CurrentTurn, seats)
	if err != nil {
		return BanOutcome{}, err
	}
	if seat.ID != active.ID {
		return BanOutcome{}, apperrors.WithMetadata(apperrors.CodeConflictNotYourTurn, "another seat's ban is due", map[string]string{
			"DueRole": string(active.Role),
			"GotRole": string(seat.Role),
		})
	}

	target, ok := FindMap(maps, mapID)
	if !ok {
		return BanOutcome{}, apperrors.New(apperrors.CodeNotFound, "map not found in session pool")
	}
	if target.State != MapStateAvailable {
		return BanOutcome{}, apperrors.WithMetadata(apperrors.CodeConflictMapUnavailable, "map is no longer available", map[string]string{
			"MapID": target.ID,
			"State": string(target.State),
		})
	}

	turn := sess.CurrentTurn
	target.State = MapStateBanned
	target.BannedBySeatID = seat.ID
	target.BannedAtTurn = &turn

	sess.CurrentTurn++
	started := now.UTC()
	sess.TimerStartedAt = &started
	sess.UpdatedAt = started

	outcome := BanOutcome{Session: sess, Banned: target}
	return finishIfDecided(outcome, maps, target, now)
}

// finishIfDecided promotes the last remaining map to WINNER and completes the
// session when the ban just applied was the deciding one.
func finishIfDecided(outcome BanOutcome, maps []SessionMap, justBanned SessionMap, now time.Time) (BanOutcome, error) {
	remaining := make([]SessionMap, 0, len(maps))
	for _, m := range AvailableMaps(maps) {
		if m.ID != justBanned.ID {
			remaining = append(remaining, m)
		}
	}
	if len(remaining) != 1 {
		return outcome, nil
	}

	winner := remaining[0]
	winner.State = MapStateWinner
	outcome.Winner = &winner

	completed, err := CompleteSession(outcome.Session, now)
	if err != nil {
		return BanOutcome{}, err
	}
	outcome.Session = completed
	return outcome, nil
}

// VoteOutcome captures the result of an accepted multiplayer vote.
type VoteOutcome struct {
	Session Session
	Vote    Vote
	// RoundResolved is true when this was the final ballot of the round.
	RoundResolved bool
	// TieBreak is true when the resolved ban fell back to pool order.
	TieBreak bool
	// Banned is the map the resolved round removed.
	Banned *SessionMap
	// Winner is set when the resolution left one map standing.
	Winner *SessionMap
}

// ApplyVote validates and applies one multiplayer ballot. When the ballot is
// the last of the round, the outcome also carries the round resolution: the
// most-voted map banned (ties broken by lowest pool order), the round counter
// advanced, and vote flags due for reset.
func ApplyVote(sess Session, seats []Seat, maps []SessionMap, votes []Vote, seatID, mapID string, now time.Time) (VoteOutcome, error) {
	if sess.Format != FormatMultiplayer {
		return VoteOutcome{}, apperrors.New(apperrors.CodeValidationFormat, "votes only apply to multiplayer sessions")
	}
	if sess.Status != StatusInProgress {
		return VoteOutcome{}, apperrors.WithMetadata(apperrors.CodeConflictStatus, "session is not in progress", map[string]string{
			"Status": string(sess.Status),
		})
	}

	seat, ok := FindSeat(seats, seatID)
	if !ok {
		return VoteOutcome{}, apperrors.New(apperrors.CodeNotFound, "seat not found in session")
	}
	if seat.HasVoted {
		return VoteOutcome{}, apperrors.WithMetadata(apperrors.CodeConflictAlreadyVoted, "seat already voted this round", map[string]string{
			"Round": strconv.Itoa(sess.CurrentRound),
		})
	}

	target, ok := FindMap(maps, mapID)
	if !ok {
		return VoteOutcome{}, apperrors.New(apperrors.CodeNotFound, "map not found in session pool")
	}
	if target.State != MapStateAvailable {
		return VoteOutcome{}, apperrors.WithMetadata(apperrors.CodeConflictMapUnavailable, "map is no longer available", map[string]string{
			"MapID": target.ID,
			"State": string(target.State),
		})
	}

	castAt := now.UTC()
	ballot := Vote{
		SessionID: sess.ID,
		SeatID:    seat.ID,
		MapID:     target.ID,
		Round:     sess.CurrentRound,
		CreatedAt: castAt,
	}
	sess.UpdatedAt = castAt
	outcome := VoteOutcome{Session: sess, Vote: ballot}

	// Count outstanding ballots excluding this seat's.
	pending := 0
	for _, other := range seats {
		if other.ID != seat.ID && !other.HasVoted {
			pending++
		}
	}
	if pending > 0 {
		return outcome, nil
	}

	tally := append(votesForRound(votes, sess.CurrentRound), ballot)
	return resolveRound(outcome, maps, tally, now)
}

// resolveRound bans the most-voted map, advances the round, and completes the
// session when one map remains. Ties and empty tallies fall back to the
// lowest pool order among the remaining maps.
func resolveRound(outcome VoteOutcome, maps []SessionMap, tally []Vote, now time.Time) (VoteOutcome, error) {
	sess := outcome.Session

	banned, tie := mostVotedMap(maps, tally)
	if banned == nil {
		return VoteOutcome{}, apperrors.New(apperrors.CodeIntegrityCascade, "round resolution found no available map")
	}

	round := sess.CurrentRound
	banned.State = MapStateBanned
	banned.BannedAtTurn = &round

	sess.CurrentRound++
	started := now.UTC()
	sess.TimerStartedAt = &started
	sess.UpdatedAt = started

	outcome.Session = sess
	outcome.RoundResolved = true
	outcome.TieBreak = tie
	outcome.Banned = banned

	remaining := make([]SessionMap, 0, len(maps))
	for _, m := range AvailableMaps(maps) {
		if m.ID != banned.ID {
			remaining = append(remaining, m)
		}
	}
	if len(remaining) == 1 {
		winner := remaining[0]
		winner.State = MapStateWinner
		outcome.Winner = &winner

		completed, err := CompleteSession(sess, now)
		if err != nil {
			return VoteOutcome{}, err
		}
		outcome.Session = completed
	}
	return outcome, nil
}

// mostVotedMap returns the available map with the highest ballot count.
// Ties and empty tallies resolve to the lowest pool order; the second return
// reports whether a tie-break or abstention fallback was used.
func mostVotedMap(maps []SessionMap, tally []Vote) (*SessionMap, bool) {
	available := AvailableMaps(maps)
	if len(available) == 0 {
		return nil, false
	}

	counts := make(map[string]int, len(available))
	for _, v := range tally {
		counts[v.MapID]++
	}

	best := available[0]
	bestCount := counts[best.ID]
	contested := false
	for _, m := range available[1:] {
		c := counts[m.ID]
		if c > bestCount {
			best = m
			bestCount = c
			contested = false
		} else if c == bestCount {
			contested = true
		}
	}
	return &best, contested || bestCount == 0
}

// TimerExpired reports whether the turn timer has run out.
func TimerExpired(sess Session, now time.Time) bool {
	if sess.TimerStartedAt == nil {
		return false
	}
	return now.Sub(*sess.TimerStartedAt) >= time.Duration(sess.TimerSeconds)*time.Second
}

// TimeoutOutcome captures an automatic action applied on timer expiration.
type TimeoutOutcome struct {
	// Applied is false when no timeout was due; the rest of the outcome is
	// then zero.
	Applied bool
	Session Session
	// DueSeatID is the seat the system acted for (ABBA only).
	DueSeatID string
	Banned    *SessionMap
	Winner    *SessionMap
	// RoundResolved reports a multiplayer round resolution with abstentions.
	RoundResolved bool
	TieBreak      bool
}

// ApplyTimeout performs the automatic action for an expired turn timer: an
// auto-ban of the first remaining map by pool order for ABBA, or a round
// resolution treating non-voters as abstaining for multiplayer. A session
// that is not IN_PROGRESS or whose timer still runs yields Applied=false;
// an administrator pause therefore always wins over a pending timeout.
func ApplyTimeout(sess Session, seats []Seat, maps []SessionMap, votes []Vote, now time.Time) (TimeoutOutcome, error) {
	if sess.Status != StatusInProgress || !TimerExpired(sess, now) {
		return TimeoutOutcome{}, nil
	}

	switch sess.Format {
	case FormatABBA:
		active, err := ActiveSeat(sess.Format, sess.CurrentTurn, seats)
		if err != nil {
			return TimeoutOutcome{}, err
		}
		available := AvailableMaps(maps)
		if len(available) == 0 {
			return TimeoutOutcome{}, apperrors.New(apperrors.CodeIntegrityCascade, "timed-out session has no available map")
		}
		outcome, err := ApplyBan(sess, seats, maps, active.ID, available[0].ID, now)
		if err != nil {
			return TimeoutOutcome{}, err
		}
		return TimeoutOutcome{
			Applied:   true,
			Session:   outcome.Session,
			DueSeatID: active.ID,
			Banned:    &outcome.Banned,
			Winner:    outcome.Winner,
		}, nil

	case FormatMultiplayer:
		tally := votesForRound(votes, sess.CurrentRound)
		resolved, err := resolveRound(VoteOutcome{Session: sess}, maps, tally, now)
		if err != nil {
			return TimeoutOutcome{}, err
		}
		return TimeoutOutcome{
			Applied:       true,
			Session:       resolved.Session,
			Banned:        resolved.Banned,
			Winner:        resolved.Winner,
			RoundResolved: true,
			TieBreak:      resolved.TieBreak,
		}, nil

	default:
		return TimeoutOutcome{}, apperrors.New(apperrors.CodeValidationFormat, "unsupported session format")
	}
}
