package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/louisbranch/mapveto/internal/veto/audit"
	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// sessionState is the full per-session negotiation state loaded before a
// turn mutation.
type sessionState struct {
	session domain.Session
	seats   []domain.Seat
	maps    []domain.SessionMap
	votes   []domain.Vote
}

func (s *Service) loadSessionState(ctx context.Context, sessionID string, withVotes bool) (sessionState, error) {
	sess, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return sessionState{}, mapStorageErr(err)
	}
	seats, err := s.stores.Seats.ListSeats(ctx, sessionID)
	if err != nil {
		return sessionState{}, fmt.Errorf("list seats: %w", err)
	}
	maps, err := s.stores.Maps.ListMaps(ctx, sessionID)
	if err != nil {
		return sessionState{}, fmt.Errorf("list maps: %w", err)
	}
	state := sessionState{session: sess, seats: seats, maps: maps}
	if withVotes {
		state.votes, err = s.stores.Votes.ListVotes(ctx, sessionID, sess.CurrentRound)
		if err != nil {
			return sessionState{}, fmt.Errorf("list votes: %w", err)
		}
	}
	return state, nil
}

// SubmitBan applies one ABBA ban on behalf of an authenticated seat. The
// advanced session, the ban, and the winner promotion when the ban decides
// the match all commit in a single guarded transaction.
func (s *Service) SubmitBan(ctx context.Context, seatID, mapID string) (domain.BanOutcome, error) {
	seat, err := s.stores.Seats.GetSeat(ctx, seatID)
	if err != nil {
		return domain.BanOutcome{}, mapStorageErr(err)
	}
	state, err := s.loadSessionState(ctx, seat.SessionID, false)
	if err != nil {
		return domain.BanOutcome{}, err
	}

	outcome, err := domain.ApplyBan(state.session, state.seats, state.maps, seatID, mapID, s.clock().UTC())
	if err != nil {
		return domain.BanOutcome{}, err
	}

	turn := state.session.CurrentTurn
	m := storage.Mutation{
		UpdateSession: &outcome.Session,
		BanMap: &storage.MapBan{
			MapID:    outcome.Banned.ID,
			BySeatID: seatID,
			AtTurn:   turn,
		},
		Audit: []storage.AuditEntry{
			s.recorder.Entry(state.session.ID, audit.ActionMapBanned, audit.Player(seatID), map[string]string{
				"map_id": outcome.Banned.ID,
				"turn":   strconv.Itoa(turn),
			}),
		},
	}
	if outcome.Winner != nil {
		m.PromoteWinnerMapID = outcome.Winner.ID
		m.ClearSeatIPs = true
		m.Audit = append(m.Audit, s.recorder.Entry(state.session.ID, audit.ActionSessionCompleted, audit.System, map[string]string{
			"winner_map_id": outcome.Winner.ID,
		}))
	}

	if err := s.stores.Mutations.ApplyMutation(ctx, m); err != nil {
		return domain.BanOutcome{}, wrapMutation("submit ban", err)
	}
	outcome.Session.Revision++
	return outcome, nil
}

// SubmitVote casts one multiplayer ballot on behalf of an authenticated
// seat. The final ballot of a round also resolves the round: the most-voted
// map is banned, ties break to the lowest pool order, and the vote flags
// reset for the next round.
func (s *Service) SubmitVote(ctx context.Context, seatID, mapID string) (domain.VoteOutcome, error) {
	seat, err := s.stores.Seats.GetSeat(ctx, seatID)
	if err != nil {
		return domain.VoteOutcome{}, mapStorageErr(err)
	}
	state, err := s.loadSessionState(ctx, seat.SessionID, true)
	if err != nil {
		return domain.VoteOutcome{}, err
	}

	outcome, err := domain.ApplyVote(state.session, state.seats, state.maps, state.votes, seatID, mapID, s.clock().UTC())
	if err != nil {
		return domain.VoteOutcome{}, err
	}

	round := state.session.CurrentRound
	m := storage.Mutation{
		UpdateSession: &outcome.Session,
		InsertVote:    &outcome.Vote,
		MarkSeatVoted: seatID,
		Audit: []storage.AuditEntry{
			s.recorder.Entry(state.session.ID, audit.ActionVoteCast, audit.Player(seatID), map[string]string{
				"map_id": mapID,
				"round":  strconv.Itoa(round),
			}),
		},
	}
	if outcome.RoundResolved {
		m.BanMap = &storage.MapBan{MapID: outcome.Banned.ID, AtTurn: round}
		m.ResetVoteFlags = true
		m.Audit = append(m.Audit, s.recorder.Entry(state.session.ID, audit.ActionRoundResolved, audit.System, map[string]string{
			"banned_map_id": outcome.Banned.ID,
			"round":         strconv.Itoa(round),
			"tie_break":     strconv.FormatBool(outcome.TieBreak),
		}))
	}
	if outcome.Winner != nil {
		m.PromoteWinnerMapID = outcome.Winner.ID
		m.ClearSeatIPs = true
		m.Audit = append(m.Audit, s.recorder.Entry(state.session.ID, audit.ActionSessionCompleted, audit.System, map[string]string{
			"winner_map_id": outcome.Winner.ID,
		}))
	}

	if err := s.stores.Mutations.ApplyMutation(ctx, m); err != nil {
		return domain.VoteOutcome{}, wrapMutation("submit vote", err)
	}
	outcome.Session.Revision++
	return outcome, nil
}

// CheckAndApplyTimeout applies the automatic action for an expired turn
// timer, if one is due. A session that is paused, finished, or still within
// its timer reports Applied=false with no writes. Concurrent callers race on
// the session revision; exactly one timeout commits.
func (s *Service) CheckAndApplyTimeout(ctx context.Context, sessionID string) (domain.TimeoutOutcome, error) {
	state, err := s.loadSessionState(ctx, sessionID, true)
	if err != nil {
		return domain.TimeoutOutcome{}, err
	}

	turn := state.session.CurrentTurn
	round := state.session.CurrentRound
	outcome, err := domain.ApplyTimeout(state.session, state.seats, state.maps, state.votes, s.clock().UTC())
	if err != nil {
		return domain.TimeoutOutcome{}, err
	}
	if !outcome.Applied {
		return outcome, nil
	}

	detail := map[string]string{
		"banned_map_id": outcome.Banned.ID,
	}
	ban := &storage.MapBan{MapID: outcome.Banned.ID}
	m := storage.Mutation{UpdateSession: &outcome.Session}
	if outcome.RoundResolved {
		ban.AtTurn = round
		m.ResetVoteFlags = true
		detail["round"] = strconv.Itoa(round)
	} else {
		ban.BySeatID = outcome.DueSeatID
		ban.AtTurn = turn
		detail["seat_id"] = outcome.DueSeatID
		detail["turn"] = strconv.Itoa(turn)
	}
	m.BanMap = ban
	m.Audit = []storage.AuditEntry{
		s.recorder.Entry(sessionID, audit.ActionTimeoutApplied, audit.System, detail),
	}
	if outcome.Winner != nil {
		m.PromoteWinnerMapID = outcome.Winner.ID
		m.ClearSeatIPs = true
		m.Audit = append(m.Audit, s.recorder.Entry(sessionID, audit.ActionSessionCompleted, audit.System, map[string]string{
			"winner_map_id": outcome.Winner.ID,
		}))
	}

	if err := s.stores.Mutations.ApplyMutation(ctx, m); err != nil {
		return domain.TimeoutOutcome{}, wrapMutation("apply timeout", err)
	}
	outcome.Session.Revision++
	return outcome, nil
}
