package service

import (
	"context"
	"time"

	"github.com/louisbranch/mapveto/internal/veto/domain"
)

// SeatView is a seat as reported to callers: the token is never included and
// the connection status is derived from the heartbeat window.
type SeatView struct {
	ID        string
	Role      domain.SeatRole
	TeamName  string
	Connected bool
	HasVoted  bool
}

// SessionView is the full negotiation state reported to admins and players.
type SessionView struct {
	Session domain.Session
	Seats   []SeatView
	Maps    []domain.SessionMap
	// DueSeatIDs are the seats expected to act right now. Empty unless the
	// session is IN_PROGRESS.
	DueSeatIDs []string
	// TimerRemaining is the time left on the running turn timer, zero when
	// no timer runs.
	TimerRemaining time.Duration
}

// GetSessionView assembles the current state of a session. A due timeout is
// applied first, so a read after a quiet period reports the auto-resolved
// state rather than a stale timer.
func (s *Service) GetSessionView(ctx context.Context, sessionID string) (SessionView, error) {
	state, err := s.loadSessionState(ctx, sessionID, false)
	if err != nil {
		return SessionView{}, err
	}

	now := s.clock().UTC()
	if state.session.Status == domain.StatusInProgress && domain.TimerExpired(state.session, now) {
		if _, err := s.CheckAndApplyTimeout(ctx, sessionID); err != nil {
			return SessionView{}, err
		}
		state, err = s.loadSessionState(ctx, sessionID, false)
		if err != nil {
			return SessionView{}, err
		}
	}

	view := SessionView{
		Session: state.session,
		Maps:    state.maps,
		Seats:   make([]SeatView, 0, len(state.seats)),
	}
	for _, seat := range state.seats {
		view.Seats = append(view.Seats, SeatView{
			ID:        seat.ID,
			Role:      seat.Role,
			TeamName:  seat.TeamName,
			Connected: seat.Connected(now),
			HasVoted:  seat.HasVoted,
		})
	}

	if state.session.Status == domain.StatusInProgress {
		for _, seat := range domain.DueSeats(state.session.Format, state.session.CurrentTurn, state.seats) {
			view.DueSeatIDs = append(view.DueSeatIDs, seat.ID)
		}
		if state.session.TimerStartedAt != nil {
			deadline := state.session.TimerStartedAt.Add(time.Duration(state.session.TimerSeconds) * time.Second)
			if remaining := deadline.Sub(now); remaining > 0 {
				view.TimerRemaining = remaining
			}
		}
	}
	return view, nil
}

// AuthenticateByToken resolves a player token to its seat and session view,
// recording the heartbeat that marks the seat connected. The first use from
// an address locks the token to it.
func (s *Service) AuthenticateByToken(ctx context.Context, tokenValue, ip string) (domain.Seat, SessionView, error) {
	seat, err := s.tokens.Authenticate(ctx, tokenValue, ip)
	if err != nil {
		return domain.Seat{}, SessionView{}, err
	}
	if err := s.tokens.RecordHeartbeat(ctx, seat.ID); err != nil {
		return domain.Seat{}, SessionView{}, err
	}

	view, err := s.GetSessionView(ctx, seat.SessionID)
	if err != nil {
		return domain.Seat{}, SessionView{}, err
	}
	return seat, view, nil
}

// Heartbeat marks a seat as still connected.
func (s *Service) Heartbeat(ctx context.Context, seatID string) error {
	return s.tokens.RecordHeartbeat(ctx, seatID)
}
