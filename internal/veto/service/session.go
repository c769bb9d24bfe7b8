package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
	"github.com/louisbranch/mapveto/internal/veto/audit"
	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// expireSweepBatchSize bounds how many sessions one sweep pass claims.
const expireSweepBatchSize = 100

// CreateSession creates a DRAFT session for the given administrator.
func (s *Service) CreateSession(ctx context.Context, actor audit.Actor, input domain.CreateSessionInput) (domain.Session, error) {
	sess, err := domain.CreateSession(input, s.limits, s.clock, s.idGenerator)
	if err != nil {
		return domain.Session{}, err
	}

	entry := s.recorder.Entry(sess.ID, audit.ActionSessionCreated, actor, map[string]string{
		"name":   sess.Name,
		"format": string(sess.Format),
	})
	err = s.stores.Mutations.ApplyMutation(ctx, storage.Mutation{
		InsertSession: &sess,
		Audit:         []storage.AuditEntry{entry},
	})
	if err != nil {
		return domain.Session{}, wrapMutation("create session", err)
	}
	return sess, nil
}

// AssignSeatResult carries the created seat and its one-time token handout.
type AssignSeatResult struct {
	Seat domain.Seat
	// Token is returned exactly once, at assignment.
	Token string
	// Ready reports whether the assignment completed the session setup and
	// moved it to WAITING.
	Ready bool
}

// AssignSeat seats a team in a DRAFT session and issues its access token.
// When the seat completes the roster and the pool is already set, the session
// moves to WAITING in the same transaction.
func (s *Service) AssignSeat(ctx context.Context, actor audit.Actor, input domain.AssignSeatInput) (AssignSeatResult, error) {
	sess, err := s.stores.Sessions.GetSession(ctx, input.SessionID)
	if err != nil {
		return AssignSeatResult{}, mapStorageErr(err)
	}
	if sess.Status != domain.StatusDraft {
		return AssignSeatResult{}, apperrors.WithMetadata(apperrors.CodeConflictStatus, "seats are only assigned in draft", map[string]string{
			"Status": string(sess.Status),
		})
	}

	seats, err := s.stores.Seats.ListSeats(ctx, sess.ID)
	if err != nil {
		return AssignSeatResult{}, fmt.Errorf("list seats: %w", err)
	}
	maps, err := s.stores.Maps.ListMaps(ctx, sess.ID)
	if err != nil {
		return AssignSeatResult{}, fmt.Errorf("list maps: %w", err)
	}

	// Token entropy makes a collision vanishingly rare; one retry covers
	// the realistic case, a second collision is an integrity event.
	for attempt := 0; attempt < 2; attempt++ {
		tokenValue, expiresAt, err := s.tokens.Generate(sess.ExpiresAt.Sub(s.clock().UTC()))
		if err != nil {
			return AssignSeatResult{}, fmt.Errorf("generate seat token: %w", err)
		}
		seat, err := domain.NewSeat(input, sess.Format, tokenValue, expiresAt, s.clock, s.idGenerator)
		if err != nil {
			return AssignSeatResult{}, err
		}

		m := storage.Mutation{
			InsertSeat: &seat,
			Audit: []storage.AuditEntry{
				s.recorder.Entry(sess.ID, audit.ActionSeatAssigned, actor, map[string]string{
					"seat_id":   seat.ID,
					"role":      string(seat.Role),
					"team_name": seat.TeamName,
				}),
			},
		}
		// The revision guard rides along even when the session stays in
		// DRAFT, so concurrent setup writes serialize and a loser re-reads
		// the completed roster instead of leaving readiness unfired.
		ready := len(seats)+1 == sess.PlayerCount && len(maps) == sess.MapPoolSize
		if ready {
			readied, err := domain.ReadySession(sess, s.clock())
			if err != nil {
				return AssignSeatResult{}, err
			}
			m.UpdateSession = &readied
		} else {
			touched := sess
			touched.UpdatedAt = s.clock().UTC()
			m.UpdateSession = &touched
		}

		err = s.stores.Mutations.ApplyMutation(ctx, m)
		if errors.Is(err, storage.ErrTokenExists) {
			continue
		}
		if err != nil {
			return AssignSeatResult{}, wrapMutation("assign seat", err)
		}
		return AssignSeatResult{Seat: seat, Token: tokenValue, Ready: ready}, nil
	}
	return AssignSeatResult{}, apperrors.New(apperrors.CodeIntegrityTokenCollision, "seat token collided twice")
}

// SetMapPool attaches the candidate map pool to a DRAFT session. The pool is
// set exactly once and must match the configured size. When the roster is
// already complete the session moves to WAITING in the same transaction.
func (s *Service) SetMapPool(ctx context.Context, actor audit.Actor, sessionID string, inputs []domain.MapInput) ([]domain.SessionMap, error) {
	sess, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	if sess.Status != domain.StatusDraft {
		return nil, apperrors.WithMetadata(apperrors.CodeConflictStatus, "map pool is only set in draft", map[string]string{
			"Status": string(sess.Status),
		})
	}

	existing, err := s.stores.Maps.ListMaps(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	if len(existing) > 0 {
		return nil, apperrors.New(apperrors.CodeConflictStatus, "map pool is already set")
	}

	maps, err := domain.BuildPool(sessionID, inputs, sess.MapPoolSize, s.idGenerator)
	if err != nil {
		return nil, err
	}

	seats, err := s.stores.Seats.ListSeats(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}

	m := storage.Mutation{
		InsertMaps: maps,
		Audit: []storage.AuditEntry{
			s.recorder.Entry(sess.ID, audit.ActionMapPoolSet, actor, map[string]int{
				"pool_size": len(maps),
			}),
		},
	}
	// Same revision-guard rule as AssignSeat: pool writes serialize with
	// concurrent seat assignments.
	if len(seats) == sess.PlayerCount {
		readied, err := domain.ReadySession(sess, s.clock())
		if err != nil {
			return nil, err
		}
		m.UpdateSession = &readied
	} else {
		touched := sess
		touched.UpdatedAt = s.clock().UTC()
		m.UpdateSession = &touched
	}

	if err := s.stores.Mutations.ApplyMutation(ctx, m); err != nil {
		return nil, wrapMutation("set map pool", err)
	}
	return maps, nil
}

// StartSession moves a WAITING session to IN_PROGRESS and starts its timer.
func (s *Service) StartSession(ctx context.Context, actor audit.Actor, sessionID string) (domain.Session, error) {
	return s.transitionSession(ctx, actor, sessionID, audit.ActionSessionStarted, domain.StartSession)
}

// PauseSession freezes an IN_PROGRESS session.
func (s *Service) PauseSession(ctx context.Context, actor audit.Actor, sessionID string) (domain.Session, error) {
	return s.transitionSession(ctx, actor, sessionID, audit.ActionSessionPaused, domain.PauseSession)
}

// ResumeSession returns a PAUSED session to IN_PROGRESS with a fresh timer.
func (s *Service) ResumeSession(ctx context.Context, actor audit.Actor, sessionID string) (domain.Session, error) {
	return s.transitionSession(ctx, actor, sessionID, audit.ActionSessionResumed, domain.ResumeSession)
}

func (s *Service) transitionSession(ctx context.Context, actor audit.Actor, sessionID, action string, apply func(domain.Session, time.Time) (domain.Session, error)) (domain.Session, error) {
	sess, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, mapStorageErr(err)
	}
	next, err := apply(sess, s.clock())
	if err != nil {
		return domain.Session{}, err
	}

	err = s.stores.Mutations.ApplyMutation(ctx, storage.Mutation{
		UpdateSession: &next,
		Audit: []storage.AuditEntry{
			s.recorder.Entry(sess.ID, action, actor, nil),
		},
	})
	if err != nil {
		return domain.Session{}, wrapMutation(action, err)
	}
	next.Revision++
	return next, nil
}

// CompleteSession confirms a session is finished. The deciding ban or vote
// promotes the winner and completes the session in its own transaction, so
// an already-complete session succeeds idempotently; a session still being
// negotiated reports its missing winner.
func (s *Service) CompleteSession(ctx context.Context, actor audit.Actor, sessionID string) (domain.Session, error) {
	sess, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, mapStorageErr(err)
	}
	if sess.Status == domain.StatusComplete {
		return sess, nil
	}
	maps, err := s.stores.Maps.ListMaps(ctx, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("list maps: %w", err)
	}
	winner, ok := domain.WinnerMap(maps)
	if !ok {
		return domain.Session{}, apperrors.New(apperrors.CodeConflictWinnerMissing, "session has no winner map")
	}

	next, err := domain.CompleteSession(sess, s.clock())
	if err != nil {
		return domain.Session{}, err
	}

	err = s.stores.Mutations.ApplyMutation(ctx, storage.Mutation{
		UpdateSession: &next,
		ClearSeatIPs:  true,
		Audit: []storage.AuditEntry{
			s.recorder.Entry(sess.ID, audit.ActionSessionCompleted, actor, map[string]string{
				"winner_map_id": winner.ID,
			}),
		},
	})
	if err != nil {
		return domain.Session{}, wrapMutation("complete session", err)
	}
	next.Revision++
	return next, nil
}

// ExpireSession moves a stale DRAFT or WAITING session to EXPIRED. Expiring
// an already-expired session reports no change. The false return means the
// session was already expired.
func (s *Service) ExpireSession(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.stores.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return false, mapStorageErr(err)
	}
	next, changed, err := domain.ExpireSession(sess, s.clock().UTC())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	err = s.stores.Mutations.ApplyMutation(ctx, storage.Mutation{
		UpdateSession: &next,
		ClearSeatIPs:  true,
		Audit: []storage.AuditEntry{
			s.recorder.Entry(sess.ID, audit.ActionSessionExpired, audit.System, nil),
		},
	})
	if err != nil {
		return false, wrapMutation("expire session", err)
	}
	return true, nil
}

// ExpireStaleSessions expires every DRAFT or WAITING session past its TTL.
// Sessions claimed by a concurrent sweep are skipped, so overlapping sweeps
// converge on the same result.
func (s *Service) ExpireStaleSessions(ctx context.Context) (int, error) {
	stale, err := s.stores.Sessions.ListExpiredSessions(ctx, s.clock().UTC(), expireSweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	expired := 0
	for _, sess := range stale {
		changed, err := s.ExpireSession(ctx, sess.ID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeConflictRevision) || apperrors.IsCode(err, apperrors.CodeNotFound) {
				continue
			}
			return expired, err
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// PurgeTerminalIPs drops IP locks left on seats of finished sessions.
// Completion and expiry clear them in-transaction; this covers records
// written before a crash interrupted that cleanup.
func (s *Service) PurgeTerminalIPs(ctx context.Context) (int64, error) {
	return s.tokens.PurgeTerminalIPs(ctx)
}

// DeleteSession removes a session and everything attached to it, returning
// how many records each table lost. Audit entries survive when
// preserveAuditLogs is set; the deletion itself is always recorded as a
// global entry so no audit row references the deleted session.
func (s *Service) DeleteSession(ctx context.Context, actor audit.Actor, sessionID string, preserveAuditLogs bool) (storage.CascadeCounts, error) {
	counts, err := s.stores.Cascade.DeleteSessionCascade(ctx, sessionID, preserveAuditLogs)
	if err != nil {
		return storage.CascadeCounts{}, mapStorageErr(err)
	}

	err = s.recorder.Record(ctx, "", audit.ActionSessionDeleted, actor, map[string]any{
		"session_id":    sessionID,
		"votes":         counts.Votes,
		"seats":         counts.Seats,
		"maps":          counts.Maps,
		"audit_entries": counts.AuditEntries,
	})
	if err != nil {
		return storage.CascadeCounts{}, fmt.Errorf("record session deletion: %w", err)
	}
	return counts, nil
}
