package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

// Status describes the lifecycle state of a session.
type Status string

const (
	// StatusDraft is the initial state: seats and pool are being configured.
	StatusDraft Status = "DRAFT"
	// StatusWaiting means all seats and the map pool are set.
	StatusWaiting Status = "WAITING"
	// StatusInProgress means the negotiation is live and the timer runs.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusPaused means an administrator froze the negotiation.
	StatusPaused Status = "PAUSED"
	// StatusComplete means a winner map exists. Terminal.
	StatusComplete Status = "COMPLETE"
	// StatusExpired means the session timed out before starting. Terminal.
	StatusExpired Status = "EXPIRED"
)

// Terminal reports whether no further transition can leave the status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusExpired
}

// lifecycle holds the legal forward transitions. IN_PROGRESS ⇄ PAUSED is the
// only cycle.
var lifecycle = map[Status][]Status{
	StatusDraft:      {StatusWaiting, StatusExpired},
	StatusWaiting:    {StatusInProgress, StatusExpired},
	StatusInProgress: {StatusPaused, StatusComplete},
	StatusPaused:     {StatusInProgress},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range lifecycle[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Session represents one map veto negotiation instance.
type Session struct {
	ID           string
	Name         string
	Format       Format
	Status       Status
	PlayerCount  int
	MapPoolSize  int
	TimerSeconds int
	// CurrentTurn counts accepted bans in ABBA sessions, starting at 0.
	CurrentTurn int
	// CurrentRound counts voting rounds in multiplayer sessions, starting at 1.
	CurrentRound int
	// TimerStartedAt is nil unless the session is IN_PROGRESS.
	TimerStartedAt *time.Time
	// Revision is the optimistic concurrency token bumped by every committed
	// mutation. At most one turn-mutating operation can commit per revision.
	Revision  int64
	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Limits bounds administrator-supplied session parameters.
type Limits struct {
	MinTimerSeconds int
	MaxTimerSeconds int
	MinPoolSize     int
	MaxPoolSize     int
	// SessionTTL is how long a session may sit in DRAFT or WAITING before the
	// expiry sweep claims it. Seat tokens share the same lifetime.
	SessionTTL time.Duration
}

// DefaultLimits returns the reference deployment bounds.
func DefaultLimits() Limits {
	return Limits{
		MinTimerSeconds: 10,
		MaxTimerSeconds: 600,
		MinPoolSize:     3,
		MaxPoolSize:     15,
		SessionTTL:      72 * time.Hour,
	}
}

// CreateSessionInput describes the parameters needed to create a session.
type CreateSessionInput struct {
	Name         string
	Format       Format
	TimerSeconds int
	MapPoolSize  int
}

// CreateSession validates input against limits and returns a DRAFT session
// with a generated id and timestamps.
func CreateSession(input CreateSessionInput, limits Limits, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Session{}, apperrors.New(apperrors.CodeValidationSessionName, "session name is required")
	}
	if !input.Format.Valid() {
		return Session{}, apperrors.WithMetadata(apperrors.CodeValidationFormat, "unsupported session format", map[string]string{
			"Format": string(input.Format),
		})
	}
	if input.TimerSeconds < limits.MinTimerSeconds || input.TimerSeconds > limits.MaxTimerSeconds {
		return Session{}, apperrors.WithMetadata(apperrors.CodeValidationTimerBounds, "turn timer outside configured bounds", map[string]string{
			"TimerSeconds": fmt.Sprintf("%d", input.TimerSeconds),
			"Min":          fmt.Sprintf("%d", limits.MinTimerSeconds),
			"Max":          fmt.Sprintf("%d", limits.MaxTimerSeconds),
		})
	}
	if input.MapPoolSize < limits.MinPoolSize || input.MapPoolSize > limits.MaxPoolSize {
		return Session{}, apperrors.WithMetadata(apperrors.CodeValidationPoolSizeBounds, "map pool size outside configured bounds", map[string]string{
			"MapPoolSize": fmt.Sprintf("%d", input.MapPoolSize),
			"Min":         fmt.Sprintf("%d", limits.MinPoolSize),
			"Max":         fmt.Sprintf("%d", limits.MaxPoolSize),
		})
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	createdAt := now().UTC()
	return Session{
		ID:           sessionID,
		Name:         input.Name,
		Format:       input.Format,
		Status:       StatusDraft,
		PlayerCount:  input.Format.PlayerCount(),
		MapPoolSize:  input.MapPoolSize,
		TimerSeconds: input.TimerSeconds,
		CurrentTurn:  0,
		CurrentRound: 1,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(limits.SessionTTL),
		UpdatedAt:    createdAt,
	}, nil
}

// transition moves a session to a new status, rejecting illegal edges.
func transition(s Session, to Status, now time.Time) (Session, error) {
	if !CanTransition(s.Status, to) {
		return Session{}, apperrors.WithMetadata(apperrors.CodeConflictStatus, "illegal session status transition", map[string]string{
			"From": string(s.Status),
			"To":   string(to),
		})
	}
	s.Status = to
	s.UpdatedAt = now.UTC()
	return s, nil
}

// ReadySession moves a configured DRAFT session to WAITING. It is called once
// all seats are assigned and the map pool is set.
func ReadySession(s Session, now time.Time) (Session, error) {
	return transition(s, StatusWaiting, now)
}

// StartSession moves a WAITING session to IN_PROGRESS, zeroes the turn
// counter, and starts the turn timer.
func StartSession(s Session, now time.Time) (Session, error) {
	s, err := transition(s, StatusInProgress, now)
	if err != nil {
		return Session{}, err
	}
	s.CurrentTurn = 0
	s.CurrentRound = 1
	started := now.UTC()
	s.TimerStartedAt = &started
	return s, nil
}

// PauseSession freezes an IN_PROGRESS session. The timer is not reset; no
// timeout can fire while paused.
func PauseSession(s Session, now time.Time) (Session, error) {
	return transition(s, StatusPaused, now)
}

// ResumeSession returns a PAUSED session to IN_PROGRESS and restarts the
// timer clock for the current turn.
func ResumeSession(s Session, now time.Time) (Session, error) {
	s, err := transition(s, StatusInProgress, now)
	if err != nil {
		return Session{}, err
	}
	resumed := now.UTC()
	s.TimerStartedAt = &resumed
	return s, nil
}

// CompleteSession moves an IN_PROGRESS session to COMPLETE and stops the
// timer. The caller is responsible for checking that a winner map exists and
// for purging seat IP addresses in the same transaction.
func CompleteSession(s Session, now time.Time) (Session, error) {
	s, err := transition(s, StatusComplete, now)
	if err != nil {
		return Session{}, err
	}
	s.TimerStartedAt = nil
	return s, nil
}

// ExpireSession moves a DRAFT or WAITING session past its expiry timestamp to
// EXPIRED. Expiring an already-expired session is a no-op, reported through
// the changed result rather than an error.
func ExpireSession(s Session, now time.Time) (Session, bool, error) {
	if s.Status == StatusExpired {
		return s, false, nil
	}
	if s.Status != StatusDraft && s.Status != StatusWaiting {
		return Session{}, false, apperrors.WithMetadata(apperrors.CodeConflictStatus, "only draft or waiting sessions expire", map[string]string{
			"Status": string(s.Status),
		})
	}
	if now.Before(s.ExpiresAt) {
		return Session{}, false, apperrors.New(apperrors.CodeConflictStatus, "session expiry timestamp has not passed")
	}
	s, err := transition(s, StatusExpired, now)
	if err != nil {
		return Session{}, false, err
	}
	s.TimerStartedAt = nil
	return s, true, nil
}
