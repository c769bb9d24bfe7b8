// Package storage declares the persistence interfaces and record types the
// veto engine depends on. Implementations must provide atomic, serializable
// per-session operations; the SQLite implementation lives in the sqlite
// subpackage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/mapveto/internal/veto/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrRevisionConflict indicates a guarded session update lost a race
	// with a concurrent writer.
	ErrRevisionConflict = errors.New("session revision conflict")
	// ErrTokenExists indicates a seat token collided with an existing one.
	ErrTokenExists = errors.New("seat token already exists")
	// ErrRoleOccupied indicates the seat role is already taken in the session.
	ErrRoleOccupied = errors.New("seat role already occupied")
	// ErrDuplicateVote indicates the seat already voted this round.
	ErrDuplicateVote = errors.New("vote already recorded for round")
	// ErrSeatIPLocked indicates the seat is already locked to another IP.
	ErrSeatIPLocked = errors.New("seat locked to a different ip")
)

// AuditEntry is one append-only audit record. SessionID is empty for global
// actions. Entries are never mutated; the only delete path is the session
// cascade.
type AuditEntry struct {
	ID         int64
	SessionID  string
	Action     string
	ActorType  string
	ActorID    string
	DetailJSON []byte
	CreatedAt  time.Time
}

// CascadeCounts reports how many records a cascade delete removed per type.
type CascadeCounts struct {
	Votes        int64
	Seats        int64
	Maps         int64
	AuditEntries int64
	Sessions     int64
}

// MapBan marks one pool map banned within a mutation.
type MapBan struct {
	MapID string
	// BySeatID is empty for round-resolution bans.
	BySeatID string
	// AtTurn is the ABBA turn or multiplayer round of the ban.
	AtTurn int
}

// Mutation is one atomic write batch scoped to a single session. Every field
// is optional; the store applies the populated ones in a single transaction
// and rolls the whole batch back on any failure.
//
// UpdateSession is guarded: the update matches the session row only at the
// revision carried by the record, fails the batch with ErrRevisionConflict
// otherwise, and bumps the stored revision on success. This is what enforces
// the at-most-one-turn-mutation-per-session contract.
type Mutation struct {
	InsertSession *domain.Session
	UpdateSession *domain.Session
	InsertSeat    *domain.Seat
	InsertMaps    []domain.SessionMap
	BanMap        *MapBan
	// PromoteWinnerMapID marks the map WINNER.
	PromoteWinnerMapID string
	InsertVote         *domain.Vote
	// MarkSeatVoted sets the per-round vote flag for one seat.
	MarkSeatVoted string
	// ResetVoteFlags clears every seat's vote flag for the session.
	ResetVoteFlags bool
	// ClearSeatIPs wipes locked IP addresses for the session's seats.
	ClearSeatIPs bool
	Audit        []AuditEntry
}

// SessionStore reads session records.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (domain.Session, error)
	// ListExpiredSessions returns DRAFT and WAITING sessions whose expiry
	// timestamp has passed, oldest first.
	ListExpiredSessions(ctx context.Context, before time.Time, limit int) ([]domain.Session, error)
}

// SeatStore reads and maintains seat records. IP-lock assignment and
// heartbeats run outside the session revision guard: both are idempotent
// single-column updates.
type SeatStore interface {
	GetSeat(ctx context.Context, id string) (domain.Seat, error)
	GetSeatByToken(ctx context.Context, token string) (domain.Seat, error)
	ListSeats(ctx context.Context, sessionID string) ([]domain.Seat, error)
	// LockSeatIP sets the seat's locked IP when unset; retrying with the
	// same IP is a no-op. Losing the first-use race to another address
	// reports ErrSeatIPLocked.
	LockSeatIP(ctx context.Context, seatID, ip string) error
	RecordHeartbeat(ctx context.Context, seatID string, at time.Time) error
	// ClearTerminalSeatIPs wipes locked IPs on seats of COMPLETE and
	// EXPIRED sessions, returning the number of seats updated.
	ClearTerminalSeatIPs(ctx context.Context) (int64, error)
}

// MapStore reads session map records.
type MapStore interface {
	ListMaps(ctx context.Context, sessionID string) ([]domain.SessionMap, error)
}

// VoteStore reads vote records.
type VoteStore interface {
	ListVotes(ctx context.Context, sessionID string, round int) ([]domain.Vote, error)
}

// AuditStore appends and reads audit records.
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
	// ListAuditEntries returns newest-first entries for a session. An
	// empty sessionID lists global entries.
	ListAuditEntries(ctx context.Context, sessionID string, limit int) ([]AuditEntry, error)
}

// MutationStore applies atomic write batches.
type MutationStore interface {
	ApplyMutation(ctx context.Context, m Mutation) error
}

// CascadeStore removes a session and its dependents atomically.
type CascadeStore interface {
	// DeleteSessionCascade snapshots and deletes the session's dependent
	// records child-first (votes, seats, maps, audit entries unless
	// preserved, then the session) in one transaction.
	DeleteSessionCascade(ctx context.Context, sessionID string, preserveAuditLogs bool) (CascadeCounts, error)
}

// Store groups every persistence capability the engine needs.
type Store interface {
	SessionStore
	SeatStore
	MapStore
	VoteStore
	AuditStore
	MutationStore
	CascadeStore
}
