// Package service orchestrates the veto engine's operations: it loads state,
// delegates decisions to the domain package, and persists each state change
// as one atomic mutation with its audit entry attached.
package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mapveto/internal/id"
	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
	"github.com/louisbranch/mapveto/internal/veto/audit"
	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
	"github.com/louisbranch/mapveto/internal/veto/token"
)

// Stores groups the storage interfaces the service depends on.
type Stores struct {
	Sessions  storage.SessionStore
	Seats     storage.SeatStore
	Maps      storage.MapStore
	Votes     storage.VoteStore
	Audit     storage.AuditStore
	Mutations storage.MutationStore
	Cascade   storage.CascadeStore
}

// Service implements the veto engine operations.
type Service struct {
	stores      Stores
	tokens      *token.Service
	recorder    *audit.Recorder
	limits      domain.Limits
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New creates a Service with default clock, id generation, and limits.
func New(stores Stores, tokens *token.Service, recorder *audit.Recorder) *Service {
	return &Service{
		stores:      stores,
		tokens:      tokens,
		recorder:    recorder,
		limits:      domain.DefaultLimits(),
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// mapStorageErr translates storage sentinel errors to coded application
// errors at the service boundary.
func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.New(apperrors.CodeNotFound, "record not found")
	case errors.Is(err, storage.ErrRevisionConflict):
		return apperrors.New(apperrors.CodeConflictRevision, "session was modified concurrently")
	case errors.Is(err, storage.ErrRoleOccupied):
		return apperrors.New(apperrors.CodeConflictRoleOccupied, "seat role is already taken")
	case errors.Is(err, storage.ErrDuplicateVote):
		return apperrors.New(apperrors.CodeConflictAlreadyVoted, "seat already voted this round")
	default:
		return err
	}
}

// wrapMutation applies mapStorageErr with operation context for plain errors.
func wrapMutation(op string, err error) error {
	mapped := mapStorageErr(err)
	if mapped == nil {
		return nil
	}
	var coded *apperrors.Error
	if errors.As(mapped, &coded) {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, mapped)
}
