// Package errors provides structured, machine-readable error handling for the
// veto engine. Every user-visible failure carries a stable Code from the
// taxonomy below plus a human message; integrity failures are additionally
// logged by the caller before being surfaced.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors: malformed or out-of-range input, rejected before
	// any mutation.
	CodeValidationFormat           Code = "VALIDATION_FORMAT"
	CodeValidationSessionName      Code = "VALIDATION_SESSION_NAME"
	CodeValidationTimerBounds      Code = "VALIDATION_TIMER_BOUNDS"
	CodeValidationPoolSizeBounds   Code = "VALIDATION_POOL_SIZE_BOUNDS"
	CodeValidationPoolSizeMismatch Code = "VALIDATION_POOL_SIZE_MISMATCH"
	CodeValidationSeatRole         Code = "VALIDATION_SEAT_ROLE"
	CodeValidationTeamName         Code = "VALIDATION_TEAM_NAME"
	CodeValidationMapName          Code = "VALIDATION_MAP_NAME"

	// Conflict errors: legal-state or turn-order violations. The caller may
	// re-read state and retry.
	CodeConflictStatus         Code = "CONFLICT_STATUS"
	CodeConflictRoleOccupied   Code = "CONFLICT_ROLE_OCCUPIED"
	CodeConflictNotYourTurn    Code = "CONFLICT_NOT_YOUR_TURN"
	CodeConflictMapUnavailable Code = "CONFLICT_MAP_UNAVAILABLE"
	CodeConflictAlreadyVoted   Code = "CONFLICT_ALREADY_VOTED"
	CodeConflictWinnerMissing  Code = "CONFLICT_WINNER_MISSING"
	CodeConflictRevision       Code = "CONFLICT_REVISION"

	// Auth errors: never retried automatically, surfaced to the player.
	CodeAuthInvalidToken  Code = "AUTH_INVALID_TOKEN"
	CodeAuthTokenExpired  Code = "AUTH_TOKEN_EXPIRED"
	CodeAuthIPMismatch    Code = "AUTH_IP_MISMATCH"
	CodeAuthGrantInvalid  Code = "AUTH_GRANT_INVALID"
	CodeAuthGrantExpired  Code = "AUTH_GRANT_EXPIRED"
	CodeAuthGrantMismatch Code = "AUTH_GRANT_MISMATCH"

	// Missing records.
	CodeNotFound Code = "NOT_FOUND"

	// Integrity errors: fatal to the triggering operation, never silently
	// swallowed.
	CodeIntegrityTokenCollision Code = "INTEGRITY_TOKEN_COLLISION"
	CodeIntegrityCascade        Code = "INTEGRITY_CASCADE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeValidationFormat,
		CodeValidationSessionName,
		CodeValidationTimerBounds,
		CodeValidationPoolSizeBounds,
		CodeValidationPoolSizeMismatch,
		CodeValidationSeatRole,
		CodeValidationTeamName,
		CodeValidationMapName:
		return codes.InvalidArgument

	case CodeConflictStatus,
		CodeConflictRoleOccupied,
		CodeConflictNotYourTurn,
		CodeConflictMapUnavailable,
		CodeConflictAlreadyVoted,
		CodeConflictWinnerMissing:
		return codes.FailedPrecondition

	// A lost revision race is safe to retry after re-reading state.
	case CodeConflictRevision:
		return codes.Aborted

	case CodeAuthInvalidToken,
		CodeAuthTokenExpired,
		CodeAuthGrantInvalid,
		CodeAuthGrantExpired:
		return codes.Unauthenticated

	case CodeAuthIPMismatch,
		CodeAuthGrantMismatch:
		return codes.PermissionDenied

	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
