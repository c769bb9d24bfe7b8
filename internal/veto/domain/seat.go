package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

// ConnectionWindow is how recently a seat must have sent a heartbeat to be
// reported as connected.
const ConnectionWindow = 30 * time.Second

// Seat is one team's slot in a session, authenticated by an opaque token.
type Seat struct {
	ID        string
	SessionID string
	Role      SeatRole
	TeamName  string
	// Token is the opaque per-seat secret, globally unique across all seats.
	Token          string
	TokenExpiresAt time.Time
	// IPAddress is empty until the token's first successful use, then locked
	// for the life of the session.
	IPAddress  string
	LastSeenAt *time.Time
	// HasVoted marks whether the seat has cast its ballot in the current
	// round (multiplayer format only). Reset when the round resolves.
	HasVoted  bool
	CreatedAt time.Time
}

// Connected derives the seat's connection status from its last heartbeat.
func (s Seat) Connected(now time.Time) bool {
	return s.LastSeenAt != nil && now.Sub(*s.LastSeenAt) <= ConnectionWindow
}

// AssignSeatInput describes the parameters needed to seat a team.
type AssignSeatInput struct {
	SessionID string
	Role      SeatRole
	TeamName  string
}

// NewSeat validates seat input against the session format and returns a seat
// carrying the supplied token.
func NewSeat(input AssignSeatInput, format Format, token string, tokenExpiresAt time.Time, now func() time.Time, idGenerator func() (string, error)) (Seat, error) {
	if now == nil {
		now = time.Now
	}

	if !input.Role.ValidFor(format) {
		return Seat{}, apperrors.WithMetadata(apperrors.CodeValidationSeatRole, "seat role does not belong to session format", map[string]string{
			"Role":   string(input.Role),
			"Format": string(format),
		})
	}
	input.TeamName = strings.TrimSpace(input.TeamName)
	if input.TeamName == "" {
		return Seat{}, apperrors.New(apperrors.CodeValidationTeamName, "team name is required")
	}
	if strings.TrimSpace(token) == "" {
		return Seat{}, apperrors.New(apperrors.CodeAuthInvalidToken, "seat token is required")
	}

	seatID, err := idGenerator()
	if err != nil {
		return Seat{}, fmt.Errorf("generate seat id: %w", err)
	}

	return Seat{
		ID:             seatID,
		SessionID:      input.SessionID,
		Role:           input.Role,
		TeamName:       input.TeamName,
		Token:          token,
		TokenExpiresAt: tokenExpiresAt,
		CreatedAt:      now().UTC(),
	}, nil
}

// FindSeat returns the seat with the given id.
func FindSeat(seats []Seat, seatID string) (Seat, bool) {
	for _, seat := range seats {
		if seat.ID == seatID {
			return seat, true
		}
	}
	return Seat{}, false
}

// SeatByRole returns the seat holding the given role.
func SeatByRole(seats []Seat, role SeatRole) (Seat, bool) {
	for _, seat := range seats {
		if seat.Role == role {
			return seat, true
		}
	}
	return Seat{}, false
}
