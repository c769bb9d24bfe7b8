// Package token issues and authenticates the opaque per-seat access tokens.
// A token is the only credential a player holds: it resolves to exactly one
// seat, expires with the session TTL, and locks to the first IP address that
// uses it.
package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// tokenBytes is the entropy of a seat token before encoding.
const tokenBytes = 32

// Stores holds the persistence dependencies of the token service.
type Stores struct {
	Seats storage.SeatStore
}

// Service issues and verifies seat tokens.
type Service struct {
	stores Stores
	now    func() time.Time
}

// NewService creates a token service. A nil clock defaults to time.Now.
func NewService(stores Stores, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{stores: stores, now: now}
}

// Generate returns a fresh opaque token and its expiry. Uniqueness is
// enforced by the store at insert time; the entropy makes collisions a
// storage-integrity event rather than an expected outcome.
func (s *Service) Generate(ttl time.Duration) (string, time.Time, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("read token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, s.now().UTC().Add(ttl), nil
}

// Authenticate resolves a token to its seat, enforcing expiry and the IP
// lock. The first successful call from an address locks the seat to it.
func (s *Service) Authenticate(ctx context.Context, tokenValue, ip string) (domain.Seat, error) {
	seat, err := s.stores.Seats.GetSeatByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Seat{}, apperrors.New(apperrors.CodeAuthInvalidToken, "token does not match any seat")
		}
		return domain.Seat{}, fmt.Errorf("look up seat by token: %w", err)
	}

	now := s.now().UTC()
	if now.After(seat.TokenExpiresAt) {
		return domain.Seat{}, apperrors.WithMetadata(apperrors.CodeAuthTokenExpired, "token has expired", map[string]string{
			"ExpiredAt": seat.TokenExpiresAt.Format(time.RFC3339),
		})
	}

	if seat.IPAddress != "" && seat.IPAddress != ip {
		return domain.Seat{}, apperrors.New(apperrors.CodeAuthIPMismatch, "token is locked to a different address")
	}
	if seat.IPAddress == "" && ip != "" {
		if err := s.stores.Seats.LockSeatIP(ctx, seat.ID, ip); err != nil {
			// A concurrent first use from another address can win the
			// lock between the read and the update.
			if errors.Is(err, storage.ErrSeatIPLocked) {
				return domain.Seat{}, apperrors.New(apperrors.CodeAuthIPMismatch, "token is locked to a different address")
			}
			return domain.Seat{}, fmt.Errorf("lock seat ip: %w", err)
		}
		seat.IPAddress = ip
	}
	return seat, nil
}

// RecordHeartbeat stamps the seat's last seen time for connection reporting.
func (s *Service) RecordHeartbeat(ctx context.Context, seatID string) error {
	if err := s.stores.Seats.RecordHeartbeat(ctx, seatID, s.now().UTC()); err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	return nil
}

// PurgeTerminalIPs drops IP locks for seats of finished sessions. Safe to
// run repeatedly.
func (s *Service) PurgeTerminalIPs(ctx context.Context) (int64, error) {
	cleared, err := s.stores.Seats.ClearTerminalSeatIPs(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge terminal ips: %w", err)
	}
	return cleared, nil
}
