package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
)

const seatColumns = `id, session_id, role, team_name, token, token_expires_at,
ip_address, last_seen_at, has_voted, created_at`

// GetSeat returns the seat with the given id.
func (s *Store) GetSeat(ctx context.Context, id string) (domain.Seat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Seat{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+seatColumns+`
FROM session_players
WHERE id = ?
`, id)
	seat, err := scanSeat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Seat{}, storage.ErrNotFound
		}
		return domain.Seat{}, fmt.Errorf("get seat: %w", err)
	}
	return seat, nil
}

// GetSeatByToken returns the seat holding the given access token.
func (s *Store) GetSeatByToken(ctx context.Context, token string) (domain.Seat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Seat{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+seatColumns+`
FROM session_players
WHERE token = ?
`, token)
	seat, err := scanSeat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Seat{}, storage.ErrNotFound
		}
		return domain.Seat{}, fmt.Errorf("get seat by token: %w", err)
	}
	return seat, nil
}

// ListSeats returns all seats for a session ordered by role.
func (s *Store) ListSeats(ctx context.Context, sessionID string) ([]domain.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+seatColumns+`
FROM session_players
WHERE session_id = ?
ORDER BY role ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []domain.Seat
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seats: %w", err)
	}
	return seats, nil
}

// LockSeatIP sets the seat's locked IP when unset. Retrying with the same IP
// is a no-op; losing the first-use race to another address reports
// ErrSeatIPLocked.
func (s *Store) LockSeatIP(ctx context.Context, seatID, ip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE session_players
SET ip_address = ?
WHERE id = ? AND (ip_address IS NULL OR ip_address = ?)
`, ip, seatID, ip)
	if err != nil {
		return fmt.Errorf("lock seat ip: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("lock seat ip rows affected: %w", err)
	}
	if affected == 0 {
		var one int
		err := s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM session_players WHERE id = ?", seatID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check seat existence: %w", err)
		}
		return storage.ErrSeatIPLocked
	}
	return nil
}

// RecordHeartbeat updates the seat's last seen timestamp.
func (s *Store) RecordHeartbeat(ctx context.Context, seatID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE session_players
SET last_seen_at = ?
WHERE id = ?
`, millis(at), seatID)
	if err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record heartbeat rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ClearTerminalSeatIPs drops locked IPs for seats whose session reached a
// terminal status. Returns the number of seats cleared.
func (s *Store) ClearTerminalSeatIPs(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE session_players
SET ip_address = NULL
WHERE ip_address IS NOT NULL AND session_id IN (
	SELECT id FROM sessions WHERE status IN (?, ?)
)
`, string(domain.StatusComplete), string(domain.StatusExpired))
	if err != nil {
		return 0, fmt.Errorf("clear terminal seat ips: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear terminal seat ips rows affected: %w", err)
	}
	return affected, nil
}

func scanSeat(row rowScanner) (domain.Seat, error) {
	var (
		seat           domain.Seat
		role           string
		tokenExpiresAt int64
		ipAddress      sql.NullString
		lastSeenAt     sql.NullInt64
		hasVoted       int
		createdAt      int64
	)
	err := row.Scan(
		&seat.ID,
		&seat.SessionID,
		&role,
		&seat.TeamName,
		&seat.Token,
		&tokenExpiresAt,
		&ipAddress,
		&lastSeenAt,
		&hasVoted,
		&createdAt,
	)
	if err != nil {
		return domain.Seat{}, err
	}
	seat.Role = domain.SeatRole(role)
	seat.TokenExpiresAt = fromMillis(tokenExpiresAt)
	if ipAddress.Valid {
		seat.IPAddress = ipAddress.String
	}
	if lastSeenAt.Valid {
		seen := fromMillis(lastSeenAt.Int64)
		seat.LastSeenAt = &seen
	}
	seat.HasVoted = hasVoted != 0
	seat.CreatedAt = fromMillis(createdAt)
	return seat, nil
}

func insertSeatTx(ctx context.Context, tx *sql.Tx, seat domain.Seat) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM session_players WHERE token = ?", seat.Token).Scan(&one)
	if err == nil {
		return storage.ErrTokenExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check token uniqueness: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM session_players WHERE session_id = ? AND role = ?",
		seat.SessionID, string(seat.Role)).Scan(&one)
	if err == nil {
		return storage.ErrRoleOccupied
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check role occupancy: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO session_players (
	id, session_id, role, team_name, token, token_expires_at,
	ip_address, last_seen_at, has_voted, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		seat.ID,
		seat.SessionID,
		string(seat.Role),
		seat.TeamName,
		seat.Token,
		millis(seat.TokenExpiresAt),
		nullString(seat.IPAddress),
		nullMillis(seat.LastSeenAt),
		boolInt(seat.HasVoted),
		millis(seat.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert seat: %w", err)
	}
	return nil
}

func markSeatVotedTx(ctx context.Context, tx *sql.Tx, seatID string) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE session_players SET has_voted = 1 WHERE id = ?", seatID)
	if err != nil {
		return fmt.Errorf("mark seat voted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark seat voted rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func resetVoteFlagsTx(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE session_players SET has_voted = 0 WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("reset vote flags: %w", err)
	}
	return nil
}

func clearSessionSeatIPsTx(ctx context.Context, tx *sql.Tx, sessionID string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE session_players SET ip_address = NULL WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("clear session seat ips: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
