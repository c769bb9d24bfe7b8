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

const sessionColumns = `id, name, format, status, player_count, map_pool_size,
timer_seconds, current_turn, current_round, timer_started_at, revision,
created_at, expires_at, updated_at`

// GetSession returns the session with the given id.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE id = ?
`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListExpiredSessions returns DRAFT and WAITING sessions past their expiry
// timestamp, oldest first.
func (s *Store) ListExpiredSessions(ctx context.Context, before time.Time, limit int) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE status IN (?, ?) AND expires_at <= ?
ORDER BY expires_at ASC
LIMIT ?
`, string(domain.StatusDraft), string(domain.StatusWaiting), millis(before), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired sessions: %w", err)
	}
	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		sess           domain.Session
		format, status string
		timerStartedAt sql.NullInt64
		createdAt      int64
		expiresAt      int64
		updatedAt      int64
	)
	err := row.Scan(
		&sess.ID,
		&sess.Name,
		&format,
		&status,
		&sess.PlayerCount,
		&sess.MapPoolSize,
		&sess.TimerSeconds,
		&sess.CurrentTurn,
		&sess.CurrentRound,
		&timerStartedAt,
		&sess.Revision,
		&createdAt,
		&expiresAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	sess.Format = domain.Format(format)
	sess.Status = domain.Status(status)
	if timerStartedAt.Valid {
		started := fromMillis(timerStartedAt.Int64)
		sess.TimerStartedAt = &started
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.ExpiresAt = fromMillis(expiresAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	return sess, nil
}

func insertSessionTx(ctx context.Context, tx *sql.Tx, sess domain.Session) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO sessions (
	id, name, format, status, player_count, map_pool_size,
	timer_seconds, current_turn, current_round, timer_started_at, revision,
	created_at, expires_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		sess.ID,
		sess.Name,
		string(sess.Format),
		string(sess.Status),
		sess.PlayerCount,
		sess.MapPoolSize,
		sess.TimerSeconds,
		sess.CurrentTurn,
		sess.CurrentRound,
		nullMillis(sess.TimerStartedAt),
		sess.Revision,
		millis(sess.CreatedAt),
		millis(sess.ExpiresAt),
		millis(sess.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// updateSessionTx applies a revision-guarded session update. The WHERE clause
// only matches the row at the expected revision, so exactly one concurrent
// writer can win.
func updateSessionTx(ctx context.Context, tx *sql.Tx, sess domain.Session) error {
	result, err := tx.ExecContext(ctx, `
UPDATE sessions SET
	name = ?,
	status = ?,
	current_turn = ?,
	current_round = ?,
	timer_started_at = ?,
	revision = revision + 1,
	expires_at = ?,
	updated_at = ?
WHERE id = ? AND revision = ?
`,
		sess.Name,
		string(sess.Status),
		sess.CurrentTurn,
		sess.CurrentRound,
		nullMillis(sess.TimerStartedAt),
		millis(sess.ExpiresAt),
		millis(sess.UpdatedAt),
		sess.ID,
		sess.Revision,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		// Either the session is gone or a concurrent writer bumped the
		// revision first. Distinguish so callers can report NotFound.
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sess.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check session existence: %w", err)
		}
		return storage.ErrRevisionConflict
	}
	return nil
}
