package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// DeleteSessionCascade removes a session and its children in one transaction,
// children first so no orphans survive a partial failure. Audit entries are
// kept when preserveAuditLogs is set.
func (s *Store) DeleteSessionCascade(ctx context.Context, sessionID string, preserveAuditLogs bool) (storage.CascadeCounts, error) {
	var counts storage.CascadeCounts
	if err := ctx.Err(); err != nil {
		return counts, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin cascade: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return counts, storage.ErrNotFound
	}
	if err != nil {
		return counts, fmt.Errorf("check session existence: %w", err)
	}

	counts.Votes, err = deleteWhere(ctx, tx, "DELETE FROM votes WHERE session_id = ?", sessionID)
	if err != nil {
		return storage.CascadeCounts{}, fmt.Errorf("delete votes: %w", err)
	}
	counts.Seats, err = deleteWhere(ctx, tx, "DELETE FROM session_players WHERE session_id = ?", sessionID)
	if err != nil {
		return storage.CascadeCounts{}, fmt.Errorf("delete seats: %w", err)
	}
	counts.Maps, err = deleteWhere(ctx, tx, "DELETE FROM session_maps WHERE session_id = ?", sessionID)
	if err != nil {
		return storage.CascadeCounts{}, fmt.Errorf("delete maps: %w", err)
	}
	if !preserveAuditLogs {
		counts.AuditEntries, err = deleteWhere(ctx, tx, "DELETE FROM audit_log WHERE session_id = ?", sessionID)
		if err != nil {
			return storage.CascadeCounts{}, fmt.Errorf("delete audit entries: %w", err)
		}
	}
	counts.Sessions, err = deleteWhere(ctx, tx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return storage.CascadeCounts{}, fmt.Errorf("delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.CascadeCounts{}, fmt.Errorf("commit cascade: %w", err)
	}
	return counts, nil
}

func deleteWhere(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
