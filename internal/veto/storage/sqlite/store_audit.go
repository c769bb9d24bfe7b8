package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// AppendAuditEntry writes a single audit record outside of any mutation.
func (s *Store) AppendAuditEntry(ctx context.Context, entry storage.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return appendAuditEntry(ctx, s.sqlDB, entry)
}

// ListAuditEntries returns a session's audit trail, newest entries first.
// An empty sessionID lists global entries, which reference no session.
func (s *Store) ListAuditEntries(ctx context.Context, sessionID string, limit int) ([]storage.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	filter := "session_id = ?"
	args := []any{sessionID, limit}
	if sessionID == "" {
		filter = "session_id IS NULL"
		args = []any{limit}
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, action, actor_type, actor_id, detail, created_at
FROM audit_log
WHERE `+filter+`
ORDER BY id DESC
LIMIT ?
`, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.AuditEntry
	for rows.Next() {
		var (
			entry       storage.AuditEntry
			recordedFor sql.NullString
			detail      string
			createdAt   int64
		)
		err := rows.Scan(&entry.ID, &recordedFor, &entry.Action, &entry.ActorType, &entry.ActorID, &detail, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if recordedFor.Valid {
			entry.SessionID = recordedFor.String
		}
		entry.DetailJSON = []byte(detail)
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func appendAuditEntry(ctx context.Context, db execer, entry storage.AuditEntry) error {
	detail := entry.DetailJSON
	if len(detail) == 0 {
		detail = []byte("{}")
	}
	_, err := db.ExecContext(ctx, `
INSERT INTO audit_log (session_id, action, actor_type, actor_id, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		nullString(entry.SessionID),
		entry.Action,
		entry.ActorType,
		entry.ActorID,
		string(detail),
		millis(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
