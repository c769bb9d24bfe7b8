package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// ListVotes returns the votes cast for a session round, oldest first.
func (s *Store) ListVotes(ctx context.Context, sessionID string, round int) ([]domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, player_id, map_id, round, created_at
FROM votes
WHERE session_id = ? AND round = ?
ORDER BY id ASC
`, sessionID, round)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		var (
			v         domain.Vote
			createdAt int64
		)
		err := rows.Scan(&v.ID, &v.SessionID, &v.SeatID, &v.MapID, &v.Round, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		v.CreatedAt = fromMillis(createdAt)
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate votes: %w", err)
	}
	return votes, nil
}

func insertVoteTx(ctx context.Context, tx *sql.Tx, vote domain.Vote) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO votes (session_id, player_id, map_id, round, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		vote.SessionID,
		vote.SeatID,
		vote.MapID,
		vote.Round,
		millis(vote.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicateVote
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
