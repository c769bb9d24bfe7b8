package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// ApplyMutation runs every step of the mutation inside a single transaction.
// Session updates are revision-guarded, so a lost race rolls back the whole
// batch with storage.ErrRevisionConflict.
func (s *Store) ApplyMutation(ctx context.Context, m storage.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mutation: %w", err)
	}
	defer tx.Rollback()

	if m.InsertSession != nil {
		if err := insertSessionTx(ctx, tx, *m.InsertSession); err != nil {
			return err
		}
	}
	if m.UpdateSession != nil {
		if err := updateSessionTx(ctx, tx, *m.UpdateSession); err != nil {
			return err
		}
	}
	if m.InsertSeat != nil {
		if err := insertSeatTx(ctx, tx, *m.InsertSeat); err != nil {
			return err
		}
	}
	if len(m.InsertMaps) > 0 {
		if err := insertMapsTx(ctx, tx, m.InsertMaps); err != nil {
			return err
		}
	}
	if m.BanMap != nil {
		if err := banMapTx(ctx, tx, *m.BanMap); err != nil {
			return err
		}
	}
	if m.PromoteWinnerMapID != "" {
		if err := promoteWinnerMapTx(ctx, tx, m.PromoteWinnerMapID); err != nil {
			return err
		}
	}
	if m.InsertVote != nil {
		if err := insertVoteTx(ctx, tx, *m.InsertVote); err != nil {
			return err
		}
	}
	if m.MarkSeatVoted != "" {
		if err := markSeatVotedTx(ctx, tx, m.MarkSeatVoted); err != nil {
			return err
		}
	}
	if m.ResetVoteFlags {
		sessionID := mutationSessionID(m)
		if sessionID == "" {
			return fmt.Errorf("reset vote flags requires a session record")
		}
		if err := resetVoteFlagsTx(ctx, tx, sessionID); err != nil {
			return err
		}
	}
	if m.ClearSeatIPs {
		sessionID := mutationSessionID(m)
		if sessionID == "" {
			return fmt.Errorf("clear seat ips requires a session record")
		}
		if err := clearSessionSeatIPsTx(ctx, tx, sessionID); err != nil {
			return err
		}
	}
	for _, entry := range m.Audit {
		if err := appendAuditEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mutation: %w", err)
	}
	return nil
}

// mutationSessionID resolves the session the batch is scoped to.
func mutationSessionID(m storage.Mutation) string {
	if m.UpdateSession != nil {
		return m.UpdateSession.ID
	}
	if m.InsertSession != nil {
		return m.InsertSession.ID
	}
	return ""
}
