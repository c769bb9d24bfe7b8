package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage"
)

const mapColumns = `id, session_id, source_map_id, display_name, image_url,
state, banned_by_player_id, banned_at_turn, pool_order`

// ListMaps returns the session's map pool ordered by pool position.
func (s *Store) ListMaps(ctx context.Context, sessionID string) ([]domain.SessionMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+mapColumns+`
FROM session_maps
WHERE session_id = ?
ORDER BY pool_order ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	var maps []domain.SessionMap
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate maps: %w", err)
	}
	return maps, nil
}

func scanMap(row rowScanner) (domain.SessionMap, error) {
	var (
		m              domain.SessionMap
		state          string
		bannedByPlayer sql.NullString
		bannedAtTurn   sql.NullInt64
	)
	err := row.Scan(
		&m.ID,
		&m.SessionID,
		&m.SourceMapID,
		&m.DisplayName,
		&m.ImageURL,
		&state,
		&bannedByPlayer,
		&bannedAtTurn,
		&m.PoolOrder,
	)
	if err != nil {
		return domain.SessionMap{}, err
	}
	m.State = domain.MapState(state)
	if bannedByPlayer.Valid {
		m.BannedBySeatID = bannedByPlayer.String
	}
	if bannedAtTurn.Valid {
		turn := int(bannedAtTurn.Int64)
		m.BannedAtTurn = &turn
	}
	return m, nil
}

func insertMapsTx(ctx context.Context, tx *sql.Tx, maps []domain.SessionMap) error {
	for _, m := range maps {
		var bannedAtTurn any
		if m.BannedAtTurn != nil {
			bannedAtTurn = *m.BannedAtTurn
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO session_maps (
	id, session_id, source_map_id, display_name, image_url,
	state, banned_by_player_id, banned_at_turn, pool_order
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			m.ID,
			m.SessionID,
			m.SourceMapID,
			m.DisplayName,
			m.ImageURL,
			string(m.State),
			nullString(m.BannedBySeatID),
			bannedAtTurn,
			m.PoolOrder,
		)
		if err != nil {
			return fmt.Errorf("insert map %s: %w", m.DisplayName, err)
		}
	}
	return nil
}

func banMapTx(ctx context.Context, tx *sql.Tx, ban storage.MapBan) error {
	result, err := tx.ExecContext(ctx, `
UPDATE session_maps
SET state = ?, banned_by_player_id = ?, banned_at_turn = ?
WHERE id = ? AND state = ?
`,
		string(domain.MapStateBanned),
		nullString(ban.BySeatID),
		ban.AtTurn,
		ban.MapID,
		string(domain.MapStateAvailable),
	)
	if err != nil {
		return fmt.Errorf("ban map: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ban map rows affected: %w", err)
	}
	if affected == 0 {
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM session_maps WHERE id = ?", ban.MapID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check map existence: %w", err)
		}
		return fmt.Errorf("map %s is not available", ban.MapID)
	}
	return nil
}

func promoteWinnerMapTx(ctx context.Context, tx *sql.Tx, mapID string) error {
	result, err := tx.ExecContext(ctx, `
UPDATE session_maps
SET state = ?
WHERE id = ? AND state = ?
`, string(domain.MapStateWinner), mapID, string(domain.MapStateAvailable))
	if err != nil {
		return fmt.Errorf("promote winner map: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("promote winner map rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("map %s cannot be promoted", mapID)
	}
	return nil
}
