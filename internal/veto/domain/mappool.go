package domain

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

// MapState describes a candidate map's state within a session pool.
type MapState string

const (
	MapStateAvailable MapState = "AVAILABLE"
	MapStateBanned    MapState = "BANNED"
	MapStateWinner    MapState = "WINNER"
)

// SessionMap is one candidate map inside a session's pool.
type SessionMap struct {
	ID          string
	SessionID   string
	SourceMapID string
	DisplayName string
	// ImageURL is an externally validated reference; the engine stores it
	// verbatim and never fetches it.
	ImageURL string
	State    MapState
	// BannedBySeatID is empty for round-resolution and timeout bans.
	BannedBySeatID string
	// BannedAtTurn records the ABBA turn or multiplayer round of the ban.
	BannedAtTurn *int
	// PoolOrder is the insertion order, used for deterministic tie-breaks
	// and timeout auto-bans.
	PoolOrder int
}

// MapInput describes one candidate map for the pool.
type MapInput struct {
	SourceMapID string
	DisplayName string
	ImageURL    string
}

// BuildPool validates the candidate list against the session's configured
// pool size and returns AVAILABLE maps with pool order assigned by input
// position.
func BuildPool(sessionID string, inputs []MapInput, poolSize int, idGenerator func() (string, error)) ([]SessionMap, error) {
	if len(inputs) != poolSize {
		return nil, apperrors.WithMetadata(apperrors.CodeValidationPoolSizeMismatch, "map pool must match configured size exactly", map[string]string{
			"Got":  fmt.Sprintf("%d", len(inputs)),
			"Want": fmt.Sprintf("%d", poolSize),
		})
	}

	maps := make([]SessionMap, 0, len(inputs))
	for order, input := range inputs {
		name := strings.TrimSpace(input.DisplayName)
		if name == "" {
			return nil, apperrors.WithMetadata(apperrors.CodeValidationMapName, "map display name is required", map[string]string{
				"PoolOrder": fmt.Sprintf("%d", order),
			})
		}
		mapID, err := idGenerator()
		if err != nil {
			return nil, fmt.Errorf("generate map id: %w", err)
		}
		maps = append(maps, SessionMap{
			ID:          mapID,
			SessionID:   sessionID,
			SourceMapID: strings.TrimSpace(input.SourceMapID),
			DisplayName: name,
			ImageURL:    strings.TrimSpace(input.ImageURL),
			State:       MapStateAvailable,
			PoolOrder:   order,
		})
	}
	return maps, nil
}

// AvailableMaps returns the AVAILABLE maps sorted by pool order.
func AvailableMaps(maps []SessionMap) []SessionMap {
	available := make([]SessionMap, 0, len(maps))
	for _, m := range maps {
		if m.State == MapStateAvailable {
			available = append(available, m)
		}
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].PoolOrder < available[j].PoolOrder
	})
	return available
}

// FindMap returns the map with the given id.
func FindMap(maps []SessionMap, mapID string) (SessionMap, bool) {
	for _, m := range maps {
		if m.ID == mapID {
			return m, true
		}
	}
	return SessionMap{}, false
}

// WinnerMap returns the winning map if the session has resolved one.
func WinnerMap(maps []SessionMap) (SessionMap, bool) {
	for _, m := range maps {
		if m.State == MapStateWinner {
			return m, true
		}
	}
	return SessionMap{}, false
}
