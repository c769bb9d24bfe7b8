package domain

import (
	"testing"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

func TestBuildPool(t *testing.T) {
	inputs := []MapInput{
		{SourceMapID: "src-1", DisplayName: " Oregon ", ImageURL: "https://img/oregon.png"},
		{SourceMapID: "src-2", DisplayName: "Clubhouse"},
		{SourceMapID: "src-3", DisplayName: "Villa"},
	}

	maps, err := BuildPool("sess-1", inputs, 3, staticIDs(t))
	if err != nil {
		t.Fatalf("build pool: %v", err)
	}
	if len(maps) != 3 {
		t.Fatalf("pool size = %d, want 3", len(maps))
	}
	for i, m := range maps {
		if m.PoolOrder != i {
			t.Fatalf("maps[%d].PoolOrder = %d, want %d", i, m.PoolOrder, i)
		}
		if m.State != MapStateAvailable {
			t.Fatalf("maps[%d].State = %s, want %s", i, m.State, MapStateAvailable)
		}
		if m.SessionID != "sess-1" {
			t.Fatalf("maps[%d].SessionID = %s, want sess-1", i, m.SessionID)
		}
	}
	if maps[0].DisplayName != "Oregon" {
		t.Fatalf("display name = %q, want trimmed %q", maps[0].DisplayName, "Oregon")
	}
}

func TestBuildPoolSizeMismatch(t *testing.T) {
	inputs := []MapInput{{DisplayName: "Oregon"}, {DisplayName: "Villa"}}

	_, err := BuildPool("sess-1", inputs, 3, staticIDs(t))
	if apperrors.GetCode(err) != apperrors.CodeValidationPoolSizeMismatch {
		t.Fatalf("expected pool size mismatch, got %v", err)
	}
}

func TestBuildPoolRequiresNames(t *testing.T) {
	inputs := []MapInput{{DisplayName: "Oregon"}, {DisplayName: "   "}}

	_, err := BuildPool("sess-1", inputs, 2, staticIDs(t))
	if apperrors.GetCode(err) != apperrors.CodeValidationMapName {
		t.Fatalf("expected map name validation error, got %v", err)
	}
}

func TestAvailableMapsSortedByPoolOrder(t *testing.T) {
	maps := []SessionMap{
		{ID: "m3", State: MapStateAvailable, PoolOrder: 2},
		{ID: "m1", State: MapStateBanned, PoolOrder: 0},
		{ID: "m2", State: MapStateAvailable, PoolOrder: 1},
	}

	available := AvailableMaps(maps)
	if len(available) != 2 {
		t.Fatalf("available = %d, want 2", len(available))
	}
	if available[0].ID != "m2" || available[1].ID != "m3" {
		t.Fatalf("order = %s, %s, want m2, m3", available[0].ID, available[1].ID)
	}
}
