package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/mapveto/internal/veto/audit"
	"github.com/louisbranch/mapveto/internal/veto/domain"
	"github.com/louisbranch/mapveto/internal/veto/storage/sqlite"
	"github.com/louisbranch/mapveto/internal/veto/token"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

var testAdmin = audit.Admin("admin-1")

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "veto.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	clock := &testClock{now: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)}
	stores := Stores{
		Sessions:  store,
		Seats:     store,
		Maps:      store,
		Votes:     store,
		Audit:     store,
		Mutations: store,
		Cascade:   store,
	}
	tokens := token.NewService(token.Stores{Seats: store}, clock.Now)
	recorder := audit.NewRecorder(store, clock.Now)

	svc := New(stores, tokens, recorder)
	svc.clock = clock.Now
	return svc, clock
}

func poolInputs(size int) []domain.MapInput {
	inputs := make([]domain.MapInput, 0, size)
	names := []string{"Dust Basin", "Overlook", "Sanctum", "Meridian", "Foundry", "Breakwater", "Terminal"}
	for i := 0; i < size; i++ {
		inputs = append(inputs, domain.MapInput{
			SourceMapID: names[i%len(names)],
			DisplayName: names[i%len(names)],
		})
	}
	return inputs
}

// setupABBA builds an IN_PROGRESS two-team session with a five-map pool and
// returns the seat ids keyed by role plus the maps in pool order.
func setupABBA(t *testing.T, svc *Service) (domain.Session, map[domain.SeatRole]AssignSeatResult, []domain.SessionMap) {
	t.Helper()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, testAdmin, domain.CreateSessionInput{
		Name:         "Qualifier Finals",
		Format:       domain.FormatABBA,
		TimerSeconds: 60,
		MapPoolSize:  5,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	seats := make(map[domain.SeatRole]AssignSeatResult, 2)
	for _, role := range []domain.SeatRole{domain.RolePlayerA, domain.RolePlayerB} {
		result, err := svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
			SessionID: sess.ID,
			Role:      role,
			TeamName:  "Team " + string(role),
		})
		if err != nil {
			t.Fatalf("AssignSeat(%s) error = %v", role, err)
		}
		seats[role] = result
	}

	maps, err := svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(5))
	if err != nil {
		t.Fatalf("SetMapPool() error = %v", err)
	}

	started, err := svc.StartSession(ctx, testAdmin, sess.ID)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	return started, seats, maps
}

// setupMultiplayer builds an IN_PROGRESS four-player session.
func setupMultiplayer(t *testing.T, svc *Service, poolSize int) (domain.Session, map[domain.SeatRole]AssignSeatResult, []domain.SessionMap) {
	t.Helper()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, testAdmin, domain.CreateSessionInput{
		Name:         "Community Night",
		Format:       domain.FormatMultiplayer,
		TimerSeconds: 30,
		MapPoolSize:  poolSize,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	roles := []domain.SeatRole{domain.RolePlayer1, domain.RolePlayer2, domain.RolePlayer3, domain.RolePlayer4}
	seats := make(map[domain.SeatRole]AssignSeatResult, len(roles))
	for _, role := range roles {
		result, err := svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
			SessionID: sess.ID,
			Role:      role,
			TeamName:  "Player " + string(role),
		})
		if err != nil {
			t.Fatalf("AssignSeat(%s) error = %v", role, err)
		}
		seats[role] = result
	}

	maps, err := svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(poolSize))
	if err != nil {
		t.Fatalf("SetMapPool() error = %v", err)
	}

	started, err := svc.StartSession(ctx, testAdmin, sess.ID)
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	return started, seats, maps
}
