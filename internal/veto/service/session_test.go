package service

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
	"github.com/louisbranch/mapveto/internal/veto/audit"
	"github.com/louisbranch/mapveto/internal/veto/domain"
)

func TestCreateSessionPersists(t *testing.T) {
	svc, clock := newTestService(t)
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
	if sess.Status != domain.StatusDraft {
		t.Errorf("Status = %q, want %q", sess.Status, domain.StatusDraft)
	}
	if want := clock.Now().Add(72 * time.Hour); !sess.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", sess.ExpiresAt, want)
	}

	stored, err := svc.stores.Sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.Name != "Qualifier Finals" {
		t.Errorf("Name = %q, want Qualifier Finals", stored.Name)
	}

	entries, err := svc.recorder.List(ctx, sess.ID, 10)
	if err != nil {
		t.Fatalf("List audit entries error = %v", err)
	}
	if len(entries) != 1 || entries[0].Action != audit.ActionSessionCreated {
		t.Errorf("audit trail = %+v, want one SESSION_CREATED entry", entries)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input domain.CreateSessionInput
		want  apperrors.Code
	}{
		{
			name:  "empty name",
			input: domain.CreateSessionInput{Format: domain.FormatABBA, TimerSeconds: 60, MapPoolSize: 5},
			want:  apperrors.CodeValidationSessionName,
		},
		{
			name:  "bad format",
			input: domain.CreateSessionInput{Name: "x", Format: "BESTOF3", TimerSeconds: 60, MapPoolSize: 5},
			want:  apperrors.CodeValidationFormat,
		},
		{
			name:  "timer too short",
			input: domain.CreateSessionInput{Name: "x", Format: domain.FormatABBA, TimerSeconds: 5, MapPoolSize: 5},
			want:  apperrors.CodeValidationTimerBounds,
		},
		{
			name:  "pool too large",
			input: domain.CreateSessionInput{Name: "x", Format: domain.FormatABBA, TimerSeconds: 60, MapPoolSize: 16},
			want:  apperrors.CodeValidationPoolSizeBounds,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, testAdmin, tc.input)
			if got := apperrors.GetCode(err); got != tc.want {
				t.Errorf("code = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSetupMovesSessionToWaiting(t *testing.T) {
	svc, _ := newTestService(t)
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

	if _, err := svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(5)); err != nil {
		t.Fatalf("SetMapPool() error = %v", err)
	}

	first, err := svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
		SessionID: sess.ID, Role: domain.RolePlayerA, TeamName: "Alpha",
	})
	if err != nil {
		t.Fatalf("AssignSeat(A) error = %v", err)
	}
	if first.Ready {
		t.Error("first seat reported Ready, want false")
	}
	if first.Token == "" {
		t.Error("first seat token is empty")
	}

	second, err := svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
		SessionID: sess.ID, Role: domain.RolePlayerB, TeamName: "Bravo",
	})
	if err != nil {
		t.Fatalf("AssignSeat(B) error = %v", err)
	}
	if !second.Ready {
		t.Error("final seat reported Ready = false, want true")
	}

	stored, err := svc.stores.Sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.Status != domain.StatusWaiting {
		t.Errorf("Status = %q, want %q", stored.Status, domain.StatusWaiting)
	}
}

func TestSetupWritesSerializeOnRevision(t *testing.T) {
	svc, _ := newTestService(t)
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
	base := sess.Revision

	// Every setup write carries the guarded session update, even while the
	// session stays in DRAFT. A concurrent seat or pool write at the same
	// revision loses with CONFLICT_REVISION instead of leaving a fully
	// populated session stuck in DRAFT.
	if _, err := svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
		SessionID: sess.ID, Role: domain.RolePlayerA, TeamName: "Alpha",
	}); err != nil {
		t.Fatalf("AssignSeat(A) error = %v", err)
	}
	stored, err := svc.stores.Sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.Revision != base+1 {
		t.Errorf("revision after seat = %d, want %d", stored.Revision, base+1)
	}
	if stored.Status != domain.StatusDraft {
		t.Errorf("Status = %q, want %q", stored.Status, domain.StatusDraft)
	}

	if _, err := svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(5)); err != nil {
		t.Fatalf("SetMapPool() error = %v", err)
	}
	stored, err = svc.stores.Sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.Revision != base+2 {
		t.Errorf("revision after pool = %d, want %d", stored.Revision, base+2)
	}

	if _, err := svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
		SessionID: sess.ID, Role: domain.RolePlayerB, TeamName: "Bravo",
	}); err != nil {
		t.Fatalf("AssignSeat(B) error = %v", err)
	}
	stored, err = svc.stores.Sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.Revision != base+3 {
		t.Errorf("revision after final seat = %d, want %d", stored.Revision, base+3)
	}
	if stored.Status != domain.StatusWaiting {
		t.Errorf("Status = %q, want %q", stored.Status, domain.StatusWaiting)
	}
}

func TestAssignSeatRoleConflicts(t *testing.T) {
	svc, _ := newTestService(t)
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

	input := domain.AssignSeatInput{SessionID: sess.ID, Role: domain.RolePlayerA, TeamName: "Alpha"}
	if _, err := svc.AssignSeat(ctx, testAdmin, input); err != nil {
		t.Fatalf("AssignSeat() error = %v", err)
	}

	_, err = svc.AssignSeat(ctx, testAdmin, input)
	if got := apperrors.GetCode(err); got != apperrors.CodeConflictRoleOccupied {
		t.Errorf("code = %q, want %q", got, apperrors.CodeConflictRoleOccupied)
	}

	_, err = svc.AssignSeat(ctx, testAdmin, domain.AssignSeatInput{
		SessionID: sess.ID, Role: domain.RolePlayer3, TeamName: "Charlie",
	})
	if got := apperrors.GetCode(err); got != apperrors.CodeValidationSeatRole {
		t.Errorf("code = %q, want %q", got, apperrors.CodeValidationSeatRole)
	}
}

func TestSetMapPoolRejectsWrongSizeAndResets(t *testing.T) {
	svc, _ := newTestService(t)
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

	_, err = svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(4))
	if got := apperrors.GetCode(err); got != apperrors.CodeValidationPoolSizeMismatch {
		t.Errorf("code = %q, want %q", got, apperrors.CodeValidationPoolSizeMismatch)
	}

	if _, err := svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(5)); err != nil {
		t.Fatalf("SetMapPool() error = %v", err)
	}
	_, err = svc.SetMapPool(ctx, testAdmin, sess.ID, poolInputs(5))
	if got := apperrors.GetCode(err); got != apperrors.CodeConflictStatus {
		t.Errorf("second pool code = %q, want %q", got, apperrors.CodeConflictStatus)
	}
}

func TestPauseAndResume(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	sess, _, _ := setupABBA(t, svc)

	paused, err := svc.PauseSession(ctx, testAdmin, sess.ID)
	if err != nil {
		t.Fatalf("PauseSession() error = %v", err)
	}
	if paused.Status != domain.StatusPaused {
		t.Errorf("Status = %q, want %q", paused.Status, domain.StatusPaused)
	}

	clock.Advance(10 * time.Minute)
	resumed, err := svc.ResumeSession(ctx, testAdmin, sess.ID)
	if err != nil {
		t.Fatalf("ResumeSession() error = %v", err)
	}
	if resumed.Status != domain.StatusInProgress {
		t.Errorf("Status = %q, want %q", resumed.Status, domain.StatusInProgress)
	}
	if resumed.TimerStartedAt == nil || !resumed.TimerStartedAt.Equal(clock.Now()) {
		t.Errorf("TimerStartedAt = %v, want %v", resumed.TimerStartedAt, clock.Now())
	}
}

func TestPauseRequiresInProgress(t *testing.T) {
	svc, _ := newTestService(t)
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

	_, err = svc.PauseSession(ctx, testAdmin, sess.ID)
	if got := apperrors.GetCode(err); got != apperrors.CodeConflictStatus {
		t.Errorf("code = %q, want %q", got, apperrors.CodeConflictStatus)
	}
}

func TestCompleteSessionRequiresWinner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _, _ := setupABBA(t, svc)

	_, err := svc.CompleteSession(ctx, testAdmin, sess.ID)
	if got := apperrors.GetCode(err); got != apperrors.CodeConflictWinnerMissing {
		t.Errorf("code = %q, want %q", got, apperrors.CodeConflictWinnerMissing)
	}
}

func TestCompleteSessionIdempotentAfterDecidingBan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, seats, maps := setupABBA(t, svc)

	order := []domain.SeatRole{domain.RolePlayerA, domain.RolePlayerB, domain.RolePlayerB, domain.RolePlayerA}
	var last domain.BanOutcome
	for i, role := range order {
		outcome, err := svc.SubmitBan(ctx, seats[role].Seat.ID, maps[i].ID)
		if err != nil {
			t.Fatalf("SubmitBan(turn %d) error = %v", i, err)
		}
		last = outcome
	}
	if last.Session.Status != domain.StatusComplete {
		t.Fatalf("Status after final ban = %q, want %q", last.Session.Status, domain.StatusComplete)
	}

	confirmed, err := svc.CompleteSession(ctx, testAdmin, last.Session.ID)
	if err != nil {
		t.Fatalf("CompleteSession() on complete session error = %v", err)
	}
	if confirmed.Status != domain.StatusComplete {
		t.Errorf("Status = %q, want %q", confirmed.Status, domain.StatusComplete)
	}
}

func TestExpireStaleSessions(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	draft, err := svc.CreateSession(ctx, testAdmin, domain.CreateSessionInput{
		Name:         "Forgotten Draft",
		Format:       domain.FormatABBA,
		TimerSeconds: 60,
		MapPoolSize:  5,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// A live session must survive the sweep.
	live, _, _ := setupABBA(t, svc)

	clock.Advance(73 * time.Hour)
	expired, err := svc.ExpireStaleSessions(ctx)
	if err != nil {
		t.Fatalf("ExpireStaleSessions() error = %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	stored, err := svc.stores.Sessions.GetSession(ctx, draft.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if stored.Status != domain.StatusExpired {
		t.Errorf("Status = %q, want %q", stored.Status, domain.StatusExpired)
	}
	kept, err := svc.stores.Sessions.GetSession(ctx, live.ID)
	if err != nil {
		t.Fatalf("GetSession(live) error = %v", err)
	}
	if kept.Status != domain.StatusInProgress {
		t.Errorf("live Status = %q, want %q", kept.Status, domain.StatusInProgress)
	}

	// Sweeps are idempotent.
	expired, err = svc.ExpireStaleSessions(ctx)
	if err != nil {
		t.Fatalf("ExpireStaleSessions() second run error = %v", err)
	}
	if expired != 0 {
		t.Errorf("second run expired = %d, want 0", expired)
	}
}

func TestDeleteSessionCascade(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _, _ := setupABBA(t, svc)

	counts, err := svc.DeleteSession(ctx, testAdmin, sess.ID, true)
	if err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if counts.Seats != 2 || counts.Maps != 5 || counts.Sessions != 1 {
		t.Errorf("counts = %+v, want 2 seats, 5 maps, 1 session", counts)
	}
	if counts.AuditEntries != 0 {
		t.Errorf("AuditEntries = %d, want 0 when preserved", counts.AuditEntries)
	}

	_, err = svc.stores.Sessions.GetSession(ctx, sess.ID)
	if got := apperrors.GetCode(mapStorageErr(err)); got != apperrors.CodeNotFound {
		t.Errorf("code = %q, want %q", got, apperrors.CodeNotFound)
	}

	// The preserved trail keeps the session's history; the deletion itself
	// is recorded globally so no entry references the deleted row.
	entries, err := svc.recorder.List(ctx, sess.ID, 20)
	if err != nil {
		t.Fatalf("List audit entries error = %v", err)
	}
	for _, entry := range entries {
		if entry.Action == audit.ActionSessionDeleted {
			t.Errorf("SESSION_DELETED found on session trail, want global only")
		}
	}
	global, err := svc.recorder.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List global entries error = %v", err)
	}
	if len(global) != 1 || global[0].Action != audit.ActionSessionDeleted {
		t.Fatalf("global entries = %+v, want one SESSION_DELETED", global)
	}
	if !strings.Contains(string(global[0].DetailJSON), sess.ID) {
		t.Errorf("detail = %s, want deleted session id recorded", global[0].DetailJSON)
	}
}

func TestDeleteSessionLeavesNoAuditReference(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, _, _ := setupABBA(t, svc)

	if _, err := svc.DeleteSession(ctx, testAdmin, sess.ID, false); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}

	entries, err := svc.recorder.List(ctx, sess.ID, 20)
	if err != nil {
		t.Fatalf("List audit entries error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries referencing deleted session = %d, want 0", len(entries))
	}

	global, err := svc.recorder.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List global entries error = %v", err)
	}
	if len(global) != 1 || global[0].Action != audit.ActionSessionDeleted {
		t.Fatalf("global entries = %+v, want one SESSION_DELETED", global)
	}
}

func TestDeleteMissingSession(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.DeleteSession(context.Background(), testAdmin, "missing", false)
	if got := apperrors.GetCode(err); got != apperrors.CodeNotFound {
		t.Errorf("code = %q, want %q", got, apperrors.CodeNotFound)
	}
}
