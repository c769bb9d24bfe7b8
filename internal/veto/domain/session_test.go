package domain

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/mapveto/internal/platform/errors"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func staticIDs(t *testing.T) func() (string, error) {
	t.Helper()
	n := 0
	return func() (string, error) {
		n++
		return "id-" + string(rune('a'+n-1)), nil
	}
}

func TestCreateSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	sess, err := CreateSession(CreateSessionInput{
		Name:         "  Grand Final  ",
		Format:       FormatABBA,
		TimerSeconds: 60,
		MapPoolSize:  5,
	}, DefaultLimits(), fixedClock(now), staticIDs(t))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if sess.Name != "Grand Final" {
		t.Fatalf("name = %q, want %q", sess.Name, "Grand Final")
	}
	if sess.Status != StatusDraft {
		t.Fatalf("status = %s, want %s", sess.Status, StatusDraft)
	}
	if sess.PlayerCount != 2 {
		t.Fatalf("player count = %d, want 2", sess.PlayerCount)
	}
	if sess.CurrentTurn != 0 || sess.CurrentRound != 1 {
		t.Fatalf("counters = (%d, %d), want (0, 1)", sess.CurrentTurn, sess.CurrentRound)
	}
	if !sess.ExpiresAt.Equal(now.Add(72 * time.Hour)) {
		t.Fatalf("expires at = %s, want creation + 72h", sess.ExpiresAt)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	now := fixedClock(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	tests := []struct {
		name  string
		input CreateSessionInput
		want  apperrors.Code
	}{
		{
			"empty name",
			CreateSessionInput{Format: FormatABBA, TimerSeconds: 60, MapPoolSize: 5},
			apperrors.CodeValidationSessionName,
		},
		{
			"bad format",
			CreateSessionInput{Name: "x", Format: Format("DUEL"), TimerSeconds: 60, MapPoolSize: 5},
			apperrors.CodeValidationFormat,
		},
		{
			"timer too low",
			CreateSessionInput{Name: "x", Format: FormatABBA, TimerSeconds: 5, MapPoolSize: 5},
			apperrors.CodeValidationTimerBounds,
		},
		{
			"timer too high",
			CreateSessionInput{Name: "x", Format: FormatABBA, TimerSeconds: 601, MapPoolSize: 5},
			apperrors.CodeValidationTimerBounds,
		},
		{
			"pool too small",
			CreateSessionInput{Name: "x", Format: FormatABBA, TimerSeconds: 60, MapPoolSize: 2},
			apperrors.CodeValidationPoolSizeBounds,
		},
		{
			"pool too large",
			CreateSessionInput{Name: "x", Format: FormatABBA, TimerSeconds: 60, MapPoolSize: 16},
			apperrors.CodeValidationPoolSizeBounds,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateSession(tc.input, DefaultLimits(), now, staticIDs(t))
			if got := apperrors.GetCode(err); got != tc.want {
				t.Fatalf("error code = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		legal    bool
	}{
		{StatusDraft, StatusWaiting, true},
		{StatusDraft, StatusExpired, true},
		{StatusDraft, StatusInProgress, false},
		{StatusWaiting, StatusInProgress, true},
		{StatusWaiting, StatusExpired, true},
		{StatusInProgress, StatusPaused, true},
		{StatusInProgress, StatusComplete, true},
		{StatusInProgress, StatusExpired, false},
		{StatusPaused, StatusInProgress, true},
		{StatusPaused, StatusComplete, false},
		{StatusComplete, StatusInProgress, false},
		{StatusExpired, StatusWaiting, false},
	}
	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.legal {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.legal)
		}
	}
}

func TestStartSessionInitializesTimer(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	sess := Session{Status: StatusWaiting, CurrentTurn: 3, CurrentRound: 9}

	started, err := StartSession(sess, now)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if started.Status != StatusInProgress {
		t.Fatalf("status = %s, want %s", started.Status, StatusInProgress)
	}
	if started.CurrentTurn != 0 || started.CurrentRound != 1 {
		t.Fatalf("counters = (%d, %d), want (0, 1)", started.CurrentTurn, started.CurrentRound)
	}
	if started.TimerStartedAt == nil || !started.TimerStartedAt.Equal(now) {
		t.Fatalf("timer started at = %v, want %s", started.TimerStartedAt, now)
	}
}

func TestPauseResumeRestartsTimer(t *testing.T) {
	startedAt := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	sess := Session{Status: StatusInProgress, TimerStartedAt: &startedAt}

	paused, err := PauseSession(sess, startedAt.Add(20*time.Second))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if paused.Status != StatusPaused {
		t.Fatalf("status = %s, want %s", paused.Status, StatusPaused)
	}
	// Pausing freezes but does not reset the timer field.
	if paused.TimerStartedAt == nil || !paused.TimerStartedAt.Equal(startedAt) {
		t.Fatalf("paused timer started at = %v, want %s", paused.TimerStartedAt, startedAt)
	}

	resumedAt := startedAt.Add(5 * time.Minute)
	resumed, err := ResumeSession(paused, resumedAt)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.TimerStartedAt == nil || !resumed.TimerStartedAt.Equal(resumedAt) {
		t.Fatalf("resumed timer started at = %v, want %s", resumed.TimerStartedAt, resumedAt)
	}
}

func TestExpireSession(t *testing.T) {
	created := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	sess := Session{Status: StatusWaiting, ExpiresAt: created.Add(72 * time.Hour)}

	if _, _, err := ExpireSession(sess, created.Add(time.Hour)); apperrors.GetCode(err) != apperrors.CodeConflictStatus {
		t.Fatalf("expected conflict expiring before the deadline, got %v", err)
	}

	expired, changed, err := ExpireSession(sess, created.Add(73*time.Hour))
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if !changed {
		t.Fatal("expected expiry to report a change")
	}
	if expired.Status != StatusExpired {
		t.Fatalf("status = %s, want %s", expired.Status, StatusExpired)
	}

	// Re-running on an already-expired session is a no-op, not an error.
	again, changed, err := ExpireSession(expired, created.Add(90*time.Hour))
	if err != nil {
		t.Fatalf("re-expire: %v", err)
	}
	if changed {
		t.Fatal("expected idempotent expiry to report no change")
	}
	if again.Status != StatusExpired {
		t.Fatalf("status = %s, want %s", again.Status, StatusExpired)
	}
}

func TestExpireSessionRejectsLiveSessions(t *testing.T) {
	sess := Session{Status: StatusInProgress, ExpiresAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	_, _, err := ExpireSession(sess, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if apperrors.GetCode(err) != apperrors.CodeConflictStatus {
		t.Fatalf("expected conflict for in-progress session, got %v", err)
	}
}
