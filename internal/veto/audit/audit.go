// Package audit defines the append-only audit vocabulary and builds the
// entries that state-changing operations attach to their write batches.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/mapveto/internal/veto/storage"
)

// Actions recorded in the audit trail.
const (
	ActionSessionCreated   = "SESSION_CREATED"
	ActionSeatAssigned     = "SEAT_ASSIGNED"
	ActionMapPoolSet       = "MAP_POOL_SET"
	ActionSessionStarted   = "SESSION_STARTED"
	ActionSessionPaused    = "SESSION_PAUSED"
	ActionSessionResumed   = "SESSION_RESUMED"
	ActionSessionCompleted = "SESSION_COMPLETED"
	ActionSessionExpired   = "SESSION_EXPIRED"
	ActionMapBanned        = "MAP_BANNED"
	ActionVoteCast         = "VOTE_CAST"
	ActionRoundResolved    = "ROUND_RESOLVED"
	ActionTimeoutApplied   = "TIMEOUT_APPLIED"
	ActionSessionDeleted   = "SESSION_DELETED"
)

// Actor types attributed to audit entries.
const (
	ActorAdmin  = "ADMIN"
	ActorPlayer = "PLAYER"
	ActorSystem = "SYSTEM"
)

// Actor identifies who performed an audited action.
type Actor struct {
	Type string
	ID   string
}

// System is the actor for engine-initiated actions such as timer expiry.
var System = Actor{Type: ActorSystem, ID: "engine"}

// Admin returns an administrator actor.
func Admin(userID string) Actor {
	return Actor{Type: ActorAdmin, ID: userID}
}

// Player returns a player actor keyed by seat id.
func Player(seatID string) Actor {
	return Actor{Type: ActorPlayer, ID: seatID}
}

// Recorder builds audit entries with a shared clock so an operation's entry
// timestamps match its record timestamps.
type Recorder struct {
	store storage.AuditStore
	now   func() time.Time
}

// NewRecorder creates a recorder. A nil clock defaults to time.Now.
func NewRecorder(store storage.AuditStore, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{store: store, now: now}
}

// Entry builds one audit record. The detail value is marshaled to JSON; a
// nil detail records an empty object.
func (r *Recorder) Entry(sessionID, action string, actor Actor, detail any) storage.AuditEntry {
	payload := []byte("{}")
	if detail != nil {
		encoded, err := json.Marshal(detail)
		if err != nil {
			// Detail payloads are engine-built structs; a marshal failure
			// is a programming error and must not block the mutation.
			encoded = []byte(fmt.Sprintf(`{"marshal_error":%q}`, err.Error()))
		}
		payload = encoded
	}
	return storage.AuditEntry{
		SessionID:  sessionID,
		Action:     action,
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		DetailJSON: payload,
		CreatedAt:  r.now().UTC(),
	}
}

// Record appends a standalone entry outside of a mutation, used for actions
// with no session row left to update, such as cascade deletes.
func (r *Recorder) Record(ctx context.Context, sessionID, action string, actor Actor, detail any) error {
	entry := r.Entry(sessionID, action, actor, detail)
	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// List returns a session's trail, newest first. An empty sessionID returns
// the global entries, such as session deletions.
func (r *Recorder) List(ctx context.Context, sessionID string, limit int) ([]storage.AuditEntry, error) {
	return r.store.ListAuditEntries(ctx, sessionID, limit)
}
