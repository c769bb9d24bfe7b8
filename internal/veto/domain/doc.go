// Package domain models the map veto negotiation: sessions, seats, map
// pools, votes, and the deterministic rules that advance them.
//
// A Session is one negotiation instance between two teams (ABBA format) or
// four teams (MULTIPLAYER format). Seats alternately ban maps, or vote maps
// out round by round, until a single map remains and becomes the winner.
//
// # Session Lifecycle
//
// Sessions move forward through DRAFT → WAITING → IN_PROGRESS → COMPLETE,
// with IN_PROGRESS ⇄ PAUSED as the only cycle. DRAFT and WAITING sessions
// that outlive their expiry timestamp move to EXPIRED. COMPLETE and EXPIRED
// are terminal.
//
// # Determinism
//
// Every rule in this package is a pure function of its inputs: who is due to
// act, which map a timeout bans, and how tied rounds resolve are all decided
// server-side so that the audit trail can replay any session. Callers inject
// clocks and id generators; nothing here touches storage or the network.
package domain
