// Package sqlite implements the engine's storage interfaces on a local
// SQLite database.
//
// The store opens its database in WAL mode with foreign keys enabled and a
// busy timeout, and applies embedded migrations on open. All write batches go
// through ApplyMutation, which wraps the batch in one transaction and guards
// session updates with the optimistic revision column. Cascade deletes run
// child-first inside a single transaction so a partial cascade is never
// observable.
package sqlite
