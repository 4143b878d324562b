// Package board provides the domain model and Redis schema for the tablero
// status board. The board is the single shared workflow instance tracked by
// all connected operators: a fixed eight-state CIP/swab workflow, a
// role-scoped transition table, an append-only audit log, and per-cycle
// duration summaries.
//
// All Redis keys and channels are namespaced by board id so that several
// boards (e.g. one per filler line) can safely coexist on a single Redis
// server.
//
// The Client applies every board mutation as an optimistic transaction
// (WATCH + MULTI/EXEC): the board hash and the audit entry hash commit
// together or not at all, and a concurrent writer surfaces as
// ErrStateChanged rather than a silent lost update.
package board
