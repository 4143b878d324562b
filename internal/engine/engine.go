// Package engine implements the workflow core of the status board: it
// validates and applies role-scoped transitions, manages cycle numbering,
// and appends audit entries atomically with each board mutation. Cycle
// closes (summary computation, report emission) run as asynchronous
// best-effort follow-ups after the transaction commits.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantasur/tablero/internal/timeline"
	"github.com/plantasur/tablero/pkg/board"
)

// Store is the transactional document store the engine runs against.
// *board.Client satisfies it; tests may run it against a miniredis-backed
// client for full determinism. The engine performs no client-side locking:
// it relies entirely on UpdateBoard's optimistic transaction semantics plus
// its own re-validation inside the transaction body.
type Store interface {
	CreateBoard(ctx context.Context) (bool, error)
	GetBoard(ctx context.Context) (*board.Board, error)
	UpdateBoard(ctx context.Context, mutate func(cur *board.Board) (*board.Board, *board.AuditEntry, error)) (*board.Board, *board.AuditEntry, error)
	ResetBoard(ctx context.Context) error
	ListCycleEntries(ctx context.Context, cycle int) ([]*board.AuditEntry, error)
	SaveCycleSummary(ctx context.Context, s *board.CycleSummary) error
	DeleteCycleHistory(ctx context.Context, cycle int) (int, error)
	DeleteAllHistory(ctx context.Context) (int, error)
}

// Reporter dispatches a closed cycle's summary to an external endpoint.
// Implementations must treat delivery as fire-and-forget; the engine logs
// and swallows any error it returns.
type Reporter interface {
	SendCycleReport(ctx context.Context, summary *board.CycleSummary, entries []*board.AuditEntry) error
}

// closeTimeout bounds one cycle-close follow-up (log fetch, summary
// persistence, report emission).
const closeTimeout = 30 * time.Second

// abortAction is the audit label recorded for an aborted cycle.
const abortAction = "Abortar ciclo"

// Engine applies workflow transitions against the injected store.
// It is safe for concurrent use.
type Engine struct {
	store    Store
	reporter Reporter // nil disables report emission
	uid      string   // actor identifier stamped on audit entries
	wg       sync.WaitGroup
}

// New creates a workflow engine. reporter may be nil when report emission is
// not configured. uid identifies the acting session on audit entries and
// defaults to "anon".
func New(store Store, reporter Reporter, uid string) *Engine {
	if uid == "" {
		uid = "anon"
	}
	return &Engine{
		store:    store,
		reporter: reporter,
		uid:      uid,
	}
}

// InitBoard creates the board document with the initial state and cycle 1.
// Idempotent: returns false without touching anything if it already exists.
func (e *Engine) InitBoard(ctx context.Context) (bool, error) {
	return e.store.CreateBoard(ctx)
}

// ApplyTransition moves the board to the requested state on behalf of role.
//
// Legality is checked twice: once against the locally fetched state (a fast
// rejection before any mutation - a TransitionError here means the table
// simply does not allow it) and again authoritatively inside the store
// transaction against the freshest state (a failure there surfaces as
// board.ErrStateChanged, meaning another actor moved the board first).
//
// The cycle counter increments only when the transition returns the board to
// the initial state; the reset entry is tagged with the new cycle number.
// Reaching the terminal state does not increment the counter - it closes the
// current cycle's summary, and its entry keeps the current cycle number.
//
// Returns the committed board and audit entry.
func (e *Engine) ApplyTransition(ctx context.Context, role board.Role, to board.StateKey, note string) (*board.Board, *board.AuditEntry, error) {
	if err := role.Validate(); err != nil {
		return nil, nil, err
	}
	if err := to.Validate(); err != nil {
		return nil, nil, err
	}

	// Fast local check - UX only, not authoritative.
	cur, err := e.store.GetBoard(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !board.CanTransition(role, cur.Current, to) {
		return nil, nil, &TransitionError{Role: role, From: cur.Current, To: to}
	}

	updated, entry, err := e.store.UpdateBoard(ctx, func(fresh *board.Board) (*board.Board, *board.AuditEntry, error) {
		if !board.CanTransition(role, fresh.Current, to) {
			return nil, nil, board.ErrStateChanged
		}

		action, _ := board.ActionFor(role, fresh.Current, to)
		now := time.Now().UnixMilli()

		newCycle := fresh.Cycle
		entryCycle := fresh.Cycle
		if to == board.StateInitial {
			newCycle = fresh.Cycle + 1
			entryCycle = newCycle
		}

		nb := &board.Board{
			Current:     to,
			Cycle:       newCycle,
			UpdatedAtMs: now,
		}
		en := &board.AuditEntry{
			ID:     uuid.New().String(),
			TsMs:   now,
			UID:    e.uid,
			Role:   role,
			From:   fresh.Current,
			To:     to,
			Action: action,
			Note:   note,
			Cycle:  entryCycle,
		}
		return nb, en, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if to == board.StateTerminal {
		e.closeCycleAsync(entry.Cycle, timeline.Meta{})
	}
	return updated, entry, nil
}

// AbortCycle abandons the current cycle: it resets the board to the initial
// state and increments the cycle counter. Restricted to the operations role
// and only meaningful when the board is not already at the initial state.
//
// Unlike a normal reset transition, the abort entry is tagged with the
// pre-increment cycle number - it belongs to the cycle being abandoned -
// and the abandoned cycle's summary is computed with the aborted flag set.
func (e *Engine) AbortCycle(ctx context.Context, role board.Role, reason string) (*board.Board, *board.AuditEntry, error) {
	if role != board.RoleOperacion {
		return nil, nil, ErrRoleNotAllowed
	}

	cur, err := e.store.GetBoard(ctx)
	if err != nil {
		return nil, nil, err
	}
	if cur.Current == board.StateInitial {
		return nil, nil, ErrNothingToAbort
	}

	var abortedCycle int
	updated, entry, err := e.store.UpdateBoard(ctx, func(fresh *board.Board) (*board.Board, *board.AuditEntry, error) {
		if fresh.Current == board.StateInitial {
			return nil, nil, board.ErrStateChanged
		}

		now := time.Now().UnixMilli()
		abortedCycle = fresh.Cycle

		nb := &board.Board{
			Current:     board.StateInitial,
			Cycle:       fresh.Cycle + 1,
			UpdatedAtMs: now,
		}
		en := &board.AuditEntry{
			ID:     uuid.New().String(),
			TsMs:   now,
			UID:    e.uid,
			Role:   role,
			From:   fresh.Current,
			To:     board.StateInitial,
			Action: abortAction,
			Note:   reason,
			Cycle:  abortedCycle,
		}
		return nb, en, nil
	})
	if err != nil {
		return nil, nil, err
	}

	e.closeCycleAsync(abortedCycle, timeline.Meta{Aborted: true, AbortReason: reason})
	return updated, entry, nil
}

// ClearCycleHistory deletes one cycle's audit entries and summary, in
// bounded batches. Restricted to the operations role.
// Returns the number of entries deleted.
func (e *Engine) ClearCycleHistory(ctx context.Context, role board.Role, cycle int) (int, error) {
	if role != board.RoleOperacion {
		return 0, ErrRoleNotAllowed
	}
	return e.store.DeleteCycleHistory(ctx, cycle)
}

// ClearAllHistory deletes every audit entry and cycle summary, then resets
// the board to the initial state with cycle 1. Restricted to the operations
// role. The deletion is paged and not atomic as a whole; an interruption may
// leave partial results.
func (e *Engine) ClearAllHistory(ctx context.Context, role board.Role) (int, error) {
	if role != board.RoleOperacion {
		return 0, ErrRoleNotAllowed
	}

	deleted, err := e.store.DeleteAllHistory(ctx)
	if err != nil {
		return deleted, err
	}
	if err := e.store.ResetBoard(ctx); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Wait blocks until all pending cycle-close follow-ups finish. Callers that
// are about to exit (CLI commands, tests) use it to flush side effects; the
// follow-ups themselves never block or fail the committed transition.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// closeCycleAsync launches the post-commit cycle close. The already
// committed transition must not be rolled back or retried on its account, so
// every failure inside is logged and swallowed.
func (e *Engine) closeCycleAsync(cycle int, meta timeline.Meta) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		// The request context may be gone by now; the follow-up gets its own.
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		e.closeCycle(ctx, cycle, meta)
	}()
}

func (e *Engine) closeCycle(ctx context.Context, cycle int, meta timeline.Meta) {
	entries, err := e.store.ListCycleEntries(ctx, cycle)
	if err != nil {
		log.Printf("[Engine] Failed to fetch entries for cycle %d: %v", cycle, err)
		return
	}

	meta.CreatedAtMs = time.Now().UnixMilli()
	summary := timeline.Compute(cycle, entries, meta)
	if summary == nil {
		log.Printf("[Engine] Cycle %d has no entries; skipping summary", cycle)
		return
	}

	if err := e.store.SaveCycleSummary(ctx, summary); err != nil {
		log.Printf("[Engine] Failed to persist summary for cycle %d: %v", cycle, err)
		// The summary still exists in memory; reporting proceeds regardless.
	}

	if e.reporter != nil {
		if err := e.reporter.SendCycleReport(ctx, summary, entries); err != nil {
			log.Printf("[Engine] Failed to send report for cycle %d: %v", cycle, err)
		}
	}
}
