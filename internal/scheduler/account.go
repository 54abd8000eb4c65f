package scheduler

import (
	"context"

	"github.com/keissar/entrant/internal/catalog"
)

// DedupStore is the per-account delivery history the scheduler writes
// through. Satisfied by *history.Store.
type DedupStore interface {
	Insert(ctx context.Context, taskID, kind string) error
	ListAll(ctx context.Context) (map[string]struct{}, error)
}

// Account is one credentialed identity walking its private backlog.
//
// Enabled is a one-way latch: once the circuit breaker clears it, it is
// never set again within a run. SoftFailures only ever grows. Both are
// owned exclusively by the scheduler loop for the run's duration and
// are process-local (the dedup store is what survives restarts).
type Account struct {
	// Name is the stable identity (the config "remark") used for the
	// history database path and for failure records.
	Name string

	Enabled      bool
	SoftFailures int

	// ThresholdOverride, when positive, replaces the breaker's global
	// soft-failure threshold for this account.
	ThresholdOverride int

	// Backlog is this account's private shuffled task queue, consumed
	// from the front. Emptying it retires the account for this run.
	Backlog []catalog.Task

	// History is the account's dedup store.
	History DedupStore
}

// exhausted reports whether the account has no pending work left.
func (a *Account) exhausted() bool {
	return len(a.Backlog) == 0
}

// pop removes and returns the front backlog task. Callers must check
// exhausted first.
func (a *Account) pop() catalog.Task {
	task := a.Backlog[0]
	// Nil out the slot so the backing array releases the task.
	a.Backlog[0] = catalog.Task{}
	a.Backlog = a.Backlog[1:]
	return task
}
