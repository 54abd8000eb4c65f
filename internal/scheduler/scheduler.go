// Package scheduler walks per-account task backlogs until exhaustion.
//
// The loop is single-threaded by design: tasks execute strictly one at
// a time, end-to-end, across all accounts, keeping the aggregate
// request rate low and humanlike. Each iteration picks one still-active
// account uniformly at random (not round-robin - random selection
// avoids bursty, account-ordered request patterns), pops the front task
// of its backlog, dispatches it synchronously, and applies the outcome
// to the account's dedup store and to the circuit breaker.
//
// Cancellation is cooperative and checked only between task boundaries:
// an in-flight task finishes, no new task starts, and the loop returns
// the summary. The scheduler imposes no timeout on the executor call; a
// hung executor blocks the loop, which is an accepted limitation of the
// executor's contract, not of this loop.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/keissar/entrant/internal/catalog"
)

// Executor performs one (task, account) pair's full action sequence and
// summarizes what happened. The scheduler neither knows nor cares how
// actions are performed.
type Executor interface {
	Execute(ctx context.Context, task catalog.Task, account *Account) Outcome
}

// Options configures a Scheduler. Zero-value fields get production
// defaults.
type Options struct {
	Rand    Rand
	Sleeper Sleeper
	Breaker *Breaker
	Logger  *slog.Logger

	// TaskDelayMin/Max bound the randomized pause between tasks.
	TaskDelayMin time.Duration
	TaskDelayMax time.Duration
}

// Scheduler owns the active account pool for one run.
type Scheduler struct {
	exec    Executor
	active  []*Account
	rng     Rand
	sleeper Sleeper
	breaker *Breaker
	log     *slog.Logger

	delayMin time.Duration
	delayMax time.Duration
}

// New builds a scheduler over the given accounts. Accounts that are
// disabled or have empty backlogs never enter the active pool.
func New(exec Executor, accounts []*Account, opts Options) *Scheduler {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Sleeper == nil {
		opts.Sleeper = NewSleeper(opts.Rand)
	}
	if opts.Breaker == nil {
		opts.Breaker = NewBreaker(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	active := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		if a.Enabled && !a.exhausted() {
			active = append(active, a)
		}
	}

	return &Scheduler{
		exec:     exec,
		active:   active,
		rng:      opts.Rand,
		sleeper:  opts.Sleeper,
		breaker:  opts.Breaker,
		log:      opts.Logger,
		delayMin: opts.TaskDelayMin,
		delayMax: opts.TaskDelayMax,
	}
}

// ActiveAccounts returns the current size of the active pool.
func (s *Scheduler) ActiveAccounts() int {
	return len(s.active)
}

// Run drives the loop until every account is retired (backlog drained
// or breaker tripped) or the context is cancelled. Always returns a
// summary; it is never nil.
func (s *Scheduler) Run(ctx context.Context) *Summary {
	sum := NewSummary()
	start := time.Now()
	defer func() { sum.Duration = time.Since(start) }()

	for len(s.active) > 0 {
		if ctx.Err() != nil {
			s.log.Info("run cancelled, stopping before next task",
				"remaining_accounts", len(s.active))
			return sum
		}

		acct := s.active[s.rng.Intn(len(s.active))]
		task := acct.pop()

		s.log.Info("dispatching task",
			"account", acct.Name, "task", task.ID(), "remaining", len(acct.Backlog))

		outcome := s.exec.Execute(ctx, task, acct)
		s.apply(ctx, sum, acct, task, outcome)

		// Retire exhausted and disabled accounts before the next
		// selection. The popped task above still executed.
		s.compact()

		if len(s.active) > 0 && ctx.Err() == nil {
			s.sleeper.Sleep(ctx, s.delayMin, s.delayMax)
		}
	}

	return sum
}

// apply folds one outcome into the summary, the dedup store, and the
// circuit breaker.
func (s *Scheduler) apply(ctx context.Context, sum *Summary, acct *Account, task catalog.Task, out Outcome) {
	if out.Err != nil || !out.Crawled {
		// Transport/API failure: reported, not retried this run, and
		// never fed to the breaker. No dedup record is written, so the
		// task resurfaces next run.
		detail := out.CrawlDetail
		if out.Err != nil {
			detail = out.Err.Error()
		}
		sum.recordFailure(FailureRecord{
			Kind:    ActionCrawl,
			Reason:  "target content fetch failed",
			Target:  task.SourceURL,
			Detail:  detail,
			Account: acct.Name,
		})
		return
	}
	sum.Crawled++

	for _, ar := range out.actionResults() {
		if ar.Result == nil {
			continue
		}
		if ar.Result.Succeeded {
			sum.countSuccess(ar.Kind)
			continue
		}
		sum.recordFailure(FailureRecord{
			Kind:    ar.Kind,
			Reason:  string(ar.Kind) + " failed",
			Target:  task.SourceURL,
			Detail:  ar.Result.Detail,
			Account: acct.Name,
		})
	}

	// The task is delivered: record it so no future run re-enqueues it
	// for this account. A lost write here is recoverable (the task just
	// repeats), so the error is surfaced instead of being swallowed.
	if err := acct.History.Insert(ctx, task.ID(), string(task.Kind)); err != nil {
		s.log.Error("dedup write failed", "account", acct.Name, "task", task.ID(), "error", err)
		sum.recordFailure(FailureRecord{
			Kind:    ActionCrawl,
			Reason:  "history write failed",
			Target:  task.SourceURL,
			Detail:  err.Error(),
			Account: acct.Name,
		})
	}

	if out.SoftFailure {
		tripped := s.breaker.Record(acct)
		s.log.Warn("soft suppression detected",
			"account", acct.Name, "task", task.ID(), "count", acct.SoftFailures)
		if tripped {
			s.log.Warn("account disabled by circuit breaker",
				"account", acct.Name, "abandoned_tasks", len(acct.Backlog))
		}
	}
}

// compact removes retired accounts from the active pool in place.
func (s *Scheduler) compact() {
	kept := s.active[:0]
	for _, a := range s.active {
		if a.Enabled && !a.exhausted() {
			kept = append(kept, a)
		}
	}
	for i := len(kept); i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = kept
}
