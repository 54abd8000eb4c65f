package scheduler

import "github.com/keissar/entrant/internal/catalog"

// Rand is the injectable randomness source used for backlog shuffling
// and account selection. *math/rand.Rand satisfies it; tests inject a
// seeded or scripted source for deterministic ordering.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// BuildBacklog computes one account's private task queue: the catalog
// minus the tasks already recorded in that account's dedup store, in
// uniformly random order.
//
// The shuffle is deliberate: sequential, identical processing order
// across accounts is an externally observable pattern this system must
// not produce.
func BuildBacklog(cat []catalog.Task, done map[string]struct{}, rng Rand) []catalog.Task {
	backlog := make([]catalog.Task, 0, len(cat))
	for _, task := range cat {
		if _, delivered := done[task.ID()]; delivered {
			continue
		}
		backlog = append(backlog, task)
	}
	rng.Shuffle(len(backlog), func(i, j int) {
		backlog[i], backlog[j] = backlog[j], backlog[i]
	})
	return backlog
}
