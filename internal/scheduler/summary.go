package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// FailureRecord is one failed action for the run report.
type FailureRecord struct {
	Kind    ActionKind
	Reason  string
	Target  string // source URL of the task
	Detail  string
	Account string
}

// Summary aggregates one run's counters and failures, handed to the
// notifier when the loop exits.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Crawled   int
	Followed  int
	Liked     int
	Commented int
	Reposted  int
	Failed    int

	Failures []FailureRecord
}

// NewSummary creates an empty summary stamped with a fresh run ID.
func NewSummary() *Summary {
	return &Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

func (s *Summary) recordFailure(f FailureRecord) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}

func (s *Summary) countSuccess(kind ActionKind) {
	switch kind {
	case ActionFollow:
		s.Followed++
	case ActionLike:
		s.Liked++
	case ActionComment:
		s.Commented++
	case ActionRepost:
		s.Reposted++
	}
}
