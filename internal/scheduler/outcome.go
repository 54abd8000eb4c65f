package scheduler

// ActionKind names one of the per-task platform actions.
type ActionKind string

const (
	ActionCrawl   ActionKind = "crawl"
	ActionFollow  ActionKind = "follow"
	ActionLike    ActionKind = "like"
	ActionComment ActionKind = "comment"
	ActionRepost  ActionKind = "repost"
)

// ActionResult is the outcome of one attempted action.
type ActionResult struct {
	Succeeded bool
	Detail    string
}

// Outcome summarizes one executed (task, account) pair. It is a closed
// structure: one optional sub-result per action kind, nil meaning the
// action was not attempted for this account.
//
// Err reports a transport-level failure of the crawl itself; it feeds
// the run summary but never the circuit breaker. SoftFailure reports a
// platform-side suppression detected by a follow-up check; it feeds the
// circuit breaker exclusively.
type Outcome struct {
	Crawled     bool
	CrawlDetail string
	Err         error

	Follow  *ActionResult
	Like    *ActionResult
	Comment *ActionResult
	Repost  *ActionResult

	SoftFailure bool
}

// actionResults pairs each attempted action with its kind, in the order
// the executor performs them.
func (o *Outcome) actionResults() []struct {
	Kind   ActionKind
	Result *ActionResult
} {
	return []struct {
		Kind   ActionKind
		Result *ActionResult
	}{
		{ActionFollow, o.Follow},
		{ActionLike, o.Like},
		{ActionComment, o.Comment},
		{ActionRepost, o.Repost},
	}
}
