package scheduler

// DefaultSoftBanThreshold is the number of soft-suppression failures
// after which an account is disabled for the rest of the run.
const DefaultSoftBanThreshold = 3

// Breaker is the per-account soft-failure circuit breaker.
//
// Only soft suppressions feed it: actions the platform accepted at the
// transport level but hid, detected by an out-of-band follow-up check.
// Ordinary network or API failures never do.
type Breaker struct {
	threshold int
}

// NewBreaker creates a breaker with the given global threshold.
// Non-positive values fall back to DefaultSoftBanThreshold.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultSoftBanThreshold
	}
	return &Breaker{threshold: threshold}
}

// Record counts one soft failure against the account and reports
// whether this crossing disabled it. Disabling is a one-time,
// irreversible transition within the run.
func (b *Breaker) Record(a *Account) (tripped bool) {
	a.SoftFailures++
	if a.Enabled && a.SoftFailures >= b.thresholdFor(a) {
		a.Enabled = false
		return true
	}
	return false
}

// ShouldDisable reports whether the account has reached its threshold.
func (b *Breaker) ShouldDisable(a *Account) bool {
	return a.SoftFailures >= b.thresholdFor(a)
}

// thresholdFor resolves the effective threshold: a positive per-account
// override wins over the global default.
func (b *Breaker) thresholdFor(a *Account) int {
	if a.ThresholdOverride > 0 {
		return a.ThresholdOverride
	}
	return b.threshold
}
