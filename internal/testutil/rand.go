// Package testutil provides deterministic stand-ins for the
// scheduler's injected randomness and pause dependencies.
package testutil

import (
	"context"
	"time"
)

// ScriptedRand returns pre-scripted Intn draws and performs identity
// shuffles, making task order fully deterministic in tests.
//
// Intn returns the scripted values in sequence, each reduced modulo n;
// when the script is exhausted it starts over. An empty script always
// returns 0.
type ScriptedRand struct {
	Script []int
	pos    int
}

func (r *ScriptedRand) Intn(n int) int {
	if len(r.Script) == 0 {
		return 0
	}
	v := r.Script[r.pos%len(r.Script)] % n
	r.pos++
	return v
}

// Shuffle leaves order unchanged so tests can assert on catalog order.
func (r *ScriptedRand) Shuffle(n int, swap func(i, j int)) {}

// ReverseRand reverses order on Shuffle and always selects index 0,
// for tests that need to observe that a shuffle happened at all.
type ReverseRand struct{}

func (ReverseRand) Intn(n int) int { return 0 }

func (ReverseRand) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

// SleepCall records one Sleep invocation.
type SleepCall struct {
	Min time.Duration
	Max time.Duration
}

// RecordingSleeper records requested pauses without blocking.
type RecordingSleeper struct {
	Calls []SleepCall
}

func (s *RecordingSleeper) Sleep(ctx context.Context, min, max time.Duration) {
	s.Calls = append(s.Calls, SleepCall{Min: min, Max: max})
}
