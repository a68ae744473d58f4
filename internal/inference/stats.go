package inference

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at time.Time
	ms int64
}

// StatsSnapshot aggregates the latency samples of one operation.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// LatencyStats keeps a rolling window of backend call latencies per
// operation ("classify", "embed").
type LatencyStats struct {
	mu     sync.Mutex
	maxAge time.Duration
	ops    map[string]*opSamples
}

type opSamples struct {
	ok     []sample
	failed []time.Time
}

func NewLatencyStats(maxAge time.Duration) *LatencyStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LatencyStats{maxAge: maxAge, ops: make(map[string]*opSamples)}
}

// Record adds one call. Failed calls count toward Errors but not latency.
func (s *LatencyStats) Record(op string, d time.Duration, err error) {
	now := time.Now()
	ms := max(d.Milliseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	o := s.ops[op]
	if o == nil {
		o = &opSamples{}
		s.ops[op] = o
	}
	s.pruneLocked(o, now)
	if err != nil {
		o.failed = append(o.failed, now)
		return
	}
	o.ok = append(o.ok, sample{at: now, ms: ms})
}

// Snapshot returns per-operation aggregates for the current window.
func (s *LatencyStats) Snapshot() map[string]StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]StatsSnapshot, len(s.ops))
	for op, o := range s.ops {
		s.pruneLocked(o, now)
		out[op] = summarize(o)
	}
	return out
}

func summarize(o *opSamples) StatsSnapshot {
	snap := StatsSnapshot{Errors: len(o.failed)}
	if len(o.ok) == 0 {
		return snap
	}
	values := make([]int64, len(o.ok))
	var sum int64
	for i, sm := range o.ok {
		values[i] = sm.ms
		sum += sm.ms
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LatencyStats) pruneLocked(o *opSamples, now time.Time) {
	cutoff := now.Add(-s.maxAge)
	o.ok = slices.DeleteFunc(o.ok, func(sm sample) bool { return sm.at.Before(cutoff) })
	o.failed = slices.DeleteFunc(o.failed, func(t time.Time) bool { return t.Before(cutoff) })
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	idx := float64(len(sorted)-1) * pct / 100
	lo := int(idx)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := idx - float64(lo)
	return float64(sorted[lo]) + float64(sorted[lo+1]-sorted[lo])*frac
}
