package oracle

import "sync/atomic"

// Stats are the per-operation counters the adapter keeps; they are read
// through Adapter.StatsFor and are not published as events.
// Kept as plain atomics rather than behind a mutex since each counter is
// independent and read-mostly.
type Stats struct {
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	Timeout  int64 `json:"timeout"`
	Failure  int64 `json:"failure"`
	Fallback int64 `json:"fallback"`
}

type statCounters struct {
	total, success, timeout, failure, fallback int64
}

func (s *statCounters) snapshot() Stats {
	return Stats{
		Total:    atomic.LoadInt64(&s.total),
		Success:  atomic.LoadInt64(&s.success),
		Timeout:  atomic.LoadInt64(&s.timeout),
		Failure:  atomic.LoadInt64(&s.failure),
		Fallback: atomic.LoadInt64(&s.fallback),
	}
}
