package logging

import "sync"

// ProgressSampler thins per-file progress events down to one line per
// percentage step, for runs without a terminal to draw a bar on. It is safe
// for concurrent use.
type ProgressSampler struct {
	mu   sync.Mutex
	step int
	last int
	done bool
}

// NewProgressSampler emits whenever progress crosses a multiple of step
// percent. Steps outside 1..100 fall back to 10.
func NewProgressSampler(step int) *ProgressSampler {
	if step <= 0 || step > 100 {
		step = 10
	}
	return &ProgressSampler{step: step, last: -1}
}

// ShouldLog reports whether the event for the current-th of total files
// should be logged. The first and the last file always are.
func (s *ProgressSampler) ShouldLog(current, total int) bool {
	if s == nil {
		return true
	}
	if total <= 0 {
		return false
	}
	current = min(max(current, 0), total)
	bucket := current * 100 / total / s.step

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.done:
		return false
	case current == total:
		s.done = true
		return true
	case bucket <= s.last:
		return false
	}
	s.last = bucket
	return true
}
