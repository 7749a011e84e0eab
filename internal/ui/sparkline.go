package ui

import (
	"strings"
	"sync"
)

// sparkBlocks are the eight Unicode block elements, lowest to highest.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline keeps a ring buffer of recent samples and renders them as a
// compact block-character chart. Used by the TUI to show indexing speed.
type Sparkline struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool
}

// NewSparkline returns a sparkline holding up to capacity samples.
func NewSparkline(capacity int) *Sparkline {
	if capacity < 1 {
		capacity = 1
	}
	return &Sparkline{samples: make([]float64, capacity)}
}

// Add records a sample, evicting the oldest when full.
func (s *Sparkline) Add(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[s.next] = v
	s.next = (s.next + 1) % len(s.samples)
	if s.next == 0 {
		s.filled = true
	}
}

// Count returns the number of samples recorded so far.
func (s *Sparkline) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled {
		return len(s.samples)
	}
	return s.next
}

// Max returns the largest recorded sample, or zero when empty.
func (s *Sparkline) Max() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0.0
	for _, v := range s.ordered() {
		if v > max {
			max = v
		}
	}
	return max
}

// Clear discards all samples.
func (s *Sparkline) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
	s.filled = false
	for i := range s.samples {
		s.samples[i] = 0
	}
}

// Render draws the most recent samples as block characters, at most width
// runes wide. Returns the empty string when no samples exist or width is
// not positive.
func (s *Sparkline) Render(width int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	vals := s.ordered()
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}

	max := 0.0
	for _, v := range vals {
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for _, v := range vals {
		idx := 0
		if max > 0 {
			idx = int(v / max * float64(len(sparkBlocks)-1))
			if idx >= len(sparkBlocks) {
				idx = len(sparkBlocks) - 1
			}
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}

// ordered returns samples oldest-first. Caller must hold the mutex.
func (s *Sparkline) ordered() []float64 {
	if !s.filled {
		return s.samples[:s.next]
	}
	out := make([]float64, 0, len(s.samples))
	out = append(out, s.samples[s.next:]...)
	out = append(out, s.samples[:s.next]...)
	return out
}
