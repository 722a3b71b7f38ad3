// Package budget enforces per-scope daily caps on attention-demanding
// actions. Counters live in memory only; a process restart resets the day's
// usage, which is acceptable for a notification throttle.
package budget

import (
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

type counter struct {
	day   string
	count int
}

// Budget tracks per-scope usage against a UTC-day window.
// Safe for concurrent use.
type Budget struct {
	mu     sync.Mutex
	scopes map[string]*counter
	now    func() time.Time
}

// New constructs a Budget using wall-clock time.
func New() *Budget {
	return NewWithClock(time.Now)
}

// NewWithClock constructs a Budget with an injectable clock.
func NewWithClock(now func() time.Time) *Budget {
	return &Budget{
		scopes: make(map[string]*counter),
		now:    now,
	}
}

// Allow consumes one unit from the scope's daily budget and reports whether
// the action may proceed. A limit of zero or less means unlimited. Counters
// reset when the UTC day changes.
func (b *Budget) Allow(scope string, limitPerDay int) bool {
	if limitPerDay <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.now().UTC().Format(dayLayout)
	c := b.scopes[scope]
	if c == nil || c.day != day {
		c = &counter{day: day}
		b.scopes[scope] = c
	}
	if c.count >= limitPerDay {
		return false
	}
	c.count++
	return true
}

// Used reports how many units the scope has consumed in the current UTC day.
func (b *Budget) Used(scope string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.scopes[scope]
	if c == nil || c.day != b.now().UTC().Format(dayLayout) {
		return 0
	}
	return c.count
}
