package types

import (
	"sort"
	"testing"
	"time"
)

func TestNewEventID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewEventID()
		if seen[id] {
			t.Fatalf("NewEventID() produced duplicate %s", id)
		}
		seen[id] = true
	}
}

func TestNewEventID_TimeOrdered(t *testing.T) {
	// UUIDv7 ids generated in sequence must sort lexicographically in
	// generation order; the store's newest-first listing depends on it.
	ids := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, NewEventID())
	}

	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	for i := range ids {
		if ids[i] != sorted[i] {
			t.Fatalf("ids not time-ordered at index %d: generated %s, sorted %s", i, ids[i], sorted[i])
		}
	}
}

func TestParseID(t *testing.T) {
	valid := NewEventID()
	if got, err := ParseID(valid); err != nil || got != valid {
		t.Errorf("ParseID(%q) = (%q, %v), want (%q, nil)", valid, got, err, valid)
	}

	for _, bad := range []string{"", "not-a-uuid", "12345", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz"} {
		if _, err := ParseID(bad); err == nil {
			t.Errorf("ParseID(%q) error = nil, want error", bad)
		}
	}
}

func TestEventIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewEventID()
	after := time.Now().Add(time.Second)

	ts := EventIDTime(id)
	if ts.IsZero() {
		t.Fatalf("EventIDTime(%q) = zero, want embedded timestamp", id)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("EventIDTime(%q) = %v, want within [%v, %v]", id, ts, before, after)
	}

	if got := EventIDTime("garbage"); !got.IsZero() {
		t.Errorf("EventIDTime(garbage) = %v, want zero time", got)
	}
}
