// Package selection keeps a set of half-open time ranges and packs them
// into maximal non-overlapping ranges.
package selection

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRange is returned for ranges whose end is not after their start.
var ErrInvalidRange = errors.New("selection: end must be after start")

// Range is the half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether Start <= t < End.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("%s - %s", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}

// Selection is a collection of ranges keyed by start time. Adding a range
// with an existing start replaces the previous one.
type Selection struct {
	ranges []Range
	packed bool
}

// New returns an empty selection.
func New() *Selection {
	return &Selection{packed: true}
}

// Add appends [start, end).
func (s *Selection) Add(start, end time.Time) error {
	start, end = start.Round(0).UTC(), end.Round(0).UTC()
	if !end.After(start) {
		return fmt.Errorf("%w: %s - %s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	next := Range{Start: start, End: end}
	for i, r := range s.ranges {
		if r.Start.Equal(start) {
			s.ranges[i] = next
			s.packed = false
			return nil
		}
	}
	s.ranges = append(s.ranges, next)
	s.packed = len(s.ranges) == 1
	return nil
}

// AddHour selects the hour starting at t.
func (s *Selection) AddHour(t time.Time) {
	// an hour-long range is never inverted
	_ = s.Add(t, t.Add(time.Hour))
}

// Pack sorts the ranges and merges every pair that touches or overlaps.
func (s *Selection) Pack() *Selection {
	if s.packed {
		return s
	}
	sort.SliceStable(s.ranges, func(i, j int) bool {
		return s.ranges[i].Start.Before(s.ranges[j].Start)
	})

	merged := s.ranges[:0]
	for _, r := range s.ranges {
		if n := len(merged); n > 0 && !r.Start.After(merged[n-1].End) {
			if r.End.After(merged[n-1].End) {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	s.ranges = merged
	s.packed = true
	return s
}

// IsSelected reports whether some range contains t.
func (s *Selection) IsSelected(t time.Time) bool {
	for _, r := range s.ranges {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

// Ranges returns a copy of the packed ranges in ascending start order.
func (s *Selection) Ranges() []Range {
	s.Pack()
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// All yields the packed ranges in ascending start order.
func (s *Selection) All() iter.Seq[Range] {
	return func(yield func(Range) bool) {
		for _, r := range s.Ranges() {
			if !yield(r) {
				return
			}
		}
	}
}

// Len is the number of ranges, packed.
func (s *Selection) Len() int {
	return len(s.Pack().ranges)
}

// Hours sums the selected duration.
func (s *Selection) Hours() float64 {
	var total time.Duration
	for _, r := range s.Ranges() {
		total += r.Duration()
	}
	return total.Hours()
}

func (s *Selection) Clear() {
	s.ranges = nil
	s.packed = true
}

func (s *Selection) String() string {
	parts := make([]string, 0, len(s.ranges))
	for _, r := range s.Ranges() {
		parts = append(parts, r.String())
	}
	return strings.Join(parts, ", ")
}
