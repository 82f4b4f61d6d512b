package storage

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cheaphours/internal/record"
)

var (
	// ErrDuplicateKey is returned by Add when the timestamp is already stored.
	ErrDuplicateKey = errors.New("storage: record already exists")
	// ErrNotFound is returned when no record exists at a timestamp.
	ErrNotFound = errors.New("storage: record not found")
)

// Store is an in-memory index of records keyed by timestamp.
//
// Keys are kept in ascending order on every insert, so reads never reorder
// anything. Store is not safe for concurrent mutation; callers serialise
// access themselves.
type Store struct {
	records map[instant]*record.Record
	keys    []instant
}

// instant identifies a timestamp over the full range time.Time accepts.
// UnixNano would overflow outside 1678-2262.
type instant struct {
	sec  int64
	nsec int32
}

func (a instant) less(b instant) bool {
	if a.sec != b.sec {
		return a.sec < b.sec
	}
	return a.nsec < b.nsec
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[instant]*record.Record)}
}

func key(t time.Time) instant {
	t = record.Normalize(t)
	return instant{sec: t.Unix(), nsec: int32(t.Nanosecond())}
}

// search returns the index of the first key not before k.
func (s *Store) search(k instant) int {
	return sort.Search(len(s.keys), func(i int) bool { return !s.keys[i].less(k) })
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	return len(s.keys)
}

// Has reports whether a record exists at t.
func (s *Store) Has(t time.Time) bool {
	_, ok := s.records[key(t)]
	return ok
}

// Add inserts a new record and returns its (hasPrice, hasAmount).
func (s *Store) Add(r record.Record) (bool, bool, error) {
	k := key(r.Time())
	if _, ok := s.records[k]; ok {
		return false, false, fmt.Errorf("%w: %s", ErrDuplicateKey, r.Time().Format(record.TimeLayout))
	}
	stored := r
	s.records[k] = &stored

	idx := s.search(k)
	s.keys = append(s.keys, instant{})
	copy(s.keys[idx+1:], s.keys[idx:])
	s.keys[idx] = k

	return r.HasPrice(), r.HasAmount(), nil
}

// Update merges the defined fields of r into the stored record.
func (s *Store) Update(r record.Record) (bool, bool, error) {
	stored, ok := s.records[key(r.Time())]
	if !ok {
		return false, false, fmt.Errorf("%w: %s", ErrNotFound, r.Time().Format(record.TimeLayout))
	}
	priceChanged, amountChanged := stored.Update(r.Price(), r.Amount())
	return priceChanged, amountChanged, nil
}

// Upsert adds r, or merges it into the existing record at the same time.
func (s *Store) Upsert(r record.Record) (bool, bool, error) {
	if s.Has(r.Time()) {
		return s.Update(r)
	}
	return s.Add(r)
}

// Get returns a copy of the record at t.
func (s *Store) Get(t time.Time) (record.Record, error) {
	stored, ok := s.records[key(t)]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotFound, record.Normalize(t).Format(record.TimeLayout))
	}
	return *stored, nil
}

// All returns copies of every record in ascending time order.
func (s *Store) All() []record.Record {
	out := make([]record.Record, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, *s.records[k])
	}
	return out
}

// FilterByTime returns a new store with start <= time and, when end is
// given, time <= end. Both bounds are inclusive.
func (s *Store) FilterByTime(start time.Time, end *time.Time) *Store {
	var hi instant
	if end != nil {
		hi = key(*end)
	}

	out := NewStore()
	for _, k := range s.keys[s.search(key(start)):] {
		if end != nil && hi.less(k) {
			break
		}
		stored := *s.records[k]
		out.records[k] = &stored
		out.keys = append(out.keys, k)
	}
	return out
}

// Clear removes every record.
func (s *Store) Clear() {
	s.records = make(map[instant]*record.Record)
	s.keys = nil
}

// replace swaps in the contents of other wholesale.
func (s *Store) replace(other *Store) {
	s.records = other.records
	s.keys = other.keys
}
