package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsZeroInterval(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2022, 12, 16, 20, 15, 0, 0, time.UTC)
	if got, want := s.nextTick(now), time.Date(2022, 12, 16, 21, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("next tick %s, want %s", got, want)
	}

	onTheHour := time.Date(2022, 12, 16, 21, 0, 0, 0, time.UTC)
	if got, want := s.nextTick(onTheHour), time.Date(2022, 12, 16, 22, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("next tick %s, want %s", got, want)
	}
	if got := s.slotStart(now); !got.Equal(time.Date(2022, 12, 16, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected slot start %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s, err := New(Options{Interval: 15 * time.Minute}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2022, 12, 16, 20, 7, 0, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected next tick %s", got)
	}
	if got := s.slotStart(now); !got.Equal(now) {
		t.Fatalf("unaligned slot should be the tick itself, got %s", got)
	}
}

func TestRunImmediateThenCancel(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, AlignToStart: true, Immediate: true}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err = s.Run(ctx, func(ctx context.Context, slot time.Time) error {
		calls++
		cancel()
		return errors.New("refresh errors are only logged")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one immediate refresh, got %d", calls)
	}
}
