package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestImmediateJobRunsBeforeFirstTick(t *testing.T) {
	var runs atomic.Int64
	s := New(Job{
		Name:      "counter",
		Interval:  time.Hour,
		Immediate: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("immediate job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1 (interval is an hour)", got)
	}
}

func TestTickerDrivesRepeatedRuns(t *testing.T) {
	var runs atomic.Int64
	s := New(Job{
		Name:     "fast",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestFailingJobKeepsTicking(t *testing.T) {
	var runs atomic.Int64
	s := New(Job{
		Name:     "flaky",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("api unavailable")
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("a failing job stopped its ticker")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestNonPositiveIntervalDisablesJob(t *testing.T) {
	var runs atomic.Int64
	s := New(Job{
		Name:      "disabled",
		Interval:  0,
		Immediate: true,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if len(s.jobs) != 0 {
		t.Fatalf("jobs = %d, want 0", len(s.jobs))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx) // must return immediately with no jobs

	if runs.Load() != 0 {
		t.Fatal("disabled job ran")
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	s := New(Job{
		Name:     "idle",
		Interval: time.Hour,
		Run:      func(context.Context) error { return nil },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
