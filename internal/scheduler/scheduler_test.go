package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/freshpost/internal/coordinator"
)

// --- Mock implementations ---

type CountingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *CountingRunner) RunOnce(_ context.Context) (*coordinator.Report, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &coordinator.Report{RunID: "r", Warnings: []error{errors.New("source down")}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Tests ---

func TestNewScheduler_Validation(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		cron     string
		wantErr  bool
	}{
		{"interval", time.Hour, "", false},
		{"cron", 0, "0 8 * * *", false},
		{"cron wins over interval", time.Hour, "*/15 * * * *", false},
		{"zero interval", 0, "", true},
		{"bad cron", time.Hour, "every morning", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduler(&CountingRunner{}, tt.interval, tt.cron, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNext(t *testing.T) {
	base := time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)

	s, _ := NewScheduler(&CountingRunner{}, 0, "0 8 * * *", discardLogger())
	if got := s.Next(base); !got.Equal(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("cron next = %v", got)
	}

	s, _ = NewScheduler(&CountingRunner{}, 2*time.Hour, "", discardLogger())
	if got := s.Next(base); !got.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("interval next = %v", got)
	}
}

func TestRun_CancelReturnsPromptly(t *testing.T) {
	r := &CountingRunner{}
	s, _ := NewScheduler(r, time.Hour, "", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not return within 2s after cancel")
	}
	if got := r.calls.Load(); got != 1 {
		t.Errorf("expected one immediate run, got %d", got)
	}
}

func TestRun_RepeatsOnInterval(t *testing.T) {
	r := &CountingRunner{}
	s, _ := NewScheduler(r, time.Second, "", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	// cron.Every rounds to whole seconds; allow two ticks.
	time.Sleep(2500 * time.Millisecond)
	cancel()
	<-done

	if got := r.calls.Load(); got < 2 {
		t.Errorf("runner calls = %d, want >= 2", got)
	}
}

func TestRun_FailedRunKeepsLooping(t *testing.T) {
	r := &CountingRunner{err: errors.New("no sources defined")}
	s, _ := NewScheduler(r, time.Second, "", discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if got := r.calls.Load(); got < 2 {
		t.Errorf("runner calls = %d, want >= 2 despite failures", got)
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	r := &CountingRunner{}
	s, _ := NewScheduler(r, time.Hour, "", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if got := r.calls.Load(); got != 0 {
		t.Errorf("no run should start on a cancelled context, got %d", got)
	}
}
