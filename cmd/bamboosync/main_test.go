package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockSyncRunner counts syncs and cancels the run after the first one.
type mockSyncRunner struct {
	calls  int
	err    error
	cancel context.CancelFunc
}

func (m *mockSyncRunner) Sync(ctx context.Context) error {
	m.calls++
	if m.cancel != nil {
		m.cancel()
	}
	return m.err
}

func runWithTimeout(t *testing.T, ctx context.Context, schedule string, runner syncRunner) error {
	t.Helper()

	done := make(chan error, 1)
	go func() {
		done <- runScheduled(ctx, schedule, runner)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("runScheduled() did not return after cancellation")
		return nil
	}
}

func TestRunScheduled_SyncsBeforeFirstTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &mockSyncRunner{cancel: cancel}

	// The first tick is an hour away, so only the immediate sync can run.
	if err := runWithTimeout(t, ctx, "@every 1h", runner); err != nil {
		t.Fatalf("runScheduled() returned an error: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("Expected one sync before the first tick, got %d", runner.calls)
	}
}

func TestRunScheduled_FailedSyncKeepsScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &mockSyncRunner{cancel: cancel, err: errors.New("HTTP 503")}

	if err := runWithTimeout(t, ctx, "0 * * * *", runner); err != nil {
		t.Errorf("Expected a failed sync to be logged, not returned, got: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("Expected one sync, got %d", runner.calls)
	}
}

func TestRunScheduled_InvalidSchedule(t *testing.T) {
	runner := &mockSyncRunner{}

	if err := runScheduled(context.Background(), "every hour", runner); err == nil {
		t.Fatal("Expected an error for an invalid schedule")
	}
	if runner.calls != 0 {
		t.Errorf("Expected no sync for an invalid schedule, got %d", runner.calls)
	}
}
