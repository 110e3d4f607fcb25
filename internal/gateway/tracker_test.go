package gateway_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"texthelper/internal/gateway"
	"texthelper/internal/gateway/gatewaytest"
)

func newTracker(fake *gatewaytest.Fake) *gateway.Tracker {
	return gateway.NewTracker(fake, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTrackerCountsSessions(t *testing.T) {
	fake := &gatewaytest.Fake{}
	tracker := newTracker(fake)
	ctx := context.Background()

	a, err := tracker.OpenSession(ctx, gateway.CapabilitySummarizer, gateway.SessionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := tracker.OpenSession(ctx, gateway.CapabilityLanguageModel, gateway.SessionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tracker.Open(); got != 2 {
		t.Fatalf("expected 2 open sessions, got %d", got)
	}

	if err = a.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err = a.Close(); err != nil {
		t.Fatalf("unexpected second close error: %v", err)
	}
	if err = b.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	opened, closed := tracker.Stats()
	if opened != 2 || closed != 2 {
		t.Fatalf("expected 2 opened and 2 closed, got %d and %d", opened, closed)
	}

	if fake.Closed() != 2 {
		t.Fatalf("expected underlying sessions to be closed once each, got %d", fake.Closed())
	}
}

func TestTrackerReapIdle(t *testing.T) {
	fake := &gatewaytest.Fake{}
	tracker := newTracker(fake)
	ctx := context.Background()

	s, err := tracker.OpenSession(ctx, gateway.CapabilityLanguageModel, gateway.SessionOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reaped, err := tracker.ReapIdle(ctx, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaped != 0 {
		t.Fatalf("expected fresh session to survive, reaped %d", reaped)
	}

	time.Sleep(5 * time.Millisecond)

	reaped, err = tracker.ReapIdle(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected abandoned session to be reaped, reaped %d", reaped)
	}

	if tracker.Open() != 0 {
		t.Fatalf("expected no open sessions after reaping")
	}

	if _, err = s.Prompt(ctx, "hello"); !errors.Is(err, gateway.ErrSessionClosed) {
		t.Fatalf("expected reaped session to report closed, got %v", err)
	}

	if err = s.Close(); err != nil {
		t.Fatalf("unexpected close error after reaping: %v", err)
	}

	opened, closed := tracker.Stats()
	if opened != closed {
		t.Fatalf("expected balanced session counts, got %d opened and %d closed", opened, closed)
	}
}

func TestTrackerPassesThroughOpenErrors(t *testing.T) {
	fake := &gatewaytest.Fake{OpenErr: gateway.ErrCapabilityUnavailable}
	tracker := newTracker(fake)

	if _, err := tracker.OpenSession(context.Background(), gateway.CapabilitySummarizer, gateway.SessionOptions{}); err == nil {
		t.Fatalf("expected open error")
	}

	opened, _ := tracker.Stats()
	if opened != 0 {
		t.Fatalf("failed opens must not be counted, got %d", opened)
	}
}
