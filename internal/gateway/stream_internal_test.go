package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStreamYieldsFragmentsInOrder(t *testing.T) {
	s := NewStream(context.Background(), func(_ context.Context, emit func(string) bool) error {
		for _, f := range []string{"Hel", "lo", "", ", world"} {
			if !emit(f) {
				return nil
			}
		}
		return nil
	})

	got, err := Collect(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "Hello, world" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestStreamSurfacesProducerError(t *testing.T) {
	wantErr := errors.New("boom")

	s := NewStream(context.Background(), func(_ context.Context, emit func(string) bool) error {
		emit("partial")
		return wantErr
	})

	got, err := Collect(s)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected producer error, got %v", err)
	}

	if got != "partial" {
		t.Fatalf("expected fragments before the error, got %q", got)
	}

	if s.Next() {
		t.Fatalf("expected stream to stay finished after an error")
	}
}

func TestStreamCloseCancelsProducer(t *testing.T) {
	stopped := make(chan struct{})

	s := NewStream(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		defer close(stopped)

		for emit("tick") {
		}

		return ctx.Err()
	})

	if !s.Next() || s.Current() != "tick" {
		t.Fatalf("expected first fragment")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatalf("producer did not stop after close")
	}

	if s.Next() {
		t.Fatalf("expected closed stream to be exhausted")
	}
}

func TestStreamCancelledMidwayReportsError(t *testing.T) {
	producers := []struct {
		name    string
		produce func(ctx context.Context, emit func(string) bool) error
	}{
		{"Returns context error", func(ctx context.Context, emit func(string) bool) error {
			emit("partial")
			<-ctx.Done()

			return ctx.Err()
		}},
		{"Returns nil", func(ctx context.Context, emit func(string) bool) error {
			emit("partial")
			<-ctx.Done()

			return nil
		}},
	}

	for _, producer := range producers {
		t.Run(producer.name, func(t *testing.T) {
			for range 100 {
				ctx, cancel := context.WithCancel(context.Background())
				s := NewStream(ctx, producer.produce)

				if !s.Next() || s.Current() != "partial" {
					cancel()
					t.Fatalf("expected first fragment")
				}

				cancel()

				for s.Next() {
				}

				if err := s.Err(); !errors.Is(err, context.Canceled) {
					t.Fatalf("expected cancelled stream to report an error, got %v", err)
				}

				if err := s.Close(); err != nil {
					t.Fatalf("unexpected close error: %v", err)
				}
			}
		})
	}
}
