package gateway

import (
	"context"
	"sync"
)

type fragment struct {
	text string
	err  error
}

// chanStream adapts a producer goroutine to the Stream interface.
type chanStream struct {
	ch        <-chan fragment
	cancel    context.CancelFunc
	current   string
	err       error
	closeOnce sync.Once
}

// NewStream starts produce in its own goroutine and exposes the fragments it
// emits as a Stream. emit reports false once the consumer has gone away, and
// produce should return promptly after that. Closing the stream cancels the
// context passed to produce. A stream cut short by cancellation ends with the
// context error, never as a normal end.
func NewStream(
	ctx context.Context,
	produce func(ctx context.Context, emit func(string) bool) error,
) Stream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan fragment)

	go func() {
		defer close(ch)

		emit := func(text string) bool {
			if text == "" {
				return ctx.Err() == nil
			}

			select {
			case ch <- fragment{text: text}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := produce(ctx, emit)
		if err == nil {
			// A producer that stopped on cancellation did not finish.
			err = ctx.Err()
		}

		if err != nil {
			// Close drains the channel, so this send can't block forever.
			ch <- fragment{err: err}
		}
	}()

	return &chanStream{ch: ch, cancel: cancel}
}

func (s *chanStream) Next() bool {
	if s.err != nil {
		return false
	}

	f, ok := <-s.ch
	if !ok {
		return false
	}

	if f.err != nil {
		s.err = f.err
		s.current = ""

		return false
	}

	s.current = f.text

	return true
}

func (s *chanStream) Current() string {
	return s.current
}

func (s *chanStream) Err() error {
	return s.err
}

func (s *chanStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()

		for range s.ch {
		}
	})

	return nil
}
