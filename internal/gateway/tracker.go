package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Tracker wraps a Gateway and keeps every session it opens accounted for.
// Sessions abandoned by a caller can be force-closed with ReapIdle.
type Tracker struct {
	next Gateway
	log  *slog.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*trackedSession
	opened   int
	closed   int
}

func NewTracker(next Gateway, log *slog.Logger) *Tracker {
	return &Tracker{
		next:     next,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*trackedSession),
	}
}

func (t *Tracker) Probe(ctx context.Context, capability Capability) (Availability, error) {
	return t.next.Probe(ctx, capability)
}

func (t *Tracker) CanTranslate(
	ctx context.Context,
	sourceLanguage string,
	targetLanguage string,
) (Availability, error) {
	return t.next.CanTranslate(ctx, sourceLanguage, targetLanguage)
}

func (t *Tracker) DetectLanguage(ctx context.Context, text string) (string, error) {
	return t.next.DetectLanguage(ctx, text)
}

func (t *Tracker) OpenSession(
	ctx context.Context,
	capability Capability,
	opts SessionOptions,
) (Session, error) {
	s, err := t.next.OpenSession(ctx, capability, opts)
	if err != nil {
		return nil, err
	}

	ts := &trackedSession{
		Session:    s,
		tracker:    t,
		capability: capability,
		lastUsed:   t.now(),
	}

	t.mu.Lock()
	t.sessions[s.ID()] = ts
	t.opened++
	t.mu.Unlock()

	return ts, nil
}

// Stats returns how many sessions were opened and closed so far.
func (t *Tracker) Stats() (opened, closed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.opened, t.closed
}

// Open returns the number of sessions that are still open.
func (t *Tracker) Open() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}

// ReapIdle closes sessions that were not used for longer than idle and
// returns how many were closed.
func (t *Tracker) ReapIdle(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := t.now().Add(-idle)

	t.mu.Lock()
	var stale []*trackedSession
	for _, s := range t.sessions {
		if s.lastUsedBefore(cutoff) {
			stale = append(stale, s)
		}
	}
	t.mu.Unlock()

	var errs []error
	for _, s := range stale {
		t.log.WarnContext(ctx, "Reaping idle session",
			"sessionID", s.ID(),
			"capability", s.capability,
			"idle", idle)

		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return len(stale), errors.Join(errs...)
}

func (t *Tracker) tracked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.sessions[id]

	return ok
}

func (t *Tracker) release(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[id]; !ok {
		return false
	}

	delete(t.sessions, id)
	t.closed++

	return true
}

type trackedSession struct {
	Session

	tracker    *Tracker
	capability Capability

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *trackedSession) touch() {
	s.mu.Lock()
	s.lastUsed = s.tracker.now()
	s.mu.Unlock()
}

// use marks the session as active. Sessions closed by their owner or by
// ReapIdle report ErrSessionClosed.
func (s *trackedSession) use() error {
	if !s.tracker.tracked(s.ID()) {
		return ErrSessionClosed
	}

	s.touch()

	return nil
}

func (s *trackedSession) lastUsedBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastUsed.Before(cutoff)
}

func (s *trackedSession) Summarize(ctx context.Context, text string) (string, error) {
	if err := s.use(); err != nil {
		return "", err
	}
	defer s.touch()

	return s.Session.Summarize(ctx, text)
}

func (s *trackedSession) Prompt(ctx context.Context, text string) (string, error) {
	if err := s.use(); err != nil {
		return "", err
	}
	defer s.touch()

	return s.Session.Prompt(ctx, text)
}

func (s *trackedSession) PromptStreaming(ctx context.Context, text string) (Stream, error) {
	if err := s.use(); err != nil {
		return nil, err
	}

	return s.Session.PromptStreaming(ctx, text)
}

func (s *trackedSession) Translate(ctx context.Context, text string) (string, error) {
	if err := s.use(); err != nil {
		return "", err
	}
	defer s.touch()

	return s.Session.Translate(ctx, text)
}

func (s *trackedSession) Rewrite(ctx context.Context, text string, opts RewriteOptions) (string, error) {
	if err := s.use(); err != nil {
		return "", err
	}
	defer s.touch()

	return s.Session.Rewrite(ctx, text, opts)
}

// Close is idempotent so a reaped session can still be closed by its owner.
func (s *trackedSession) Close() error {
	if !s.tracker.release(s.ID()) {
		return nil
	}

	return s.Session.Close()
}
