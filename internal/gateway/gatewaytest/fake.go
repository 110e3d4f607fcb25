// Package gatewaytest provides a programmable in-memory model gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"texthelper/internal/gateway"
)

// Fake records every call it receives. Unset funcs echo their input.
type Fake struct {
	Availability map[gateway.Capability]gateway.Availability
	ProbeErr     error
	OpenErr      error
	Detected     string

	SummarizeFunc func(ctx context.Context, text string) (string, error)
	PromptFunc    func(ctx context.Context, text string) (string, error)
	TranslateFunc func(ctx context.Context, opts gateway.SessionOptions, text string) (string, error)
	RewriteFunc   func(ctx context.Context, text string, opts gateway.RewriteOptions) (string, error)
	Fragments     []string

	mu             sync.Mutex
	probes         int
	opened         int
	closed         int
	summarizeCalls []string
	promptCalls    []string
	rewriteCalls   []gateway.RewriteOptions
	lastOpts       gateway.SessionOptions
}

var _ gateway.Gateway = (*Fake)(nil)

func (f *Fake) Probe(_ context.Context, capability gateway.Capability) (gateway.Availability, error) {
	f.mu.Lock()
	f.probes++
	f.mu.Unlock()

	if f.ProbeErr != nil {
		return gateway.AvailabilityNo, f.ProbeErr
	}

	if a, ok := f.Availability[capability]; ok {
		return a, nil
	}

	return gateway.AvailabilityReadily, nil
}

func (f *Fake) CanTranslate(
	ctx context.Context,
	sourceLanguage string,
	targetLanguage string,
) (gateway.Availability, error) {
	if strings.EqualFold(sourceLanguage, targetLanguage) {
		return gateway.AvailabilityNo, nil
	}

	return f.Probe(ctx, gateway.CapabilityTranslator)
}

func (f *Fake) DetectLanguage(_ context.Context, _ string) (string, error) {
	if f.Detected == "" {
		return gateway.LanguageUnknown, nil
	}

	return f.Detected, nil
}

func (f *Fake) OpenSession(
	_ context.Context,
	_ gateway.Capability,
	opts gateway.SessionOptions,
) (gateway.Session, error) {
	if f.OpenErr != nil {
		return nil, fmt.Errorf("%w: %w", gateway.ErrSessionCreation, f.OpenErr)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.opened++
	f.lastOpts = opts

	return &session{fake: f, id: fmt.Sprintf("fake-%d", f.opened), opts: opts}, nil
}

func (f *Fake) Probes() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.probes
}

func (f *Fake) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.opened
}

func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// SummarizeCalls returns the inputs of every Summarize call in call order.
func (f *Fake) SummarizeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.summarizeCalls...)
}

func (f *Fake) PromptCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.promptCalls...)
}

func (f *Fake) RewriteCalls() []gateway.RewriteOptions {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]gateway.RewriteOptions(nil), f.rewriteCalls...)
}

func (f *Fake) LastSessionOptions() gateway.SessionOptions {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastOpts
}

type session struct {
	fake *Fake
	id   string
	opts gateway.SessionOptions

	closeOnce sync.Once
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Summarize(ctx context.Context, text string) (string, error) {
	s.fake.mu.Lock()
	s.fake.summarizeCalls = append(s.fake.summarizeCalls, text)
	s.fake.mu.Unlock()

	if s.fake.SummarizeFunc != nil {
		return s.fake.SummarizeFunc(ctx, text)
	}

	return text, nil
}

func (s *session) Prompt(ctx context.Context, text string) (string, error) {
	s.fake.mu.Lock()
	s.fake.promptCalls = append(s.fake.promptCalls, text)
	s.fake.mu.Unlock()

	if s.fake.PromptFunc != nil {
		return s.fake.PromptFunc(ctx, text)
	}

	return text, nil
}

func (s *session) PromptStreaming(ctx context.Context, text string) (gateway.Stream, error) {
	s.fake.mu.Lock()
	s.fake.promptCalls = append(s.fake.promptCalls, text)
	fragments := append([]string(nil), s.fake.Fragments...)
	s.fake.mu.Unlock()

	if fragments == nil {
		fragments = []string{text}
	}

	return gateway.NewStream(ctx, func(_ context.Context, emit func(string) bool) error {
		for _, fr := range fragments {
			if !emit(fr) {
				return nil
			}
		}

		return nil
	}), nil
}

func (s *session) Translate(ctx context.Context, text string) (string, error) {
	if s.fake.TranslateFunc != nil {
		return s.fake.TranslateFunc(ctx, s.opts, text)
	}

	return text, nil
}

func (s *session) Rewrite(ctx context.Context, text string, opts gateway.RewriteOptions) (string, error) {
	s.fake.mu.Lock()
	s.fake.rewriteCalls = append(s.fake.rewriteCalls, opts)
	s.fake.mu.Unlock()

	if s.fake.RewriteFunc != nil {
		return s.fake.RewriteFunc(ctx, text, opts)
	}

	return text, nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.fake.mu.Lock()
		s.fake.closed++
		s.fake.mu.Unlock()
	})

	return nil
}
