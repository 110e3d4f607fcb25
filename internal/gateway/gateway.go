package gateway

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrSessionCreation       = errors.New("session creation failed")
	ErrUpstreamCall          = errors.New("upstream call failed")
	ErrSessionClosed         = errors.New("session is closed")
)

type Capability string

const (
	CapabilityLanguageModel    Capability = "language-model"
	CapabilitySummarizer       Capability = "summarizer"
	CapabilityTranslator       Capability = "translator"
	CapabilityRewriter         Capability = "rewriter"
	CapabilityLanguageDetector Capability = "language-detector"
)

type Availability string

const (
	AvailabilityReadily       Availability = "readily"
	AvailabilityAfterDownload Availability = "after-download"
	AvailabilityNo            Availability = "no"
)

// Ready reports whether the capability can be used without waiting.
func (a Availability) Ready() bool {
	return a == AvailabilityReadily
}

// SessionOptions configures a session at creation time. Source and target
// languages are only meaningful for translator sessions.
type SessionOptions struct {
	SystemPrompt   string
	SourceLanguage string
	TargetLanguage string
}

type RewriteTone string

const (
	RewriteToneAsIs       RewriteTone = "as-is"
	RewriteToneMoreFormal RewriteTone = "more-formal"
	RewriteToneMoreCasual RewriteTone = "more-casual"
)

type RewriteLength string

const (
	RewriteLengthAsIs    RewriteLength = "as-is"
	RewriteLengthShorter RewriteLength = "shorter"
	RewriteLengthLonger  RewriteLength = "longer"
)

type RewriteOptions struct {
	Context string
	Tone    RewriteTone
	Length  RewriteLength
}

// Gateway is the model service the rest of the program talks to.
type Gateway interface {
	Probe(ctx context.Context, capability Capability) (Availability, error)
	CanTranslate(ctx context.Context, sourceLanguage, targetLanguage string) (Availability, error)
	OpenSession(ctx context.Context, capability Capability, opts SessionOptions) (Session, error)
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Session is a stateful handle to the model service. Every opened session
// must be closed.
type Session interface {
	ID() string
	Summarize(ctx context.Context, text string) (string, error)
	Prompt(ctx context.Context, text string) (string, error)
	PromptStreaming(ctx context.Context, text string) (Stream, error)
	Translate(ctx context.Context, text string) (string, error)
	Rewrite(ctx context.Context, text string, opts RewriteOptions) (string, error)
	Close() error
}

// Stream yields append-only text fragments until the model signals completion.
// A stream can't be restarted.
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

// Collect drains s and returns the concatenated fragments.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for s.Next() {
		b.WriteString(s.Current())
	}

	return b.String(), s.Err()
}
