package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"texthelper/internal/gateway"
)

const (
	DefaultBound     = 4096
	DefaultMaxPasses = 5

	Separator = "\n"
)

var (
	ErrEmptyInput         = errors.New("input is empty")
	ErrCompressionStalled = errors.New("compression stalled")
)

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// PassEvent describes one finished chunking pass.
type PassEvent struct {
	Pass      int
	Chunks    int
	InputLen  int
	OutputLen int
}

type Config struct {
	// Bound is the largest input, in characters, sent to the model in one call.
	Bound int
	// MaxPasses caps how many chunking passes may run before giving up.
	MaxPasses int
	// Observer, when set, is called after every chunking pass.
	Observer func(ctx context.Context, event PassEvent)
}

// Chunked summarizes text of any length. Text longer than the bound is split
// into chunks, each chunk is summarized in order within one session, and the
// joined partial summaries are summarized again until they fit the bound.
type Chunked struct {
	gw        gateway.Gateway
	bound     int
	maxPasses int
	observer  func(ctx context.Context, event PassEvent)
	log       *slog.Logger
}

func New(gw gateway.Gateway, cfg Config, log *slog.Logger) *Chunked {
	bound := cfg.Bound
	if bound <= 0 {
		bound = DefaultBound
	}

	maxPasses := cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	return &Chunked{
		gw:        gw,
		bound:     bound,
		maxPasses: maxPasses,
		observer:  cfg.Observer,
		log:       log,
	}
}

func (c *Chunked) Bound() int {
	return c.bound
}

func (c *Chunked) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	availability, err := c.gw.Probe(ctx, gateway.CapabilitySummarizer)
	if err != nil {
		return "", fmt.Errorf("probe summarizer: %w", err)
	}

	if !availability.Ready() {
		return "", fmt.Errorf("%w: summarizer is %s", gateway.ErrCapabilityUnavailable, availability)
	}

	if utf8.RuneCountInString(text) <= c.bound {
		return c.summarizeOnce(ctx, text)
	}

	current := text
	for pass := 1; pass <= c.maxPasses; pass++ {
		combined, chunks, passErr := c.runPass(ctx, current)
		if passErr != nil {
			return "", fmt.Errorf("run pass %d: %w", pass, passErr)
		}

		event := PassEvent{
			Pass:      pass,
			Chunks:    chunks,
			InputLen:  utf8.RuneCountInString(current),
			OutputLen: utf8.RuneCountInString(combined),
		}
		c.notify(ctx, event)

		if event.OutputLen >= event.InputLen {
			return "", fmt.Errorf(
				"%w: pass %d produced %d characters from %d",
				ErrCompressionStalled,
				pass,
				event.OutputLen,
				event.InputLen,
			)
		}

		if event.OutputLen <= c.bound {
			return combined, nil
		}

		current = combined
	}

	return "", fmt.Errorf(
		"%w: still %d characters after %d passes (bound = %d)",
		ErrCompressionStalled,
		utf8.RuneCountInString(current),
		c.maxPasses,
		c.bound,
	)
}

func (c *Chunked) summarizeOnce(ctx context.Context, text string) (string, error) {
	session, err := c.gw.OpenSession(ctx, gateway.CapabilitySummarizer, gateway.SessionOptions{})
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer c.closeSession(ctx, session)

	summary, err := session.Summarize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	return summary, nil
}

// runPass summarizes every non-blank chunk of text sequentially within one
// session.
func (c *Chunked) runPass(ctx context.Context, text string) (string, int, error) {
	chunks := Split(text, c.bound)

	session, err := c.gw.OpenSession(ctx, gateway.CapabilitySummarizer, gateway.SessionOptions{})
	if err != nil {
		return "", len(chunks), fmt.Errorf("open session: %w", err)
	}
	defer c.closeSession(ctx, session)

	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err = ctx.Err(); err != nil {
			return "", len(chunks), err
		}

		// Blank chunks carry nothing to summarize.
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		part, summarizeErr := session.Summarize(ctx, chunk)
		if summarizeErr != nil {
			return "", len(chunks), fmt.Errorf("summarize chunk %d/%d: %w", i+1, len(chunks), summarizeErr)
		}

		parts = append(parts, part)
	}

	return Join(parts), len(chunks), nil
}

func (c *Chunked) closeSession(ctx context.Context, session gateway.Session) {
	if err := session.Close(); err != nil {
		c.log.WarnContext(ctx, "Failed to close summarizer session",
			"error", err,
			"sessionID", session.ID())
	}
}

func (c *Chunked) notify(ctx context.Context, event PassEvent) {
	c.log.DebugContext(ctx, "Summarization pass is done",
		"pass", event.Pass,
		"chunks", event.Chunks,
		"inputLen", event.InputLen,
		"outputLen", event.OutputLen,
		"bound", c.bound)

	if c.observer != nil {
		c.observer(ctx, event)
	}
}

// Split cuts text into consecutive chunks of at most bound characters. The
// chunks cover the whole input in order, only the last one may be shorter.
func Split(text string, bound int) []string {
	if text == "" {
		return nil
	}

	if bound <= 0 {
		return []string{text}
	}

	var chunks []string
	start, count := 0, 0

	for i := range text {
		if count == bound {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}

	return append(chunks, text[start:])
}

func Join(parts []string) string {
	return strings.Join(parts, Separator)
}
