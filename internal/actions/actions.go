// Package actions implements the text actions offered on a selection and in
// the chat panel.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"texthelper/internal/cache"
	"texthelper/internal/domain"
	"texthelper/internal/gateway"
	"texthelper/internal/page"
	"texthelper/internal/summarizer"
)

const (
	defineTemplate = `Define the meaning of this word or phrase and add an example that even a 10-year-old can understand.
The output should look like this:
Definition: ---------------
Example to understand: ""
Word or phrase: "%s"`

	clarityContext = "Improve clarity, grammar, and overall flow while preserving the original meaning."

	refineContext = "Refine the content using saved pages for better response. " +
		"Maintain the original intent of the user input."

	chatSystemPrompt = "You are a helpful assistant. Answer concisely."

	pageSummaryTTL        = time.Hour
	pageSummaryMaxEntries = 256
)

// Error carries the action that failed, so callers can render the failure
// next to the action that caused it.
type Error struct {
	Action domain.Action
	Err    error
}

func (e *Error) Error() string {
	return actionLabel(e.Action) + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func actionLabel(action domain.Action) string {
	switch action {
	case domain.ActionDefine:
		return "Definition"
	case domain.ActionSummarize:
		return "Summarization"
	case domain.ActionTranslate:
		return "Translation"
	case domain.ActionRewrite:
		return "Rewrite"
	case domain.ActionChat:
		return "Chat"
	default:
		return "Action"
	}
}

func wrap(action domain.Action, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Action: action, Err: err}
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (domain.Page, error)
}

// PageSummary is the result of summarizing a whole page.
type PageSummary struct {
	URL     string
	Title   string
	Summary string
}

type Service struct {
	gw         gateway.Gateway
	summarizer summarizer.Summarizer
	pages      PageFetcher
	pageCache  *cache.LRU[PageSummary]
	log        *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	chats map[int64]gateway.Session
}

func New(
	gw gateway.Gateway,
	s summarizer.Summarizer,
	pages PageFetcher,
	log *slog.Logger,
) *Service {
	return &Service{
		gw:         gw,
		summarizer: s,
		pages:      pages,
		pageCache:  cache.NewLRU[PageSummary](pageSummaryMaxEntries),
		log:        log,
		now:        time.Now,
		chats:      make(map[int64]gateway.Session),
	}
}

// Handle runs a toolbar request.
func (s *Service) Handle(ctx context.Context, req domain.Request) (string, error) {
	switch req.Action {
	case domain.ActionDefine:
		return s.Define(ctx, req.SelectedText)
	case domain.ActionSummarize:
		return s.Summarize(ctx, req.SelectedText)
	case domain.ActionTranslate:
		return s.Translate(ctx, req.SelectedText, req.TargetLanguage)
	case domain.ActionRewrite:
		return s.Rewrite(ctx, req.SelectedText)
	case domain.ActionChat:
		return "", wrap(req.Action, errors.New("chat is not a toolbar action"))
	default:
		return "", wrap(req.Action, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (s *Service) Define(ctx context.Context, text string) (string, error) {
	result, err := s.prompt(ctx, fmt.Sprintf(defineTemplate, strings.TrimSpace(text)))

	return result, wrap(domain.ActionDefine, err)
}

func (s *Service) prompt(ctx context.Context, prompt string) (string, error) {
	session, err := s.openReady(ctx, gateway.CapabilityLanguageModel, gateway.SessionOptions{})
	if err != nil {
		return "", err
	}
	defer s.closeSession(ctx, session)

	return session.Prompt(ctx, prompt)
}

func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	result, err := s.summarizer.Summarize(ctx, text)

	return result, wrap(domain.ActionSummarize, err)
}

// SummarizePage summarizes the page behind the first URL found in input.
// Summaries are cached per URL for an hour.
func (s *Service) SummarizePage(ctx context.Context, input string) (PageSummary, error) {
	rawURL, ok := page.FindURL(input)
	if !ok {
		return PageSummary{}, wrap(domain.ActionSummarize, page.ErrNoActiveTarget)
	}

	now := s.now()
	if cached, hit := s.pageCache.Get(rawURL, now); hit {
		s.log.DebugContext(ctx, "Page summary cache hit", "url", rawURL)

		return cached, nil
	}

	p, err := s.pages.Fetch(ctx, rawURL)
	if err != nil {
		return PageSummary{}, wrap(domain.ActionSummarize, fmt.Errorf("fetch page: %w", err))
	}

	summary, err := s.summarizer.Summarize(ctx, p.Text)
	if err != nil {
		return PageSummary{}, wrap(domain.ActionSummarize, err)
	}

	result := PageSummary{URL: p.URL, Title: p.Title, Summary: summary}
	s.pageCache.Set(rawURL, result, now.Add(pageSummaryTTL), now)

	s.log.InfoContext(ctx, "Page is summarized",
		"url", rawURL,
		"textLen", len(p.Text),
		"summaryLen", len(summary))

	return result, nil
}

// Translate detects the source language of text and translates it into
// targetLanguage.
func (s *Service) Translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	result, err := s.translate(ctx, text, targetLanguage)

	return result, wrap(domain.ActionTranslate, err)
}

func (s *Service) translate(ctx context.Context, text string, targetLanguage string) (string, error) {
	if _, ok := gateway.LanguageName(targetLanguage); !ok {
		return "", fmt.Errorf("unsupported target language %q", targetLanguage)
	}

	sourceLanguage, err := s.gw.DetectLanguage(ctx, text)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}

	if sourceLanguage == gateway.LanguageUnknown {
		return "", fmt.Errorf("%w: unable to detect source language", gateway.ErrCapabilityUnavailable)
	}

	availability, err := s.gw.CanTranslate(ctx, sourceLanguage, targetLanguage)
	if err != nil {
		return "", fmt.Errorf("check language pair: %w", err)
	}

	if !availability.Ready() {
		return "", fmt.Errorf("%w: translation is not available for %s to %s",
			gateway.ErrCapabilityUnavailable, sourceLanguage, targetLanguage)
	}

	session, err := s.gw.OpenSession(ctx, gateway.CapabilityTranslator, gateway.SessionOptions{
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
	})
	if err != nil {
		return "", err
	}
	defer s.closeSession(ctx, session)

	return session.Translate(ctx, text)
}

func (s *Service) Rewrite(ctx context.Context, text string) (string, error) {
	result, err := s.rewrite(ctx, text, gateway.RewriteOptions{Context: clarityContext})

	return result, wrap(domain.ActionRewrite, err)
}

// RewriteWithSaved rewrites input using saved summaries as context.
func (s *Service) RewriteWithSaved(ctx context.Context, saved []string, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", wrap(domain.ActionRewrite, errors.New("input is empty"))
	}

	combined := input
	if len(saved) > 0 {
		combined = strings.Join(saved, "\n\n") + "\n\nUser Input: " + input
	}

	result, err := s.rewrite(ctx, combined, gateway.RewriteOptions{Context: refineContext})

	return result, wrap(domain.ActionRewrite, err)
}

func (s *Service) rewrite(ctx context.Context, text string, opts gateway.RewriteOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("input is empty")
	}

	session, err := s.openReady(ctx, gateway.CapabilityRewriter, gateway.SessionOptions{})
	if err != nil {
		return "", err
	}
	defer s.closeSession(ctx, session)

	return session.Rewrite(ctx, text, opts)
}

// openReady probes capability and opens a session only when the model is
// ready to serve it right away.
func (s *Service) openReady(
	ctx context.Context,
	capability gateway.Capability,
	opts gateway.SessionOptions,
) (gateway.Session, error) {
	availability, err := s.gw.Probe(ctx, capability)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", capability, err)
	}

	if !availability.Ready() {
		return nil, fmt.Errorf("%w: %s is %s", gateway.ErrCapabilityUnavailable, capability, availability)
	}

	return s.gw.OpenSession(ctx, capability, opts)
}

func (s *Service) closeSession(ctx context.Context, session gateway.Session) {
	if err := session.Close(); err != nil {
		s.log.WarnContext(ctx, "Failed to close session",
			"error", err,
			"sessionID", session.ID())
	}
}
