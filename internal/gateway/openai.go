package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

const (
	DefaultModel = "gpt-5-mini"

	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 4096

	summarizeInstructions = `Summarize the text.

Rules:
- Keep only the core ideas and critical context (dates, numbers, names).
- Plain prose, no lists, no headings.
- Neutral tone.
- Output in the same language as the input.`

	translateInstructions = `Translate the text from %s to %s.
Output only the translation, keep formatting and line breaks.`

	rewriteInstructions = `Rewrite the text.
Preserve the original meaning and language. Output only the rewritten text.`
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIGateway talks to an OpenAI-compatible endpoint. A local server
// exposing the same API works through BaseURL.
type OpenAIGateway struct {
	client  openai.Client
	model   string
	enabled bool
	log     *slog.Logger
}

func NewOpenAIGateway(cfg OpenAIConfig, log *slog.Logger) *OpenAIGateway {
	apiKey := strings.TrimSpace(cfg.APIKey)
	baseURL := strings.TrimSpace(cfg.BaseURL)

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &OpenAIGateway{
		client:  openai.NewClient(opts...),
		model:   model,
		enabled: apiKey != "" || baseURL != "",
		log:     log,
	}
}

func (g *OpenAIGateway) Probe(ctx context.Context, capability Capability) (Availability, error) {
	if capability == CapabilityLanguageDetector {
		return AvailabilityReadily, nil
	}

	if !g.enabled {
		return AvailabilityNo, nil
	}

	if _, err := g.client.Models.Get(ctx, g.model); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			g.log.WarnContext(ctx, "Model is not served by the endpoint",
				"model", g.model,
				"capability", capability)

			return AvailabilityNo, nil
		}

		return AvailabilityNo, fmt.Errorf("%w: get model: %w", ErrUpstreamCall, err)
	}

	return AvailabilityReadily, nil
}

func (g *OpenAIGateway) CanTranslate(
	ctx context.Context,
	sourceLanguage string,
	targetLanguage string,
) (Availability, error) {
	if availability := pairAvailability(sourceLanguage, targetLanguage); !availability.Ready() {
		return availability, nil
	}

	return g.Probe(ctx, CapabilityTranslator)
}

func (g *OpenAIGateway) DetectLanguage(ctx context.Context, text string) (string, error) {
	return detectLanguage(ctx, text)
}

func (g *OpenAIGateway) OpenSession(
	ctx context.Context,
	capability Capability,
	opts SessionOptions,
) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreation, err)
	}

	if !g.enabled {
		return nil, fmt.Errorf("%w: %w: endpoint is not configured", ErrSessionCreation, ErrCapabilityUnavailable)
	}

	switch capability {
	case CapabilityLanguageModel, CapabilitySummarizer, CapabilityRewriter:
	case CapabilityTranslator:
		if !pairAvailability(opts.SourceLanguage, opts.TargetLanguage).Ready() {
			return nil, fmt.Errorf("%w: %w: %s to %s",
				ErrSessionCreation, ErrCapabilityUnavailable, opts.SourceLanguage, opts.TargetLanguage)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported capability %q", ErrSessionCreation, capability)
	}

	return &openAISession{
		id:         uuid.NewString(),
		gateway:    g,
		capability: capability,
		opts:       opts,
	}, nil
}

type openAISession struct {
	id         string
	gateway    *OpenAIGateway
	capability Capability
	opts       SessionOptions

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
	closed  bool
}

func (s *openAISession) ID() string {
	return s.id
}

func (s *openAISession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.history = nil

	return nil
}

func (s *openAISession) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	return nil
}

func (s *openAISession) Summarize(ctx context.Context, text string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	return s.gateway.respond(ctx, summarizeInstructions, text)
}

func (s *openAISession) Translate(ctx context.Context, text string) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	sourceName, _ := LanguageName(s.opts.SourceLanguage)
	targetName, _ := LanguageName(s.opts.TargetLanguage)

	return s.gateway.respond(ctx, fmt.Sprintf(translateInstructions, sourceName, targetName), text)
}

func (s *openAISession) Rewrite(ctx context.Context, text string, opts RewriteOptions) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	return s.gateway.respond(ctx, rewriteInstructionsFor(opts), text)
}

func rewriteInstructionsFor(opts RewriteOptions) string {
	var b strings.Builder
	b.WriteString(rewriteInstructions)

	switch opts.Tone {
	case RewriteToneMoreFormal:
		b.WriteString("\nUse a more formal tone.")
	case RewriteToneMoreCasual:
		b.WriteString("\nUse a more casual tone.")
	case RewriteToneAsIs, "":
	}

	switch opts.Length {
	case RewriteLengthShorter:
		b.WriteString("\nMake it shorter.")
	case RewriteLengthLonger:
		b.WriteString("\nMake it longer.")
	case RewriteLengthAsIs, "":
	}

	if c := strings.TrimSpace(opts.Context); c != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(c)
	}

	return b.String()
}

// Prompt continues the session's conversation.
func (s *openAISession) Prompt(ctx context.Context, text string) (string, error) {
	messages, err := s.appendUser(text)
	if err != nil {
		return "", err
	}

	resp, err := s.gateway.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(s.gateway.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create chat completion: %w", ErrUpstreamCall, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: chat completion has no choices", ErrUpstreamCall)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	s.appendAssistant(answer)

	return answer, nil
}

func (s *openAISession) PromptStreaming(ctx context.Context, text string) (Stream, error) {
	messages, err := s.appendUser(text)
	if err != nil {
		return nil, err
	}

	return NewStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		stream := s.gateway.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(s.gateway.model),
			Messages: messages,
		})
		defer stream.Close()

		var answer strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta.Content
			answer.WriteString(delta)

			if !emit(delta) {
				return ctx.Err()
			}
		}

		if err := stream.Err(); err != nil {
			return fmt.Errorf("%w: stream chat completion: %w", ErrUpstreamCall, err)
		}

		s.appendAssistant(answer.String())

		return nil
	}), nil
}

func (s *openAISession) appendUser(text string) ([]openai.ChatCompletionMessageParamUnion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	if len(s.history) == 0 && strings.TrimSpace(s.opts.SystemPrompt) != "" {
		s.history = append(s.history, openai.SystemMessage(s.opts.SystemPrompt))
	}

	s.history = append(s.history, openai.UserMessage(text))

	messages := make([]openai.ChatCompletionMessageParamUnion, len(s.history))
	copy(messages, s.history)

	return messages, nil
}

func (s *openAISession) appendAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.history = append(s.history, openai.AssistantMessage(text))
}

// respond runs a single stateless Responses API call. The output budget is
// doubled when the model runs out of it.
func (g *OpenAIGateway) respond(ctx context.Context, instructions string, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: input is empty", ErrUpstreamCall)
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := g.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           shared.ResponsesModel(g.model),
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(text),
			},
		})
		if err != nil {
			return "", fmt.Errorf("%w: do request: %w", ErrUpstreamCall, err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)

				g.log.DebugContext(ctx, "Response is incomplete, retrying with larger budget",
					"maxOutputTokens", maxOutputTokens)

				continue
			}

			return "", fmt.Errorf(
				"%w: response is incomplete (reason = %s, maxOutputTokens = %d)",
				ErrUpstreamCall,
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		output := strings.TrimSpace(resp.OutputText())
		if output == "" {
			return "", fmt.Errorf("%w: output text is missing (status = %s)", ErrUpstreamCall, resp.Status)
		}

		return output, nil
	}
}
