package summarizer_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"texthelper/internal/gateway"
	"texthelper/internal/gateway/gatewaytest"
	"texthelper/internal/summarizer"
)

func newChunked(fake *gatewaytest.Fake, cfg summarizer.Config) *summarizer.Chunked {
	return summarizer.New(fake, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func assertBalancedSessions(t *testing.T, fake *gatewaytest.Fake) {
	t.Helper()

	if fake.Opened() != fake.Closed() {
		t.Fatalf("session leak: %d opened, %d closed", fake.Opened(), fake.Closed())
	}
}

func fixedSummary(n int) func(context.Context, string) (string, error) {
	return func(_ context.Context, _ string) (string, error) {
		return strings.Repeat("s", n), nil
	}
}

func TestSummarizeShortInputIsSingleCall(t *testing.T) {
	fake := &gatewaytest.Fake{
		SummarizeFunc: func(_ context.Context, _ string) (string, error) {
			return "  raw model output  ", nil
		},
	}
	c := newChunked(fake, summarizer.Config{})

	input := strings.Repeat("a", summarizer.DefaultBound)

	got, err := c.Summarize(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "  raw model output  " {
		t.Fatalf("expected raw result unchanged, got %q", got)
	}

	if calls := fake.SummarizeCalls(); len(calls) != 1 || calls[0] != input {
		t.Fatalf("expected exactly one call with the whole input, got %d calls", len(calls))
	}

	if fake.Opened() != 1 {
		t.Fatalf("expected one session, got %d", fake.Opened())
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeScenario(t *testing.T) {
	fake := &gatewaytest.Fake{SummarizeFunc: fixedSummary(100)}

	var events []summarizer.PassEvent
	c := newChunked(fake, summarizer.Config{
		Bound: 4096,
		Observer: func(_ context.Context, event summarizer.PassEvent) {
			events = append(events, event)
		},
	})

	got, err := c.Summarize(context.Background(), strings.Repeat("x", 10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := fake.SummarizeCalls()
	wantLens := []int{4096, 4096, 1808}
	if len(calls) != len(wantLens) {
		t.Fatalf("expected %d chunk calls, got %d", len(wantLens), len(calls))
	}
	for i, want := range wantLens {
		if len(calls[i]) != want {
			t.Errorf("chunk %d: expected %d characters, got %d", i, want, len(calls[i]))
		}
	}

	if len(got) != 302 {
		t.Fatalf("expected combined summary of 302 characters, got %d", len(got))
	}

	if len(events) != 1 || events[0].Chunks != 3 {
		t.Fatalf("expected a single pass over 3 chunks, got %+v", events)
	}

	if fake.Opened() != 1 {
		t.Fatalf("expected one session for the pass, got %d", fake.Opened())
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeJoinsInChunkOrder(t *testing.T) {
	fake := &gatewaytest.Fake{
		SummarizeFunc: func(_ context.Context, text string) (string, error) {
			return strings.ToUpper(text[:1]), nil
		},
	}
	c := newChunked(fake, summarizer.Config{Bound: 5})

	got, err := c.Summarize(context.Background(), "aaaaabbbbbccccc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "A\nB\nC" {
		t.Fatalf("unexpected combined summary: %q", got)
	}
}

func TestSummarizeRecursesUntilWithinBound(t *testing.T) {
	fake := &gatewaytest.Fake{SummarizeFunc: fixedSummary(10)}

	passes := 0
	c := newChunked(fake, summarizer.Config{
		Bound: 100,
		Observer: func(_ context.Context, _ summarizer.PassEvent) {
			passes++
		},
	})

	got, err := c.Summarize(context.Background(), strings.Repeat("x", 1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10 chunks give 109 characters, which needs a second pass over 2 chunks.
	if passes != 2 {
		t.Fatalf("expected 2 passes, got %d", passes)
	}

	if got != strings.Repeat("s", 10)+"\n"+strings.Repeat("s", 10) {
		t.Fatalf("unexpected summary: %q", got)
	}

	if fake.Opened() != 2 {
		t.Fatalf("expected one session per pass, got %d", fake.Opened())
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeOwnOutputIsSingleCall(t *testing.T) {
	fake := &gatewaytest.Fake{SummarizeFunc: fixedSummary(100)}
	c := newChunked(fake, summarizer.Config{Bound: 4096})

	first, err := c.Summarize(context.Background(), strings.Repeat("x", 10000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := len(fake.SummarizeCalls())

	if _, err = c.Summarize(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if after := len(fake.SummarizeCalls()); after-before != 1 {
		t.Fatalf("expected a single call on own output, got %d", after-before)
	}
}

func TestSummarizeIdentityModelStalls(t *testing.T) {
	fake := &gatewaytest.Fake{}
	c := newChunked(fake, summarizer.Config{Bound: 100})

	_, err := c.Summarize(context.Background(), strings.Repeat("x", 1000))
	if !errors.Is(err, summarizer.ErrCompressionStalled) {
		t.Fatalf("expected compression stalled, got %v", err)
	}

	if calls := len(fake.SummarizeCalls()); calls != 10 {
		t.Fatalf("expected to stop after the first pass, got %d calls", calls)
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeStopsAfterMaxPasses(t *testing.T) {
	fake := &gatewaytest.Fake{
		SummarizeFunc: func(_ context.Context, text string) (string, error) {
			return text[:len(text)-1], nil
		},
	}

	passes := 0
	c := newChunked(fake, summarizer.Config{
		Bound:     10,
		MaxPasses: 2,
		Observer: func(_ context.Context, _ summarizer.PassEvent) {
			passes++
		},
	})

	_, err := c.Summarize(context.Background(), strings.Repeat("x", 100))
	if !errors.Is(err, summarizer.ErrCompressionStalled) {
		t.Fatalf("expected compression stalled, got %v", err)
	}

	if passes != 2 {
		t.Fatalf("expected exactly 2 passes, got %d", passes)
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeCapabilityUnavailable(t *testing.T) {
	for _, availability := range []gateway.Availability{gateway.AvailabilityNo, gateway.AvailabilityAfterDownload} {
		t.Run(string(availability), func(t *testing.T) {
			fake := &gatewaytest.Fake{
				Availability: map[gateway.Capability]gateway.Availability{
					gateway.CapabilitySummarizer: availability,
				},
			}
			c := newChunked(fake, summarizer.Config{})

			_, err := c.Summarize(context.Background(), "text")
			if !errors.Is(err, gateway.ErrCapabilityUnavailable) {
				t.Fatalf("expected capability unavailable, got %v", err)
			}

			if fake.Opened() != 0 {
				t.Fatalf("expected no work after failed probe, opened %d sessions", fake.Opened())
			}
		})
	}
}

func TestSummarizeChunkFailureAborts(t *testing.T) {
	wantErr := errors.New("model crashed")

	var mu sync.Mutex
	calls := 0
	fake := &gatewaytest.Fake{
		SummarizeFunc: func(_ context.Context, _ string) (string, error) {
			mu.Lock()
			defer mu.Unlock()

			calls++
			if calls == 2 {
				return "", wantErr
			}
			return "ok", nil
		},
	}
	c := newChunked(fake, summarizer.Config{Bound: 10})

	got, err := c.Summarize(context.Background(), strings.Repeat("x", 50))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected chunk error, got %v", err)
	}

	if got != "" {
		t.Fatalf("expected no partial result, got %q", got)
	}

	if len(fake.SummarizeCalls()) != 2 {
		t.Fatalf("expected to stop at the failing chunk, got %d calls", len(fake.SummarizeCalls()))
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeCancellationReleasesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &gatewaytest.Fake{
		SummarizeFunc: func(_ context.Context, _ string) (string, error) {
			cancel()
			return "ok", nil
		},
	}
	c := newChunked(fake, summarizer.Config{Bound: 10})

	_, err := c.Summarize(ctx, strings.Repeat("x", 50))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}

	if fake.Opened() != 1 {
		t.Fatalf("expected one session, got %d", fake.Opened())
	}
	assertBalancedSessions(t, fake)
}

func TestSummarizeOpenSessionFailure(t *testing.T) {
	fake := &gatewaytest.Fake{OpenErr: errors.New("no device")}
	c := newChunked(fake, summarizer.Config{})

	_, err := c.Summarize(context.Background(), "text")
	if !errors.Is(err, gateway.ErrSessionCreation) {
		t.Fatalf("expected session creation error, got %v", err)
	}
}

func TestSummarizeEmptyInput(t *testing.T) {
	fake := &gatewaytest.Fake{}
	c := newChunked(fake, summarizer.Config{})

	if _, err := c.Summarize(context.Background(), " \n\t "); !errors.Is(err, summarizer.ErrEmptyInput) {
		t.Fatalf("expected empty input error, got %v", err)
	}

	if fake.Probes() != 0 {
		t.Fatalf("expected no probe for empty input")
	}
}

func TestSummarizeSkipsBlankChunks(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		bound     int
		wantCalls []string
		want      string
	}{
		{
			"Trailing newline after a full chunk",
			strings.Repeat("a", 10) + "\n",
			10,
			[]string{strings.Repeat("a", 10)},
			"ss",
		},
		{
			"Run of spaces",
			"aaaaa" + strings.Repeat(" ", 10) + "bbbbb",
			5,
			[]string{"aaaaa", "bbbbb"},
			"ss\nss",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &gatewaytest.Fake{SummarizeFunc: fixedSummary(2)}
			c := newChunked(fake, summarizer.Config{Bound: test.bound})

			got, err := c.Summarize(context.Background(), test.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			calls := fake.SummarizeCalls()
			if strings.Join(calls, "|") != strings.Join(test.wantCalls, "|") {
				t.Fatalf("expected calls %q, got %q", test.wantCalls, calls)
			}

			if got != test.want {
				t.Fatalf("unexpected summary: %q", got)
			}
			assertBalancedSessions(t, fake)
		})
	}
}

func TestSummarizeOpenAITrailingNewline(t *testing.T) {
	const model = "test-model"

	var (
		mu    sync.Mutex
		calls int
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if strings.HasSuffix(r.URL.Path, "/models/"+model) {
			fmt.Fprintf(w, `{"id": %q, "object": "model", "created": 0, "owned_by": "test"}`, model)
			return
		}

		mu.Lock()
		calls++
		mu.Unlock()

		fmt.Fprintf(w, `{
  "id": "resp_1",
  "object": "response",
  "created_at": 0,
  "model": %q,
  "status": "completed",
  "output": [{
    "type": "message",
    "id": "msg_1",
    "role": "assistant",
    "status": "completed",
    "content": [{"type": "output_text", "text": "Summary.", "annotations": []}]
  }]
}`, model)
	}))
	t.Cleanup(server.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.NewOpenAIGateway(gateway.OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
		Model:   model,
	}, log)
	c := summarizer.New(gw, summarizer.Config{Bound: 4096}, log)

	got, err := c.Summarize(context.Background(), strings.Repeat("a", 4096)+"\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "Summary." {
		t.Fatalf("unexpected summary: %q", got)
	}

	mu.Lock()
	defer mu.Unlock()

	if calls != 1 {
		t.Fatalf("expected a single model call, got %d", calls)
	}
}

func TestSplitCoversInput(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		bound int
		want  int
	}{
		{"Exact multiple", strings.Repeat("a", 12), 4, 3},
		{"Shorter last chunk", strings.Repeat("a", 10), 4, 3},
		{"Single chunk", "abc", 4, 1},
		{"Multibyte", strings.Repeat("héllo wörld ", 20), 7, 35},
		{"Empty", "", 4, 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			chunks := summarizer.Split(test.text, test.bound)

			if len(chunks) != test.want {
				t.Fatalf("expected %d chunks, got %d", test.want, len(chunks))
			}

			if got := strings.Join(chunks, ""); got != test.text {
				t.Fatalf("chunks do not cover the input exactly once")
			}

			for i, chunk := range chunks {
				n := utf8.RuneCountInString(chunk)
				if n > test.bound || n == 0 {
					t.Errorf("chunk %d has %d characters (bound = %d)", i, n, test.bound)
				}

				if !utf8.ValidString(chunk) {
					t.Errorf("chunk %d splits a character", i)
				}

				if i < len(chunks)-1 && n != test.bound {
					t.Errorf("only the last chunk may be shorter, chunk %d has %d", i, n)
				}
			}
		})
	}
}

func TestJoin(t *testing.T) {
	if got := summarizer.Join([]string{"A", "B", "C"}); got != "A\nB\nC" {
		t.Fatalf("unexpected join: %q", got)
	}
}
