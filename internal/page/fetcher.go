package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"texthelper/internal/domain"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	DefaultTimeout  = 20 * time.Second
	maxBodyBytes    = 5 << 20
	whitespaceRunes = " \t\r\n"
)

// ErrNoActiveTarget means there is no page to act on.
var ErrNoActiveTarget = errors.New("no active target")

type Fetcher struct {
	client     *http.Client
	feedParser *gofeed.Parser
	log        *slog.Logger

	telegramPreviewURL func(slug string) *url.URL
}

func NewFetcher(timeout time.Duration, log *slog.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		feedParser: gofeed.NewParser(),
		log:        log,

		telegramPreviewURL: telegramChannelPreviewURL,
	}
}

// Fetch downloads rawURL and extracts its readable text. Feeds resolve to
// their newest item, public Telegram channels to their recent posts.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Page, error) {
	rawURL = strings.TrimSpace(rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return domain.Page{}, fmt.Errorf("%w: invalid URL %q", ErrNoActiveTarget, rawURL)
	}

	downloadURL := parsedURL

	slug, isChannel := telegramChannelSlug(parsedURL)
	if isChannel {
		downloadURL = f.telegramPreviewURL(slug)
	}

	body, err := f.download(ctx, downloadURL)
	if err != nil {
		return domain.Page{}, fmt.Errorf("download page: %w", err)
	}

	var p domain.Page
	switch {
	case isChannel:
		p, err = parseTelegramChannel(body)
	case gofeed.DetectFeedType(bytes.NewReader(body)) != gofeed.FeedTypeUnknown:
		p, err = f.parseFeed(body)
	default:
		p, err = parseHTML(body, parsedURL)
	}
	if err != nil {
		return domain.Page{}, err
	}

	p.URL = rawURL
	p.Title = strings.TrimSpace(p.Title)
	p.Text = normalizeText(p.Text)

	if p.Text == "" {
		return domain.Page{}, fmt.Errorf("%w: page has no readable text", ErrNoActiveTarget)
	}

	if p.Title == "" {
		p.Title = parsedURL.Host
	}

	f.log.DebugContext(ctx, "Page is fetched",
		"url", rawURL,
		"title", p.Title,
		"textLen", len(p.Text))

	return p, nil
}

func (f *Fetcher) download(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req) //nolint:gosec // URL is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", u.String(),
				"operation", "download")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

func (f *Fetcher) parseFeed(body []byte) (domain.Page, error) {
	feed, err := f.feedParser.Parse(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, fmt.Errorf("parse feed: %w", err)
	}

	item := newestItem(feed.Items)
	if item == nil {
		return domain.Page{}, fmt.Errorf("%w: feed has no items", ErrNoActiveTarget)
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	text, err := htmlText(content)
	if err != nil {
		return domain.Page{}, err
	}

	title := item.Title
	if strings.TrimSpace(title) == "" {
		title = feed.Title
	}

	return domain.Page{Title: title, Text: text}, nil
}

func newestItem(items []*gofeed.Item) *gofeed.Item {
	var newest *gofeed.Item

	for _, item := range items {
		if item == nil {
			continue
		}

		if newest == nil {
			newest = item
			continue
		}

		if item.PublishedParsed != nil &&
			(newest.PublishedParsed == nil || item.PublishedParsed.After(*newest.PublishedParsed)) {
			newest = item
		}
	}

	return newest
}

func parseHTML(body []byte, pageURL *url.URL) (domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, fmt.Errorf("create document from reader: %w", err)
	}

	title := documentTitle(doc)

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		if strings.TrimSpace(article.Title) != "" {
			title = article.Title
		}

		return domain.Page{Title: title, Text: article.TextContent}, nil
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()

	return domain.Page{Title: title, Text: doc.Find("body").Text()}, nil
}

func documentTitle(doc *goquery.Document) string {
	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

func htmlText(fragment string) (string, error) {
	if !strings.Contains(fragment, "<") {
		return fragment, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	return doc.Text(), nil
}

// normalizeText collapses blank lines and trims every line.
func normalizeText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]

	for _, line := range lines {
		line = strings.Trim(line, whitespaceRunes)
		if line == "" {
			continue
		}
		kept = append(kept, strings.Join(strings.Fields(line), " "))
	}

	return strings.Join(kept, "\n")
}
