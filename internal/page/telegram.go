package page

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"texthelper/internal/domain"
)

const (
	telegramHost = "t.me"

	minPartsForTelegramChannelSlugStartingWithS = 2
	maxTelegramChannelPosts                     = 20
)

var telegramSlugRe = regexp.MustCompile(`^\w{5,32}$`)

// telegramChannelSlug reports the public channel a t.me link points to.
// Links to single posts resolve to their channel.
func telegramChannelSlug(u *url.URL) (string, bool) {
	if u == nil || !strings.EqualFold(u.Host, telegramHost) {
		return "", false
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", false
	}

	parts := strings.Split(path, "/")

	var slug string

	switch parts[0] {
	case "s":
		if len(parts) < minPartsForTelegramChannelSlugStartingWithS {
			return "", false
		}
		slug = parts[1]
	default:
		slug = parts[0]
	}

	slug = strings.TrimSpace(slug)
	if !telegramSlugRe.MatchString(slug) {
		return "", false
	}

	return slug, true
}

// telegramChannelPreviewURL is the public web preview that lists the
// channel's recent posts.
func telegramChannelPreviewURL(slug string) *url.URL {
	return &url.URL{Scheme: "https", Host: telegramHost, Path: "/s/" + slug}
}

// parseTelegramChannel turns a channel preview page into a page whose text
// is the channel's recent posts, oldest first.
func parseTelegramChannel(body []byte) (domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return domain.Page{}, fmt.Errorf("create document from reader: %w", err)
	}

	var posts []string

	doc.Find(".tgme_widget_message").Each(func(_ int, message *goquery.Selection) {
		if text := telegramPostText(message); text != "" {
			posts = append(posts, text)
		}
	})

	if len(posts) > maxTelegramChannelPosts {
		posts = posts[len(posts)-maxTelegramChannelPosts:]
	}

	var title string

	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		title = strings.TrimSpace(content)
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").Text())
	}

	return domain.Page{Title: title, Text: strings.Join(posts, "\n\n")}, nil
}

func telegramPostText(message *goquery.Selection) string {
	var b strings.Builder

	message.Find(".tgme_widget_message_text, .tgme_widget_message_caption").Each(
		func(_ int, inner *goquery.Selection) {
			inner.Find("br").Each(func(_ int, br *goquery.Selection) {
				br.ReplaceWithHtml("\n")
			})

			fragment := strings.TrimSpace(inner.Text())
			if fragment == "" {
				return
			}

			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(fragment)
		},
	)

	return strings.TrimSpace(b.String())
}
