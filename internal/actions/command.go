package actions

import (
	"strings"

	"texthelper/internal/domain"
	"texthelper/internal/page"
)

const (
	summarizePrefix = "summarize:"
	rewritePrefix   = "rewrite:"
)

// Command is a parsed chat panel input.
type Command struct {
	Action domain.Action
	Text   string
	// Page is set when a summarize command points at a URL.
	Page bool
}

// ParseCommand routes panel input. "summarize:" and "rewrite:" prefixes are
// matched case-insensitively, anything else is a chat message.
func ParseCommand(input string) Command {
	trimmed := strings.TrimSpace(input)

	if text, ok := cutPrefixFold(trimmed, summarizePrefix); ok {
		_, isPage := page.FindURL(text)

		return Command{Action: domain.ActionSummarize, Text: text, Page: isPage}
	}

	if text, ok := cutPrefixFold(trimmed, rewritePrefix); ok {
		return Command{Action: domain.ActionRewrite, Text: text}
	}

	return Command{Action: domain.ActionChat, Text: trimmed}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}

	return strings.TrimSpace(s[len(prefix):]), true
}
