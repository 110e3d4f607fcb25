package bot

import (
	"strings"

	"texthelper/internal/toolbar"
)

const draftTitleWords = 6

// toolbarDraft derives a title from the first words of a summary.
func toolbarDraft(content string) toolbar.Draft {
	words := strings.Fields(content)

	title := strings.Join(words[:min(len(words), draftTitleWords)], " ")
	if len(words) > draftTitleWords {
		title += "…"
	}

	return toolbar.Draft{Title: title, Content: content}
}
