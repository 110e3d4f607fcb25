package page

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

// FindURL returns the first http(s) URL in text.
func FindURL(text string) (string, bool) {
	re, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		return "", false
	}

	u := strings.TrimSpace(re.FindString(text))

	return u, u != ""
}
