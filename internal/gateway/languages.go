package gateway

import (
	"context"
	"strings"

	"github.com/abadojack/whatlanggo"
)

const LanguageUnknown = "unknown"

type Language struct {
	Code string
	Name string
}

// Languages lists translation targets in display order.
//
//nolint:gochecknoglobals // Lookup table meant to be immutable.
var Languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ru", Name: "Russian"},
	{Code: "zh", Name: "Chinese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
}

func LanguageName(code string) (string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range Languages {
		if l.Code == code {
			return l.Name, true
		}
	}

	return "", false
}

// pairAvailability reports whether the pair can be translated at all.
func pairAvailability(sourceLanguage, targetLanguage string) Availability {
	_, sourceOK := LanguageName(sourceLanguage)
	_, targetOK := LanguageName(targetLanguage)

	if !sourceOK || !targetOK || strings.EqualFold(sourceLanguage, targetLanguage) {
		return AvailabilityNo
	}

	return AvailabilityReadily
}

// detectLanguage runs locally, so it never needs a session.
func detectLanguage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return LanguageUnknown, nil
	}

	info := whatlanggo.Detect(text)

	code := info.Lang.Iso6391()
	if code == "" {
		return LanguageUnknown, nil
	}

	return code, nil
}
