package gateway

import (
	"context"
	"testing"
)

func TestPairAvailability(t *testing.T) {
	tests := []struct {
		name   string
		source string
		target string
		want   Availability
	}{
		{"Supported pair", "en", "es", AvailabilityReadily},
		{"Case insensitive", "EN", "fr", AvailabilityReadily},
		{"Same language", "de", "de", AvailabilityNo},
		{"Unknown source", LanguageUnknown, "es", AvailabilityNo},
		{"Unsupported target", "en", "xx", AvailabilityNo},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := pairAvailability(test.source, test.target); got != test.want {
				t.Errorf("Expected %v, got %v", test.want, got)
			}
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"English",
			"The quick brown fox jumps over the lazy dog while the children are playing in the garden.",
			"en",
		},
		{
			"French",
			"Bonjour, je m'appelle Marie et j'habite à Paris depuis dix ans avec ma famille.",
			"fr",
		},
		{
			"Empty",
			"   ",
			LanguageUnknown,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := detectLanguage(context.Background(), test.text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != test.want {
				t.Errorf("Expected %q, got %q", test.want, got)
			}
		})
	}
}

func TestLanguageName(t *testing.T) {
	if name, ok := LanguageName(" JA "); !ok || name != "Japanese" {
		t.Fatalf("unexpected language name: %q (ok = %v)", name, ok)
	}

	if _, ok := LanguageName("tlh"); ok {
		t.Fatalf("expected unknown language code")
	}
}
