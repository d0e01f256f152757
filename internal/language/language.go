// Package language detects whether a text is Spanish or English.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

const (
	Spanish = "es"
	English = "en"
)

// Detect returns Spanish when the text reads as Spanish and English otherwise,
// including for empty or undetectable input.
func Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return English
	}

	info := whatlanggo.Detect(text)
	if info.Lang == whatlanggo.Spa {
		return Spanish
	}

	return English
}

// Supported reports whether code is one of the languages the application answers in.
func Supported(code string) bool {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case Spanish, English:
		return true
	default:
		return false
	}
}
