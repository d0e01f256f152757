package ai

import (
	"regexp"
	"strconv"
	"strings"
)

// scorePatterns are tried in order; the first capture inside [0,100] wins.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:match\s*score|puntuaci[oó]n.*?(?:0.?100)?)\D{0,20}(\b100\b|\b\d{1,2}\b)`),
	regexp.MustCompile(`(?i)(?:score|coincidencia)\D{0,20}(\b100\b|\b\d{1,2}\b)`),
	regexp.MustCompile(`\b(\d{1,3})\s*/\s*100\b`),
	regexp.MustCompile(`\b(\d{1,3})\s*%`),
	regexp.MustCompile(`\b(\d{1,2})\b`),
}

var (
	percentLine   = regexp.MustCompile(`^\d{1,3}\s*%$`)
	analysisTitle = regexp.MustCompile(`(?i)^(analysis for|análisis (para|de))\b`)
)

// ExtractScore pulls the 0-100 match score out of free-text feedback.
// Formats like "75%", "75 / 100" and "score: 75" are understood.
func ExtractScore(text string) (int, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}

	for _, p := range scorePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		value, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if value >= 0 && value <= 100 {
			return value, true
		}
	}

	return 0, false
}

// CleanFeedback drops a leading bare percentage line or an analysis title line.
func CleanFeedback(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return text
	}

	first := strings.TrimSpace(lines[0])
	if percentLine.MatchString(first) || analysisTitle.MatchString(first) {
		lines = lines[1:]
	}

	return strings.TrimLeft(strings.Join(lines, "\n"), " \t\r\n")
}
