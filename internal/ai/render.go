package ai

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

var feedbackPolicy = newFeedbackPolicy()

func newFeedbackPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "ul", "ol", "li", "strong", "em", "b", "i", "br", "hr", "blockquote", "code", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6", "a", "table", "thead", "tbody", "tr", "th", "td",
	)
	p.AllowAttrs("href", "title", "rel", "target").OnElements("a")
	p.AllowStandardURLs()
	return p
}

// RenderMarkdown converts LLM markdown into sanitized HTML.
func RenderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return feedbackPolicy.Sanitize(buf.String()), nil
}

// Disclaimer returns the note shown next to every analysis.
func Disclaimer(lang string) string {
	if lang == "es" {
		return "Nota: Este análisis es una guía orientativa para ayudarte a mejorar tu CV. " +
			"No representa una verdad absoluta y los resultados pueden variar en cada evaluación. " +
			"Como referencia, una coincidencia superior al 70% suele considerarse buena, " +
			"pero otros factores también influyen en los procesos de selección."
	}

	return "Note: This analysis is a guiding aid to help you improve your resume. " +
		"It is not an absolute truth and results may vary across evaluations. " +
		"As a reference, a match over 70% is typically considered good, " +
		"but other factors also influence hiring decisions."
}
