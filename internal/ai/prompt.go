package ai

import (
	_ "embed"
	"strings"
)

//go:embed prompt_es.md
var promptES string

//go:embed prompt_en.md
var promptEN string

// Prompt splits the request into provider instructions and the user input.
type Prompt struct {
	System string
	Input  string
}

// BuildPrompt renders the recruiter instructions in the requested language.
func BuildPrompt(req Request) Prompt {
	template := promptEN
	name := "candidate"
	if req.Language == "es" {
		template = promptES
		name = "candidato/a"
	}

	if n := strings.TrimSpace(req.Name); n != "" {
		name = n
	}

	system := strings.ReplaceAll(strings.TrimSpace(template), "{{NAME}}", name)

	var input strings.Builder
	input.WriteString("Resume (CV):\n")
	input.WriteString(req.Resume)
	input.WriteString("\n\nJob Description:\n")
	input.WriteString(req.JobDescription)
	input.WriteString("\n")

	return Prompt{System: system, Input: input.String()}
}
