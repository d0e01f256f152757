package gemini

import (
	"context"

	"github.com/spigell/ats-checker/internal/ai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// Feedback adapts a Generator to ai.FeedbackGenerator.
type Feedback struct {
	generator contentGenerator
}

// NewFeedback wraps generator for use by the ai.Selector.
func NewFeedback(generator contentGenerator) *Feedback {
	return &Feedback{generator: generator}
}

// GenerateFeedback builds the recruiter prompt and asks Gemini for the analysis.
func (f *Feedback) GenerateFeedback(ctx context.Context, req ai.Request) (string, error) {
	prompt := ai.BuildPrompt(req)
	return f.generator.GenerateContent(ctx, prompt.System, prompt.Input)
}

func (f *Feedback) Vendor() string { return "gemini" }

func (f *Feedback) Model() string { return f.generator.Model() }
