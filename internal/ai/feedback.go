// Package ai turns a resume and a job description into recruiter-style feedback
// using external LLM providers.
package ai

import (
	"context"
	"errors"
)

// ErrNoFeedback is returned when no provider produced feedback.
var ErrNoFeedback = errors.New("no feedback could be generated")

// Request is the input handed to a feedback provider.
type Request struct {
	Resume         string
	JobDescription string
	// Language is the answer language, "es" or "en".
	Language string
	// Name is how the candidate is addressed. Empty means a neutral form.
	Name string
}

// FeedbackGenerator produces free-text feedback whose first line is the match percentage.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, req Request) (string, error)
	Vendor() string
	Model() string
}

// Feedback is the outcome of a successful generation.
type Feedback struct {
	Text   string
	Vendor string
	Model  string
}
