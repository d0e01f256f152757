package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/ats-checker/internal/logger"
	"go.uber.org/zap"
)

// Mode selects which vendors the Selector may use.
type Mode string

const (
	// ModeAuto tries OpenAI first and falls back to Gemini.
	ModeAuto   Mode = "auto"
	ModeOpenAI Mode = "openai"
	ModeGemini Mode = "gemini"
)

// ParseMode validates a configured mode. Empty means auto.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeOpenAI, ModeGemini:
		return m, nil
	default:
		return "", fmt.Errorf("unknown ai mode %q (expected auto, openai or gemini)", raw)
	}
}

// Selector routes a request to the configured vendors in order.
type Selector struct {
	mode   Mode
	openai FeedbackGenerator
	gemini FeedbackGenerator
	logger *zap.Logger
}

// NewSelector wires the available generators. Either may be nil when its key is absent.
func NewSelector(mode Mode, openai, gemini FeedbackGenerator, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	if mode == "" {
		mode = ModeAuto
	}
	return &Selector{mode: mode, openai: openai, gemini: gemini, logger: log}
}

// Mode reports the configured mode.
func (s *Selector) Mode() Mode {
	return s.mode
}

func (s *Selector) chain() []FeedbackGenerator {
	var candidates []FeedbackGenerator
	switch s.mode {
	case ModeOpenAI:
		candidates = []FeedbackGenerator{s.openai}
	case ModeGemini:
		candidates = []FeedbackGenerator{s.gemini}
	default:
		candidates = []FeedbackGenerator{s.openai, s.gemini}
	}

	chain := candidates[:0]
	for _, g := range candidates {
		if g != nil {
			chain = append(chain, g)
		}
	}
	return chain
}

// Generate asks each vendor in turn until one returns non-empty feedback.
// Context cancellation stops the chain immediately.
func (s *Selector) Generate(ctx context.Context, req Request) (*Feedback, error) {
	chain := s.chain()
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no vendor configured for mode %s", ErrNoFeedback, s.mode)
	}

	var errs []error
	for _, g := range chain {
		log := logger.WithVendor(s.logger, g.Vendor(), g.Model())
		log.Debug("requesting feedback", zap.String("language", req.Language))

		text, err := g.GenerateFeedback(ctx, req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("feedback generation failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", g.Vendor(), err))
			continue
		}

		if strings.TrimSpace(text) == "" {
			log.Warn("vendor returned empty feedback")
			errs = append(errs, fmt.Errorf("%s: empty response", g.Vendor()))
			continue
		}

		return &Feedback{Text: text, Vendor: g.Vendor(), Model: g.Model()}, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrNoFeedback, errors.Join(errs...))
}
