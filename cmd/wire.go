package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spigell/ats-checker/internal/ai"
	"github.com/spigell/ats-checker/internal/ai/gemini"
	"github.com/spigell/ats-checker/internal/ai/openai"
	"github.com/spigell/ats-checker/internal/analysis"
	"github.com/spigell/ats-checker/internal/document"
	"github.com/spigell/ats-checker/internal/history"
	"github.com/spigell/ats-checker/internal/logger"
	"github.com/spigell/ats-checker/internal/secrets"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// setup builds the logger and loads the config. Failures are fatal.
func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("config loaded",
		zap.String("ai_mode", config.AI.Mode),
		zap.String("history_path", config.History.Path),
		zap.Int("execution_limit", config.Limits.Executions),
	)

	return logger, config
}

func maxUploadBytes(config *Config) int64 {
	return int64(config.Limits.MaxUploadMB) * 1024 * 1024
}

// newSelector wires every vendor that has a key. Missing keys are not an error;
// the selector reports ErrNoFeedback when nothing is usable.
func newSelector(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*ai.Selector, error) {
	mode, err := ai.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	var openaiGen, geminiGen ai.FeedbackGenerator

	if mode != ai.ModeGemini {
		key, err := secrets.Optional(secrets.Source{
			Name:  "openai api key",
			Value: cfg.OpenAI.APIKey,
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		if key != "" {
			client, err := openai.New(key, cfg.OpenAI.Model, cfg.OpenAI.MaxAttempts, logger)
			if err != nil {
				return nil, err
			}
			openaiGen = client
		}
	}

	if mode != ai.ModeOpenAI {
		key, err := secrets.Optional(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.Gemini.APIKey,
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		if key != "" {
			generator, err := gemini.NewGenerator(ctx, key, cfg.Gemini.Model, cfg.Gemini.MaxAttempts, logger)
			if err != nil {
				return nil, err
			}
			geminiGen = gemini.NewFeedback(generator)
		}
	}

	if openaiGen == nil && geminiGen == nil {
		logger.Warn("no llm vendor configured",
			zap.String("mode", string(mode)),
			zap.String("hint", "set OPENAI_API_KEY or GEMINI_API_KEY, or the ai.*.api-key-file keys in the configuration file"),
		)
	}

	return ai.NewSelector(mode, openaiGen, geminiGen, logger), nil
}

// openHistory opens the store when history is enabled. The returned store may be nil.
func openHistory(ctx context.Context, config *Config, logger *zap.Logger) (*history.Store, error) {
	if !config.History.Enabled {
		logger.Debug("history disabled")
		return nil, nil
	}

	store, err := history.Open(ctx, config.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history %q: %w", config.History.Path, err)
	}
	return store, nil
}

func newAnalyzer(config *Config, selector *ai.Selector, store *history.Store, logger *zap.Logger) *analysis.Analyzer {
	var s analysis.Store
	if store != nil {
		s = store
	}
	var fb analysis.FeedbackSource
	if selector != nil {
		fb = selector
	}

	return analysis.New(document.NewExtractor(logger), fb, s, analysis.Options{
		MaxUploadBytes: maxUploadBytes(config),
		ExecutionLimit: config.Limits.Executions,
	}, logger)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
