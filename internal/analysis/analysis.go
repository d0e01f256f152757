// Package analysis runs the résumé pipeline: validate, extract, screen, score,
// ask an LLM for feedback and record the execution.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spigell/ats-checker/internal/ai"
	"github.com/spigell/ats-checker/internal/ats"
	"github.com/spigell/ats-checker/internal/document"
	"github.com/spigell/ats-checker/internal/history"
	"github.com/spigell/ats-checker/internal/language"
	"github.com/spigell/ats-checker/internal/logger"
	"github.com/spigell/ats-checker/internal/security"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSuspicious is returned when the résumé text looks like an injection attempt.
	ErrSuspicious = errors.New("document contains suspicious content")
	// ErrLimitReached is returned when the user has used all allowed executions.
	ErrLimitReached = errors.New("execution limit reached")
)

const maxOccupationRunes = 200

// Upload is a résumé submitted for analysis.
type Upload struct {
	Filename       string
	Data           []byte
	JobDescription string `validate:"required"`
	Email          string `validate:"omitempty,email"`
	// Occupation is the candidate's self-described role. It is truncated to 200 runes.
	Occupation string
	// Name addresses the candidate in the feedback.
	Name string
}

// ValidationError wraps input problems so callers can map them to a 400.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Report is the outcome of a full analysis.
type Report struct {
	ID             string      `json:"id,omitempty"`
	Filename       string      `json:"filename"`
	Format         ats.Format  `json:"format"`
	Size           int64       `json:"size"`
	ResumeLanguage string      `json:"resume_language"`
	JDLanguage     string      `json:"jd_language"`
	ATS            *ats.Result `json:"ats"`
	JDScore        *int        `json:"jd_score"`
	Vendor         string      `json:"vendor"`
	Model          string      `json:"model"`
	Feedback       string      `json:"feedback"`
	FeedbackHTML   string      `json:"feedback_html"`
	Disclaimer     string      `json:"disclaimer"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Extractor reads uploaded documents.
type Extractor interface {
	Extract(ctx context.Context, data []byte, format ats.Format) (*document.Document, error)
}

// FeedbackSource produces LLM feedback.
type FeedbackSource interface {
	Generate(ctx context.Context, req ai.Request) (*ai.Feedback, error)
}

// Store records executions.
type Store interface {
	Save(ctx context.Context, e *history.Execution) error
	// Reserve claims an execution slot for email under id or returns history.ErrLimitReached.
	Reserve(ctx context.Context, id, email string, limit int) error
	Release(ctx context.Context, id string) error
}

// Options configures an Analyzer.
type Options struct {
	// MaxUploadBytes defaults to security.DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// ExecutionLimit caps executions per email when positive and a Store is set.
	ExecutionLimit int
}

// Analyzer runs the pipeline. Feedback and Store may be nil.
type Analyzer struct {
	extractor Extractor
	feedback  FeedbackSource
	store     Store
	opts      Options
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// New creates an Analyzer.
func New(extractor Extractor, feedback FeedbackSource, store Store, opts Options, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = security.DefaultMaxUploadBytes
	}
	return &Analyzer{
		extractor: extractor,
		feedback:  feedback,
		store:     store,
		opts:      opts,
		validate:  validator.New(),
		logger:    log,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Score validates, extracts and scores a résumé without feedback or persistence.
func (a *Analyzer) Score(ctx context.Context, filename string, data []byte) (*ats.Result, error) {
	format, err := a.checkUpload(filename, data)
	if err != nil {
		return nil, err
	}

	doc, err := a.load(ctx, filename, format, data)
	if err != nil {
		return nil, err
	}

	lang := language.Detect(doc.Text)
	result := ats.Evaluate(doc.Text, lang, doc.Format, doc.Metadata)

	a.logger.Info("ats score computed",
		zap.String("filename", filename),
		zap.Int("score", result.Score),
		zap.Int("passed", result.Passed()),
	)
	return result, nil
}

// Analyze runs the whole pipeline.
func (a *Analyzer) Analyze(ctx context.Context, up Upload) (*Report, error) {
	format, err := a.checkUpload(up.Filename, up.Data)
	if err != nil {
		return nil, err
	}

	up.JobDescription = strings.TrimSpace(up.JobDescription)
	up.Email = strings.ToLower(strings.TrimSpace(up.Email))
	if err := a.validate.Struct(up); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if a.feedback == nil {
		return nil, fmt.Errorf("%w: no feedback source configured", ai.ErrNoFeedback)
	}

	var id string
	if a.store != nil {
		id = a.newID()
	}
	reserved, err := a.reserve(ctx, id, up.Email)
	if err != nil {
		return nil, err
	}
	saved := false
	if reserved {
		defer func() {
			if !saved {
				a.release(ctx, id)
			}
		}()
	}

	doc, err := a.load(ctx, up.Filename, format, up.Data)
	if err != nil {
		return nil, err
	}

	resumeLang := language.Detect(doc.Text)
	jdLang := language.Detect(up.JobDescription)
	answerLang := language.Detect(doc.Text + " " + up.JobDescription)

	var (
		result   *ats.Result
		feedback *ai.Feedback
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		result = ats.Evaluate(doc.Text, resumeLang, doc.Format, doc.Metadata)
		return nil
	})
	g.Go(func() error {
		fb, err := a.feedback.Generate(gCtx, ai.Request{
			Resume:         doc.Text,
			JobDescription: up.JobDescription,
			Language:       answerLang,
			Name:           up.Name,
		})
		if err != nil {
			return err
		}
		feedback = fb
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Error("feedback generation failed",
			zap.String("filename", up.Filename),
			zap.Int("cv_length", utf8.RuneCountInString(doc.Text)),
			zap.Int("jd_length", utf8.RuneCountInString(up.JobDescription)),
			zap.Error(err),
		)
		return nil, err
	}

	report := &Report{
		Filename:       up.Filename,
		Format:         doc.Format,
		Size:           int64(len(up.Data)),
		ResumeLanguage: resumeLang,
		JDLanguage:     jdLang,
		ATS:            result,
		Vendor:         feedback.Vendor,
		Model:          feedback.Model,
		Disclaimer:     ai.Disclaimer(answerLang),
		CreatedAt:      a.now().UTC(),
	}
	if score, ok := ai.ExtractScore(feedback.Text); ok {
		report.JDScore = &score
	}
	report.Feedback = ai.CleanFeedback(feedback.Text)
	if report.FeedbackHTML, err = ai.RenderMarkdown(report.Feedback); err != nil {
		return nil, fmt.Errorf("render feedback: %w", err)
	}

	log := logger.WithVendor(a.logger, report.Vendor, report.Model)

	if a.store != nil {
		report.ID = id
		err := a.store.Save(ctx, &history.Execution{
			ID:         report.ID,
			Email:      up.Email,
			Occupation: Occupation(up.Occupation),
			Filename:   up.Filename,
			Ext:        string(doc.Format),
			Size:       report.Size,
			ResumeLang: resumeLang,
			JDLang:     jdLang,
			Vendor:     report.Vendor,
			Model:      report.Model,
			JDScore:    report.JDScore,
			ATSScore:   result.Score,
			ATSDetails: result,
			Feedback:   report.Feedback,
			CreatedAt:  report.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("save execution: %w", err)
		}
		saved = true
		log = logger.WithFields(log, zap.String(logger.FieldExecution, report.ID))
	}

	log.Info("analysis completed",
		zap.String("filename", up.Filename),
		zap.Int("ats_score", result.Score),
		zap.Bool("jd_score_found", report.JDScore != nil),
	)

	return report, nil
}

// Occupation trims and truncates a free-text occupation.
func Occupation(raw string) string {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) <= maxOccupationRunes {
		return raw
	}
	return string([]rune(raw)[:maxOccupationRunes])
}

// reserve holds an execution slot for email until Save consumes it.
// It reports whether a reservation was made.
func (a *Analyzer) reserve(ctx context.Context, id, email string) (bool, error) {
	if a.store == nil || a.opts.ExecutionLimit <= 0 || email == "" {
		return false, nil
	}

	err := a.store.Reserve(ctx, id, email, a.opts.ExecutionLimit)
	if errors.Is(err, history.ErrLimitReached) {
		a.logger.Warn("execution limit reached", zap.Int("limit", a.opts.ExecutionLimit))
		return false, fmt.Errorf("%w: %d executions allowed", ErrLimitReached, a.opts.ExecutionLimit)
	}
	if err != nil {
		return false, fmt.Errorf("reserve execution: %w", err)
	}
	return true, nil
}

func (a *Analyzer) release(ctx context.Context, id string) {
	if err := a.store.Release(context.WithoutCancel(ctx), id); err != nil {
		a.logger.Warn("releasing execution slot failed", zap.String(logger.FieldExecution, id), zap.Error(err))
	}
}

// checkUpload validates the file name and size and resolves the format.
func (a *Analyzer) checkUpload(filename string, data []byte) (ats.Format, error) {
	if err := security.ValidateUpload(filename, int64(len(data)), a.opts.MaxUploadBytes); err != nil {
		return "", &ValidationError{Err: err}
	}

	format, err := document.ParseFormat(filename)
	if err != nil {
		return "", &ValidationError{Err: err}
	}
	return format, nil
}

// load extracts the document and screens its text.
func (a *Analyzer) load(ctx context.Context, filename string, format ats.Format, data []byte) (*document.Document, error) {
	doc, err := a.extractor.Extract(ctx, data, format)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	if security.LooksSuspicious(doc.Text) {
		a.logger.Warn("suspicious document rejected", zap.String("filename", filename))
		return nil, ErrSuspicious
	}

	return doc, nil
}
