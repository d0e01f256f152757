// Package document extracts plain text and layout metadata from uploaded resumes.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spigell/ats-checker/internal/ats"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document is empty")
)

// Document is the extraction result consumed by the ATS scorer.
type Document struct {
	Format   ats.Format
	Text     string
	Metadata ats.Metadata
}

// Extractor turns raw PDF or DOCX bytes into a Document.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// ParseFormat resolves a format from a file name or a bare extension.
func ParseFormat(name string) (ats.Format, error) {
	ext := strings.ToLower(strings.TrimSpace(name))
	if e := filepath.Ext(ext); e != "" {
		ext = e
	}
	ext = strings.TrimPrefix(ext, ".")

	switch ats.Format(ext) {
	case ats.FormatPDF:
		return ats.FormatPDF, nil
	case ats.FormatDOCX:
		return ats.FormatDOCX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Extract reads the document. Missing optional metadata (page count, fonts)
// is left unset rather than reported as an error.
func (e *Extractor) Extract(ctx context.Context, data []byte, format ats.Format) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	var (
		doc *Document
		err error
	)

	switch format {
	case ats.FormatPDF:
		doc, err = e.extractPDF(ctx, data)
	case ats.FormatDOCX:
		doc, err = e.extractDOCX(ctx, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", format, err)
	}

	doc.Format = format
	if doc.Metadata.RawFontNames == nil {
		doc.Metadata.RawFontNames = []string{}
	}

	e.logger.Debug("document extracted",
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("text_length", len(doc.Text)),
		zap.Int("images", doc.Metadata.ImageCount),
		zap.Int("tables", doc.Metadata.TableCount),
		zap.Strings("fonts", doc.Metadata.RawFontNames),
	)

	return doc, nil
}
