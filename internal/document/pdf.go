package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"github.com/spigell/ats-checker/internal/ats"
)

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (doc *Document, err error) {
	// ledongthuc/pdf panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pageCount := reader.NumPage()
	fonts := make([]string, 0)
	seenFonts := make(map[string]struct{})

	var text strings.Builder
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		for _, key := range page.Fonts() {
			name := strings.TrimSpace(page.Font(key).BaseFont())
			if name == "" {
				continue
			}
			if _, ok := seenFonts[name]; ok {
				continue
			}
			seenFonts[name] = struct{}{}
			fonts = append(fonts, name)
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug("skipping pdf page without extractable text", zap.Int("page", i), zap.Error(err))
			continue
		}

		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(strings.TrimSpace(pageText))
	}

	images, xrefFonts, err := inspectPDFObjects(data)
	if err != nil {
		e.logger.Warn("counting pdf images failed, assuming none", zap.Error(err))
	}

	if len(fonts) == 0 {
		fonts = xrefFonts
	}

	return &Document{
		Text: text.String(),
		Metadata: ats.Metadata{
			PageCount:    &pageCount,
			ImageCount:   images,
			RawFontNames: fonts,
		},
	}, nil
}

// inspectPDFObjects counts image XObjects per page and collects font base names
// straight from the cross-reference table.
func inspectPDFObjects(data []byte) (images int, fonts []string, err error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return 0, nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	if pdfCtx.Optimize != nil {
		for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
			images += len(pdfcpu.ImageObjNrs(pdfCtx, pageNr))
		}
	}

	xrefImages := 0
	seen := make(map[string]struct{})
	for _, entry := range pdfCtx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}

		switch obj := entry.Object.(type) {
		case types.StreamDict:
			if subtype := obj.NameEntry("Subtype"); subtype != nil && *subtype == "Image" {
				xrefImages++
			}
		case types.Dict:
			if typ := obj.Type(); typ == nil || *typ != "Font" {
				continue
			}
			base := obj.NameEntry("BaseFont")
			if base == nil || *base == "" {
				continue
			}
			if _, ok := seen[*base]; ok {
				continue
			}
			seen[*base] = struct{}{}
			fonts = append(fonts, *base)
		}
	}

	if images == 0 {
		images = xrefImages
	}

	return images, fonts, nil
}
