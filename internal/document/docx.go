package document

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/ats-checker/internal/ats"
)

const (
	docxDocumentPart  = "word/document.xml"
	docxStylesPart    = "word/styles.xml"
	docxThemePart     = "word/theme/theme1.xml"
	docxFontTablePart = "word/fontTable.xml"
	docxAppPart       = "docProps/app.xml"

	markupCompatibilityNS = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// Deflate expands roughly 1000:1, so parts are bounded after decompression.
const (
	maxDocxPartBytes = 16 << 20
	maxDocxTextBytes = 1 << 20
)

var (
	errNoDocumentPart = errors.New(docxDocumentPart + " not found in archive")
	// ErrPartTooLarge is returned for archive parts that decompress beyond the limit.
	ErrPartTooLarge = errors.New("docx part is too large")
)

// fontAttributes are the w:rFonts attributes that carry literal family names.
var fontAttributes = map[string]struct{}{
	"ascii":    {},
	"hAnsi":    {},
	"cs":       {},
	"eastAsia": {},
}

// themeFontAttributes are the w:rFonts attributes that point into the theme font scheme.
var themeFontAttributes = map[string]struct{}{
	"asciiTheme":    {},
	"hAnsiTheme":    {},
	"cstheme":       {},
	"eastAsiaTheme": {},
}

type docxStats struct {
	text      strings.Builder
	truncated bool
	tables    int
	images    int
	fonts     []string
	seen      map[string]struct{}
	// themeRefs keeps theme font references in first-seen order, e.g. "minorHAnsi".
	themeRefs []string
}

func (s *docxStats) addFont(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.fonts = append(s.fonts, name)
}

func (s *docxStats) addThemeRef(ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return
	}
	key := "theme:" + ref
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.themeRefs = append(s.themeRefs, ref)
}

func (s *docxStats) writeText(b []byte) {
	if room := maxDocxTextBytes - s.text.Len(); len(b) > room {
		s.truncated = true
		b = b[:max(room, 0)]
	}
	s.text.Write(b)
}

func (s *docxStats) writeByte(c byte) {
	if s.text.Len() >= maxDocxTextBytes {
		s.truncated = true
		return
	}
	s.text.WriteByte(c)
}

func (e *Extractor) extractDOCX(ctx context.Context, data []byte) (*Document, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	parts := make(map[string]*zip.File, len(archive.File))
	for _, f := range archive.File {
		parts[f.Name] = f
	}

	documentPart, ok := parts[docxDocumentPart]
	if !ok {
		return nil, errNoDocumentPart
	}

	stats := &docxStats{seen: make(map[string]struct{})}

	if err := walkPart(documentPart, func(dec *xml.Decoder) error {
		return stats.readDocument(ctx, dec)
	}); err != nil {
		return nil, fmt.Errorf("read %s: %w", docxDocumentPart, err)
	}
	if stats.truncated {
		e.logger.Warn("docx text truncated", zap.Int("limit_bytes", maxDocxTextBytes))
	}

	if stylesPart, ok := parts[docxStylesPart]; ok {
		if err := walkPart(stylesPart, stats.readStyles); err != nil {
			e.logger.Debug("ignoring unreadable docx styles", zap.Error(err))
		}
	}

	if len(stats.themeRefs) > 0 {
		if themePart, ok := parts[docxThemePart]; ok {
			scheme, err := readThemeFonts(themePart)
			if err != nil {
				e.logger.Debug("ignoring unreadable docx theme", zap.Error(err))
			}
			for _, ref := range stats.themeRefs {
				stats.addFont(scheme.resolve(ref))
			}
		}
	}

	// Without any run, style or theme font the font table is the last source.
	if len(stats.fonts) == 0 {
		if tablePart, ok := parts[docxFontTablePart]; ok {
			if err := walkPart(tablePart, stats.readFontTable); err != nil {
				e.logger.Debug("ignoring unreadable docx font table", zap.Error(err))
			}
		}
	}

	meta := ats.Metadata{
		ImageCount:   stats.images,
		TableCount:   stats.tables,
		RawFontNames: stats.fonts,
	}

	if appPart, ok := parts[docxAppPart]; ok {
		pages, err := readAppPages(appPart)
		if err != nil {
			e.logger.Debug("ignoring unreadable docx app properties", zap.Error(err))
		} else if pages > 0 {
			meta.PageCount = &pages
		}
	}

	return &Document{
		Text:     strings.TrimSpace(stats.text.String()),
		Metadata: meta,
	}, nil
}

// walkPart decodes one archive part, refusing anything that inflates past maxDocxPartBytes.
func walkPart(f *zip.File, fn func(dec *xml.Decoder) error) error {
	if f.UncompressedSize64 > maxDocxPartBytes {
		return fmt.Errorf("%w: %s declares %d bytes", ErrPartTooLarge, f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return fn(xml.NewDecoder(&cappedReader{r: rc, left: maxDocxPartBytes, name: f.Name}))
}

// cappedReader fails once more than left bytes were read, whatever the zip header claims.
type cappedReader struct {
	r    io.Reader
	left int64
	name string
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.left <= 0 {
		return 0, fmt.Errorf("%w: %s inflates past %d bytes", ErrPartTooLarge, c.name, maxDocxPartBytes)
	}
	if int64(len(p)) > c.left {
		p = p[:c.left]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	return n, err
}

func isFallback(name xml.Name) bool {
	return name.Local == "Fallback" && (name.Space == markupCompatibilityNS || name.Space == "mc")
}

func (s *docxStats) readDocument(ctx context.Context, dec *xml.Decoder) error {
	inText := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			// mc:Fallback repeats the content of mc:Choice for older readers.
			if isFallback(t.Name) {
				if err := dec.Skip(); err != nil {
					return err
				}
				continue
			}

			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				s.writeByte('\t')
			case "br", "cr":
				s.writeByte('\n')
			case "tbl":
				s.tables++
			case "drawing", "pict":
				s.images++
			case "rFonts":
				s.readFontAttrs(t)
			}
		case xml.CharData:
			if inText {
				s.writeText(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				s.writeByte('\n')
			}
		}
	}
}

func (s *docxStats) readStyles(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "rFonts" {
			s.readFontAttrs(start)
		}
	}
}

func (s *docxStats) readFontTable(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "font" {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "name" {
				s.addFont(attr.Value)
			}
		}
	}
}

func (s *docxStats) readFontAttrs(el xml.StartElement) {
	for _, attr := range el.Attr {
		if _, ok := fontAttributes[attr.Name.Local]; ok {
			s.addFont(attr.Value)
		}
		if _, ok := themeFontAttributes[attr.Name.Local]; ok {
			s.addThemeRef(attr.Value)
		}
	}
}

// themeFonts holds the typefaces of the a:majorFont and a:minorFont schemes.
type themeFonts struct {
	major, minor scriptFonts
}

type scriptFonts struct {
	latin, eastAsia, complex string
}

// resolve maps a theme reference such as "minorHAnsi" or "majorBidi" to a typeface.
func (t themeFonts) resolve(ref string) string {
	var scheme scriptFonts
	switch {
	case strings.HasPrefix(ref, "major"):
		scheme = t.major
	case strings.HasPrefix(ref, "minor"):
		scheme = t.minor
	default:
		return ""
	}

	switch {
	case strings.HasSuffix(ref, "EastAsia") && scheme.eastAsia != "":
		return scheme.eastAsia
	case strings.HasSuffix(ref, "Bidi") && scheme.complex != "":
		return scheme.complex
	default:
		return scheme.latin
	}
}

func readThemeFonts(f *zip.File) (themeFonts, error) {
	var fonts themeFonts
	err := walkPart(f, func(dec *xml.Decoder) error {
		var current *scriptFonts
		for {
			tok, err := dec.Token()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			switch t := tok.(type) {
			case xml.StartElement:
				switch t.Name.Local {
				case "majorFont":
					current = &fonts.major
				case "minorFont":
					current = &fonts.minor
				case "latin", "ea", "cs":
					if current != nil {
						setScriptFont(current, t)
					}
				}
			case xml.EndElement:
				if t.Name.Local == "majorFont" || t.Name.Local == "minorFont" {
					current = nil
				}
			}
		}
	})
	return fonts, err
}

func setScriptFont(dst *scriptFonts, el xml.StartElement) {
	var typeface string
	for _, attr := range el.Attr {
		if attr.Name.Local == "typeface" {
			typeface = strings.TrimSpace(attr.Value)
		}
	}

	switch el.Name.Local {
	case "latin":
		dst.latin = typeface
	case "ea":
		dst.eastAsia = typeface
	case "cs":
		dst.complex = typeface
	}
}

func readAppPages(f *zip.File) (int, error) {
	var props struct {
		Pages string `xml:"Pages"`
	}

	if err := walkPart(f, func(dec *xml.Decoder) error {
		return dec.Decode(&props)
	}); err != nil {
		return 0, err
	}

	value := strings.TrimSpace(props.Pages)
	if value == "" {
		return 0, nil
	}

	return strconv.Atoi(value)
}
