// Package ats scores how machine-readable a resume is for applicant tracking systems.
//
// The score is a fixed nine-item checklist: five canonical sections, no images,
// no tables, an ATS-safe font and a length of at most two pages. Every item
// weighs the same and the score is round(100 * passed / 9).
package ats

import (
	"math"
	"regexp"
	"strings"

	"github.com/spigell/ats-checker/internal/language"
)

// Format is the document format the text was extracted from.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

const (
	wordsPerPage = 600
	maxPages     = 2
)

// Check is one item of the compliance checklist.
type Check string

const (
	CheckProfile        Check = "section_profile"
	CheckExperience     Check = "section_experience"
	CheckEducation      Check = "section_education"
	CheckSkills         Check = "section_skills"
	CheckLanguages      Check = "section_languages"
	CheckNoImages       Check = "no_images"
	CheckNoTables       Check = "no_tables"
	CheckSafeTypography Check = "safe_typography"
	CheckPages          Check = "pages_ok"
)

// Checks lists every checklist item in reporting order.
var Checks = []Check{
	CheckProfile,
	CheckExperience,
	CheckEducation,
	CheckSkills,
	CheckLanguages,
	CheckNoImages,
	CheckNoTables,
	CheckSafeTypography,
	CheckPages,
}

var sectionChecks = map[Section]Check{
	SectionProfile:    CheckProfile,
	SectionExperience: CheckExperience,
	SectionEducation:  CheckEducation,
	SectionSkills:     CheckSkills,
	SectionLanguages:  CheckLanguages,
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Metadata is what the document extractor knows about the file.
type Metadata struct {
	// PageCount is authoritative when set and non-negative; otherwise pages are estimated.
	PageCount    *int     `json:"page_count,omitempty"`
	ImageCount   int      `json:"image_count"`
	TableCount   int      `json:"table_count"`
	RawFontNames []string `json:"raw_font_names"`
}

// Result is the outcome of a compliance evaluation.
type Result struct {
	Score           int            `json:"score"`
	SectionsPresent []Section      `json:"sections_present"`
	SectionsMissing []Section      `json:"sections_missing"`
	SectionsFound   int            `json:"sections_found"`
	Words           int            `json:"words"`
	Pages           int            `json:"pages"`
	PagesEstimated  bool           `json:"pages_estimated"`
	PagesOK         bool           `json:"pages_ok"`
	Images          int            `json:"images"`
	Tables          int            `json:"tables"`
	NoImages        bool           `json:"no_images"`
	NoTables        bool           `json:"no_tables"`
	Fonts           []string       `json:"fonts"`
	BadFonts        []string       `json:"bad_fonts,omitempty"`
	SafeTypography  Typography     `json:"safe_typography"`
	Language        string         `json:"language"`
	LanguageOK      bool           `json:"language_ok"`
	Format          Format         `json:"format"`
	Checks          map[Check]bool `json:"checks"`
}

// Passed returns the number of satisfied checklist items.
func (r *Result) Passed() int {
	return countTrue(r.Checks)
}

// EvaluateCompliance scores a resume and returns the score next to the full details.
func EvaluateCompliance(text, languageCode string, format Format, meta Metadata) (int, *Result) {
	result := Evaluate(text, languageCode, format, meta)
	return result.Score, result
}

// Evaluate runs the checklist over the extracted text and metadata.
// It is a pure function and safe for concurrent use.
func Evaluate(text, languageCode string, format Format, meta Metadata) *Result {
	lowered := strings.ToLower(text)
	words := len(wordPattern.FindAllStringIndex(lowered, -1))

	present, missing, found := DetectSections(lowered)

	pages, estimated := resolvePages(meta.PageCount, words)

	images := nonNegative(meta.ImageCount)
	tables := nonNegative(meta.TableCount)

	fonts := NormalizeFonts(meta.RawFontNames)
	typography := ClassifyTypography(fonts)

	lang := strings.ToLower(strings.TrimSpace(languageCode))

	result := &Result{
		SectionsPresent: present,
		SectionsMissing: missing,
		SectionsFound:   found,
		Words:           words,
		Pages:           pages,
		PagesEstimated:  estimated,
		PagesOK:         pages <= maxPages,
		Images:          images,
		Tables:          tables,
		NoImages:        images == 0,
		NoTables:        tables == 0,
		Fonts:           fonts,
		BadFonts:        badFamilies(fonts),
		SafeTypography:  typography,
		Language:        lang,
		LanguageOK:      language.Supported(lang),
		Format:          format,
	}

	result.Checks = buildChecks(result)
	result.Score = scoreFromChecks(result.Checks)

	return result
}

// EstimatePages approximates the page count from the number of words.
// Halves round to the nearest even number, so 900 words make 2 pages and 1500 words make 2 pages.
func EstimatePages(words int) int {
	pages := int(math.RoundToEven(float64(words) / wordsPerPage))
	if pages < 1 {
		return 1
	}
	return pages
}

func resolvePages(pageCount *int, words int) (int, bool) {
	if pageCount != nil && *pageCount >= 0 {
		return *pageCount, false
	}
	return EstimatePages(words), true
}

func buildChecks(r *Result) map[Check]bool {
	checks := make(map[Check]bool, len(Checks))
	for _, section := range Sections {
		checks[sectionChecks[section]] = false
	}
	for _, section := range r.SectionsPresent {
		checks[sectionChecks[section]] = true
	}

	checks[CheckNoImages] = r.NoImages
	checks[CheckNoTables] = r.NoTables
	// indeterminate typography does not pass
	checks[CheckSafeTypography] = r.SafeTypography == TypographySafe
	checks[CheckPages] = r.PagesOK

	return checks
}

// scoreFromChecks is the only way a score is produced.
// 100*k/9 never lands on .5, so half-up rounding is unambiguous.
func scoreFromChecks(checks map[Check]bool) int {
	score := int(math.Round(100 * float64(countTrue(checks)) / float64(len(Checks))))
	return min(max(score, 0), 100)
}

func countTrue(checks map[Check]bool) int {
	n := 0
	for _, check := range Checks {
		if checks[check] {
			n++
		}
	}
	return n
}

func badFamilies(fonts []string) []string {
	var bad []string
	for _, f := range fonts {
		if IsBadFont(f) {
			bad = append(bad, f)
		}
	}
	return bad
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
