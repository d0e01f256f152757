package ats

import (
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const allSectionsEN = "Professional Summary\nWork Experience\nEducation\nSkills\nLanguages\n"

func intPtr(v int) *int { return &v }

func TestEvaluateAllChecksPass(t *testing.T) {
	t.Parallel()

	result := Evaluate(allSectionsEN, "en", FormatPDF, Metadata{
		PageCount:    intPtr(1),
		RawFontNames: []string{"ArialMT"},
	})

	if result.Score != 100 {
		t.Fatalf("expected score 100, got %d (checks: %v)", result.Score, result.Checks)
	}
	if result.Passed() != len(Checks) {
		t.Fatalf("expected all %d checks to pass, got %d", len(Checks), result.Passed())
	}
	if result.SafeTypography != TypographySafe {
		t.Fatalf("expected safe typography, got %s", result.SafeTypography)
	}
	if result.PagesEstimated {
		t.Fatal("expected authoritative page count to be used")
	}
}

func TestEvaluateEmptyText(t *testing.T) {
	t.Parallel()

	result := Evaluate("", "en", FormatDOCX, Metadata{RawFontNames: []string{}})

	if result.Score != 33 {
		t.Fatalf("expected score 33, got %d", result.Score)
	}
	if result.SectionsFound != 0 {
		t.Fatalf("expected no sections, got %d", result.SectionsFound)
	}
	if result.Pages != 1 || !result.PagesEstimated || !result.PagesOK {
		t.Fatalf("expected one estimated page, got pages=%d estimated=%t ok=%t", result.Pages, result.PagesEstimated, result.PagesOK)
	}
	if !result.NoImages || !result.NoTables {
		t.Fatalf("expected no images and no tables, got %+v", result)
	}
	if result.SafeTypography != TypographyIndeterminate {
		t.Fatalf("expected indeterminate typography, got %s", result.SafeTypography)
	}
	if result.Checks[CheckSafeTypography] {
		t.Fatal("indeterminate typography must not pass the typography check")
	}
}

func TestEvaluateLongDocumentWithImagesAndTables(t *testing.T) {
	t.Parallel()

	// seven heading words plus filler make 1800 words, three estimated pages
	text := allSectionsEN + strings.Repeat("lorem ", 1793)

	result := Evaluate(text, "en", FormatDOCX, Metadata{
		ImageCount:   2,
		TableCount:   1,
		RawFontNames: []string{"FancyDisplay-Heavy"},
	})

	if result.Words != 1800 {
		t.Fatalf("expected 1800 words, got %d", result.Words)
	}
	if result.Pages != 3 || result.PagesOK {
		t.Fatalf("expected 3 pages failing the page check, got %d", result.Pages)
	}
	if result.SafeTypography != TypographyUnsafe {
		t.Fatalf("expected unsafe typography, got %s", result.SafeTypography)
	}
	if result.Passed() != 5 {
		t.Fatalf("expected 5 passed checks, got %d", result.Passed())
	}
	if result.Score != 56 {
		t.Fatalf("expected score 56, got %d", result.Score)
	}
}

func TestEvaluateReportsBadFonts(t *testing.T) {
	t.Parallel()

	result := Evaluate(allSectionsEN, "es", FormatPDF, Metadata{
		PageCount:    intPtr(2),
		RawFontNames: []string{"ABCDEF+ComicSansMS-Bold", "Papyrus"},
	})

	if result.SafeTypography != TypographyUnsafe {
		t.Fatalf("expected unsafe typography, got %s", result.SafeTypography)
	}
	if diff := cmp.Diff([]string{"comic sans ms", "papyrus"}, result.BadFonts); diff != "" {
		t.Fatalf("unexpected bad fonts (-want +got):\n%s", diff)
	}
	if result.Score != 89 {
		t.Fatalf("expected score 89, got %d", result.Score)
	}
}

func TestEvaluatePageCountFallbacks(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("palabra ", 1200)

	tests := []struct {
		name      string
		pageCount *int
		pages     int
		estimated bool
	}{
		{name: "missing page count is estimated", pageCount: nil, pages: 2, estimated: true},
		{name: "negative page count is estimated", pageCount: intPtr(-1), pages: 2, estimated: true},
		{name: "authoritative page count wins", pageCount: intPtr(4), pages: 4, estimated: false},
		{name: "zero is a valid page count", pageCount: intPtr(0), pages: 0, estimated: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Evaluate(text, "es", FormatPDF, Metadata{PageCount: tt.pageCount})
			if result.Pages != tt.pages || result.PagesEstimated != tt.estimated {
				t.Fatalf("expected pages=%d estimated=%t, got pages=%d estimated=%t",
					tt.pages, tt.estimated, result.Pages, result.PagesEstimated)
			}
		})
	}
}

func TestEvaluateClampsNegativeCounts(t *testing.T) {
	t.Parallel()

	result := Evaluate("", "", FormatPDF, Metadata{ImageCount: -3, TableCount: -1})
	if result.Images != 0 || result.Tables != 0 || !result.NoImages || !result.NoTables {
		t.Fatalf("expected negative counts to be treated as zero, got images=%d tables=%d", result.Images, result.Tables)
	}
}

func TestEvaluateLanguageIsInformational(t *testing.T) {
	t.Parallel()

	meta := Metadata{PageCount: intPtr(1), RawFontNames: []string{"Calibri"}}
	english := Evaluate(allSectionsEN, "en", FormatPDF, meta)
	german := Evaluate(allSectionsEN, "DE", FormatPDF, meta)

	if english.Score != german.Score {
		t.Fatalf("language must not affect the score: %d vs %d", english.Score, german.Score)
	}
	if german.LanguageOK || german.Language != "de" {
		t.Fatalf("expected unsupported language to be reported, got %q ok=%t", german.Language, german.LanguageOK)
	}
	if !english.LanguageOK {
		t.Fatal("expected english to be a supported language")
	}
	if spanish := Evaluate(allSectionsEN, " ES ", FormatPDF, meta); !spanish.LanguageOK || spanish.Language != "es" {
		t.Fatalf("expected spanish to be supported, got %q ok=%t", spanish.Language, spanish.LanguageOK)
	}
}

func TestEstimatePages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		words int
		pages int
	}{
		{words: 0, pages: 1},
		{words: 250, pages: 1},
		{words: 900, pages: 2},
		{words: 1200, pages: 2},
		{words: 1500, pages: 2},
		{words: 1800, pages: 3},
	}

	for _, tt := range tests {
		if got := EstimatePages(tt.words); got != tt.pages {
			t.Fatalf("EstimatePages(%d): expected %d, got %d", tt.words, tt.pages, got)
		}
	}
}

func TestScoreFromChecksMatchesFormula(t *testing.T) {
	t.Parallel()

	for k := 0; k <= len(Checks); k++ {
		checks := make(map[Check]bool, len(Checks))
		for i, check := range Checks {
			checks[check] = i < k
		}

		expect := int(math.Round(100 * float64(k) / 9))
		got := scoreFromChecks(checks)
		if got != expect {
			t.Fatalf("k=%d: expected %d, got %d", k, expect, got)
		}
		if got < 0 || got > 100 {
			t.Fatalf("k=%d: score %d out of range", k, got)
		}
	}
}

func TestEvaluateChecksDriveScore(t *testing.T) {
	t.Parallel()

	inputs := []struct {
		text string
		meta Metadata
	}{
		{text: "", meta: Metadata{}},
		{text: allSectionsEN, meta: Metadata{ImageCount: 1}},
		{text: "Perfil\nHabilidades", meta: Metadata{TableCount: 4, RawFontNames: []string{"Verdana"}}},
		{text: strings.Repeat("x ", 5000), meta: Metadata{RawFontNames: []string{"Impact"}}},
	}

	for _, in := range inputs {
		result := Evaluate(in.text, "es", FormatPDF, in.meta)
		if len(result.Checks) != len(Checks) {
			t.Fatalf("expected %d checks, got %d", len(Checks), len(result.Checks))
		}
		expect := int(math.Round(100 * float64(result.Passed()) / 9))
		if result.Score != expect {
			t.Fatalf("score %d does not follow checks (%d passed)", result.Score, result.Passed())
		}
	}
}

func TestEvaluateIsIdempotentAndConcurrencySafe(t *testing.T) {
	t.Parallel()

	meta := Metadata{PageCount: intPtr(2), ImageCount: 1, RawFontNames: []string{"ABCDEE+Arial-BoldMT", "Calibri"}}
	_, first := EvaluateCompliance(allSectionsEN, "en", FormatPDF, meta)

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = EvaluateCompliance(allSectionsEN, "en", FormatPDF, meta)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if diff := cmp.Diff(first, r); diff != "" {
			t.Fatalf("evaluation is not deterministic (-first +got):\n%s", diff)
		}
	}
}
