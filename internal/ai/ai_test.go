package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	vendor string
	text   string
	err    error
	calls  int
	last   Request
}

func (s *stubGenerator) GenerateFeedback(_ context.Context, req Request) (string, error) {
	s.calls++
	s.last = req
	return s.text, s.err
}

func (s *stubGenerator) Vendor() string { return s.vendor }
func (s *stubGenerator) Model() string  { return s.vendor + "-model" }

func TestExtractScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   int
		wantOK bool
	}{
		{name: "bare percentage first line", input: "75%\n### Analysis for candidate", want: 75, wantOK: true},
		{name: "match score label", input: "Match score: 82 overall", want: 82, wantOK: true},
		{name: "spanish puntuacion", input: "Puntuación final: 64", want: 64, wantOK: true},
		{name: "score label", input: "Overall score - 91", want: 91, wantOK: true},
		{name: "spanish coincidencia", input: "Coincidencia: 58%", want: 58, wantOK: true},
		{name: "out of hundred", input: "I would rate this 77 / 100.", want: 77, wantOK: true},
		{name: "hundred percent", input: "100%", want: 100, wantOK: true},
		{name: "bare number fallback", input: "Roughly 45 points", want: 45, wantOK: true},
		{name: "over range percentage ignored", input: "250% growth", wantOK: false},
		{name: "empty", input: "   ", wantOK: false},
		{name: "no digits", input: "Great profile", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractScore(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (score %d)", ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestCleanFeedback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "drops percentage line", input: "75%\n\n**Strengths**", want: "**Strengths**"},
		{name: "drops english title", input: "Analysis for Ana\n- good", want: "- good"},
		{name: "drops spanish title", input: "Análisis para Ana\n- bien", want: "- bien"},
		{name: "keeps regular first line", input: "Strong backend profile\n- Go", want: "Strong backend profile\n- Go"},
		{name: "percentage with words is kept", input: "75% match\nrest", want: "75% match\nrest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CleanFeedback(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	t.Parallel()

	html, err := RenderMarkdown("**Strengths**\n- Go\n\n<script>alert(1)</script>\n\n[site](javascript:alert(1))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(html, "<strong>Strengths</strong>") {
		t.Fatalf("expected bold text, got %s", html)
	}
	if !strings.Contains(html, "<li>Go</li>") {
		t.Fatalf("expected list item, got %s", html)
	}
	if strings.Contains(html, "<script") || strings.Contains(html, "javascript:") {
		t.Fatalf("expected unsafe markup to be removed, got %s", html)
	}
}

func TestRenderMarkdownHardWraps(t *testing.T) {
	t.Parallel()

	html, err := RenderMarkdown("line one\nline two")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<br") {
		t.Fatalf("expected hard wrap, got %s", html)
	}
}

func TestDisclaimer(t *testing.T) {
	t.Parallel()

	if !strings.HasPrefix(Disclaimer("es"), "Nota:") {
		t.Fatalf("unexpected spanish disclaimer: %s", Disclaimer("es"))
	}
	if !strings.HasPrefix(Disclaimer("en"), "Note:") {
		t.Fatalf("unexpected english disclaimer: %s", Disclaimer("en"))
	}
	if Disclaimer("fr") != Disclaimer("en") {
		t.Fatal("expected unknown language to fall back to english")
	}
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	p := BuildPrompt(Request{Resume: "CV body", JobDescription: "JD body", Language: "es"})
	if !strings.Contains(p.System, "candidato/a") {
		t.Fatalf("expected neutral spanish name, got %s", p.System)
	}
	if strings.Contains(p.System, "{{NAME}}") {
		t.Fatal("expected placeholder to be replaced")
	}
	if p.Input != "Resume (CV):\nCV body\n\nJob Description:\nJD body\n" {
		t.Fatalf("unexpected input: %q", p.Input)
	}

	p = BuildPrompt(Request{Language: "en", Name: " Ana "})
	if !strings.Contains(p.System, "Analysis for Ana") {
		t.Fatalf("expected name in english prompt, got %s", p.System)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, " openai ": ModeOpenAI, "gemini": ModeGemini} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}

	if _, err := ParseMode("claude"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSelectorFallsBackToGemini(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	openai := &stubGenerator{vendor: "openai", err: errors.New("boom")}
	gemini := &stubGenerator{vendor: "gemini", text: "80%\nfine"}

	fb, err := NewSelector(ModeAuto, openai, gemini, zap.New(core)).Generate(context.Background(), Request{Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.Vendor != "gemini" || fb.Model != "gemini-model" || fb.Text != "80%\nfine" {
		t.Fatalf("unexpected feedback: %+v", fb)
	}
	if openai.calls != 1 || gemini.calls != 1 {
		t.Fatalf("unexpected calls: openai=%d gemini=%d", openai.calls, gemini.calls)
	}
	if logs.FilterMessage("feedback generation failed").Len() != 1 {
		t.Fatalf("expected failure to be logged, got %v", logs.All())
	}
}

func TestSelectorModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mode       Mode
		openai     *stubGenerator
		gemini     *stubGenerator
		wantVendor string
		wantErr    bool
	}{
		{name: "auto prefers openai", mode: ModeAuto, openai: &stubGenerator{vendor: "openai", text: "ok"}, gemini: &stubGenerator{vendor: "gemini", text: "ok"}, wantVendor: "openai"},
		{name: "auto without openai", mode: ModeAuto, gemini: &stubGenerator{vendor: "gemini", text: "ok"}, wantVendor: "gemini"},
		{name: "gemini only", mode: ModeGemini, openai: &stubGenerator{vendor: "openai", text: "ok"}, gemini: &stubGenerator{vendor: "gemini", text: "ok"}, wantVendor: "gemini"},
		{name: "openai only does not fall back", mode: ModeOpenAI, openai: &stubGenerator{vendor: "openai", err: errors.New("down")}, gemini: &stubGenerator{vendor: "gemini", text: "ok"}, wantErr: true},
		{name: "empty text is a failure", mode: ModeAuto, openai: &stubGenerator{vendor: "openai", text: "  "}, gemini: &stubGenerator{vendor: "gemini", text: ""}, wantErr: true},
		{name: "nothing configured", mode: ModeAuto, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var openai, gemini FeedbackGenerator
			if tt.openai != nil {
				openai = tt.openai
			}
			if tt.gemini != nil {
				gemini = tt.gemini
			}

			fb, err := NewSelector(tt.mode, openai, gemini, nil).Generate(context.Background(), Request{})
			if tt.wantErr {
				if !errors.Is(err, ErrNoFeedback) {
					t.Fatalf("expected ErrNoFeedback, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if fb.Vendor != tt.wantVendor {
				t.Fatalf("expected vendor %s, got %s", tt.wantVendor, fb.Vendor)
			}
		})
	}
}

func TestSelectorStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	openai := &stubGenerator{vendor: "openai", err: context.Canceled}
	gemini := &stubGenerator{vendor: "gemini", text: "ok"}

	_, err := NewSelector(ModeAuto, openai, gemini, nil).Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if gemini.calls != 0 {
		t.Fatal("expected fallback to be skipped after cancellation")
	}
}
