package language

import "testing"

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "empty defaults to english",
			input:  "   ",
			expect: English,
		},
		{
			name:   "spanish resume",
			input:  "Ingeniera de software con experiencia laboral en el desarrollo de aplicaciones web y servicios para empresas de la región. Me gusta trabajar en equipo y aprender nuevas tecnologías.",
			expect: Spanish,
		},
		{
			name:   "english resume",
			input:  "Software engineer with work experience building web applications and services for companies in the region. I enjoy working in teams and learning new technologies.",
			expect: English,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"es", "EN", " en "} {
		if !Supported(code) {
			t.Fatalf("expected %q to be supported", code)
		}
	}
	for _, code := range []string{"", "pt", "de"} {
		if Supported(code) {
			t.Fatalf("expected %q to be unsupported", code)
		}
	}
}
