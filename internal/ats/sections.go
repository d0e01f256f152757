package ats

import (
	"regexp"
	"strings"
)

// Section is a canonical resume section name.
type Section string

const (
	SectionProfile    Section = "profile"
	SectionExperience Section = "experience"
	SectionEducation  Section = "education"
	SectionSkills     Section = "skills"
	SectionLanguages  Section = "languages"
)

// Sections lists the canonical sections in reporting order.
var Sections = []Section{
	SectionProfile,
	SectionExperience,
	SectionEducation,
	SectionSkills,
	SectionLanguages,
}

// sectionSynonyms holds bilingual (es/en) synonym expressions per section.
// Lists must stay disjoint across sections.
var sectionSynonyms = map[Section][]string{
	SectionProfile: {
		`perfil profesional`, `perfil`, `resumen profesional`, `resumen`,
		`objetivos?`, `objetivo profesional`, `sobre m[ií]`, `acerca de m[ií]`,
		`summary`, `professional summary`, `profile`, `objective`, `about me`,
	},
	SectionExperience: {
		`experiencia laboral`, `experiencia profesional`, `experiencia`,
		`trayectoria profesional`, `historial laboral`,
		`work experience`, `professional experience`, `experience`,
		`employment history`, `career history`, `work history`,
	},
	SectionEducation: {
		`educaci[oó]n`, `formaci[oó]n acad[eé]mica`, `formaci[oó]n`, `estudios`,
		`education`, `academic background`,
	},
	SectionSkills: {
		`habilidades`, `competencias`, `conocimientos`, `aptitudes`,
		`hard skills`, `soft skills`, `skills`, `technical skills`, `competencies`,
	},
	SectionLanguages: {
		`idiomas`, `lenguas`, `languages`,
	},
}

var sectionPatterns = compileSectionPatterns()

func compileSectionPatterns() map[Section][]*regexp.Regexp {
	compiled := make(map[Section][]*regexp.Regexp, len(sectionSynonyms))
	for section, synonyms := range sectionSynonyms {
		for _, synonym := range synonyms {
			compiled[section] = append(compiled[section], wholeWord(synonym))
		}
	}
	return compiled
}

// wholeWord wraps expr so it only matches between Unicode word boundaries.
// RE2's \b is ASCII-only and would break on words like "educación".
func wholeWord(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + expr + `)(?:$|[^\p{L}\p{N}_])`)
}

// DetectSections reports which canonical sections are mentioned in text.
// Both slices follow the order of Sections.
func DetectSections(text string) (present, missing []Section, count int) {
	text = strings.ToLower(text)

	present = make([]Section, 0, len(Sections))
	missing = make([]Section, 0, len(Sections))

	for _, section := range Sections {
		if matchesAny(sectionPatterns[section], text) {
			present = append(present, section)
			continue
		}
		missing = append(missing, section)
	}

	return present, missing, len(present)
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	if text == "" {
		return false
	}
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
