package ats

import (
	"regexp"
	"sort"
	"strings"
)

var (
	subsetPrefix = regexp.MustCompile(`(?i)^[a-z]{6}\+`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// styleMarkers are stripped from the end of a lowercased font name until none is left.
// A marker that ends with another one comes first, so "semibold" wins over "bold"
// and "psmt" over "mt".
var styleMarkers = []string{
	"extrabold", "ultrabold", "semibold", "demibold",
	"extralight", "ultralight", "semilight",
	"condensed", "oblique", "regular", "italic",
	"medium", "light", "black", "heavy", "thin",
	"psmt", "bold", "mt",
}

const markerSeparators = "-,_ "

// fontAliases maps compacted font names to their canonical family.
var fontAliases = map[string]string{
	"arial":               "arial",
	"arialmt":             "arial",
	"arialnarrow":         "arial",
	"helvetica":           "helvetica",
	"helveticaneue":       "helvetica",
	"timesnewroman":       "times new roman",
	"timesnewromanps":     "times new roman",
	"times":               "times new roman",
	"timesroman":          "times new roman",
	"calibri":             "calibri",
	"calibrilight":        "calibri",
	"cambria":             "cambria",
	"verdana":             "verdana",
	"roboto":              "roboto",
	"georgia":             "georgia",
	"garamond":            "garamond",
	"ebgaramond":          "garamond",
	"tahoma":              "tahoma",
	"trebuchetms":         "trebuchet ms",
	"lato":                "lato",
	"opensans":            "open sans",
	"segoeui":             "segoe ui",
	"bookantiqua":         "book antiqua",
	"comicsans":           "comic sans",
	"comicsansms":         "comic sans ms",
	"brushscript":         "brush script",
	"brushscriptstd":      "brush script",
	"papyrus":             "papyrus",
	"impact":              "impact",
	"curlzmt":             "curlz",
	"curlz":               "curlz",
	"jokerman":            "jokerman",
	"chiller":             "chiller",
	"lobster":             "lobster",
	"wingdings":           "wingdings",
	"symbol":              "symbol",
	"symbolmt":            "symbol",
	"couriernew":          "courier new",
	"couriernewps":        "courier new",
	"palatinolinotype":    "palatino",
	"centurygothic":       "century gothic",
	"franklingothic":      "franklin gothic",
	"franklingothicbook":  "franklin gothic",
	"franklingothicmediu": "franklin gothic",
}

// NormalizeFont reduces a raw embedded font name to a lowercase family name.
// It never fails: unknown names come back as a best-effort family string.
func NormalizeFont(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}

	name = subsetPrefix.ReplaceAllString(name, "")
	name = stripStyleMarkers(strings.ToLower(name))

	if alias, ok := fontAliases[compact(name)]; ok {
		return alias
	}

	if idx := strings.Index(name, "-"); idx >= 0 {
		name = name[:idx]
	}
	name = strings.TrimSuffix(strings.TrimSpace(name), "mt")
	name = whitespace.ReplaceAllString(name, " ")
	name = strings.Trim(name, markerSeparators)

	if alias, ok := fontAliases[compact(name)]; ok {
		return alias
	}

	return name
}

// NormalizeFonts normalizes every name and returns the sorted set of non-empty families.
func NormalizeFonts(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, r := range raw {
		name := NormalizeFont(r)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	sort.Strings(out)
	return out
}

func stripStyleMarkers(name string) string {
	for {
		trimmed := strings.TrimRight(name, markerSeparators)
		for _, marker := range styleMarkers {
			// keep at least one character of the family itself
			if len(trimmed) > len(marker) && strings.HasSuffix(trimmed, marker) {
				trimmed = strings.TrimSuffix(trimmed, marker)
				break
			}
		}
		trimmed = strings.TrimRight(trimmed, markerSeparators)
		if trimmed == name {
			return name
		}
		name = trimmed
	}
}

func compact(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(markerSeparators, r) {
			return -1
		}
		return r
	}, name)
}
