package ats

import (
	"encoding/json"
	"fmt"
)

// Typography is the tri-state verdict on the fonts embedded in a document.
type Typography int

const (
	// TypographyIndeterminate means the extractor reported no usable font data.
	TypographyIndeterminate Typography = iota
	// TypographySafe means at least one ATS-safe family was found.
	TypographySafe
	// TypographyUnsafe means fonts were found but none of them is ATS-safe.
	TypographyUnsafe
)

var typographyNames = map[Typography]string{
	TypographyIndeterminate: "indeterminate",
	TypographySafe:          "safe",
	TypographyUnsafe:        "unsafe",
}

func (t Typography) String() string {
	if name, ok := typographyNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Typography(%d)", int(t))
}

func (t Typography) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Typography) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for value, name := range typographyNames {
		if name == s {
			*t = value
			return nil
		}
	}
	return fmt.Errorf("unknown typography %q", s)
}

var goodFonts = setOf(
	"arial", "helvetica", "calibri", "verdana", "roboto",
	"times new roman", "georgia", "cambria", "garamond", "tahoma",
	"trebuchet ms", "lato", "open sans", "segoe ui", "book antiqua",
)

var badFonts = setOf(
	"comic sans", "comic sans ms", "papyrus", "brush script", "brush script mt",
	"impact", "curlz", "jokerman", "chiller", "lobster", "wingdings", "symbol",
)

// IsGoodFont reports whether a normalized family is on the ATS-safe list.
func IsGoodFont(family string) bool {
	_, ok := goodFonts[family]
	return ok
}

// IsBadFont reports whether a normalized family is on the known-bad list.
func IsBadFont(family string) bool {
	_, ok := badFonts[family]
	return ok
}

// ClassifyTypography decides the typography verdict for already normalized families.
// Families on neither list count as unsafe.
func ClassifyTypography(families []string) Typography {
	if len(families) == 0 {
		return TypographyIndeterminate
	}

	for _, family := range families {
		if IsGoodFont(family) {
			return TypographySafe
		}
	}

	return TypographyUnsafe
}

func setOf(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
