// Package security screens uploaded resumes before they reach the extractor and the LLMs.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultMaxUploadBytes is the upload limit used when none is configured.
const DefaultMaxUploadBytes = 2 * 1024 * 1024

// maxScreenedRunes bounds how much text LooksSuspicious inspects.
const maxScreenedRunes = 100_000

var (
	ErrNoFile       = errors.New("no file was uploaded")
	ErrBadExtension = errors.New("only pdf and docx files are accepted")
	ErrEmptyFile    = errors.New("uploaded file is empty")
	ErrTooLarge     = errors.New("uploaded file is too large")
)

var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
}

var suspiciousPatterns = compile(
	`<script\b`, `</script>`, `<iframe\b`, `onerror\s*=`, `onload\s*=`,
	`document\.cookie`, `eval\s*\(`, `fetch\s*\(`, `xmlhttprequest`,
	`import\s+os`, `subprocess\.popen`, `socket\.`, `<\?php`, `bash -c`,
	`powershell`, `base64,`, `rm -rf /`,
)

// AllowedFile reports whether the file name carries an accepted extension.
func AllowedFile(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	_, ok := allowedExtensions[ext]
	return ok
}

// ValidateUpload checks the file name and size of an upload.
// A non-positive maxBytes falls back to DefaultMaxUploadBytes.
func ValidateUpload(filename string, size int64, maxBytes int64) error {
	if strings.TrimSpace(filename) == "" {
		return ErrNoFile
	}
	if !AllowedFile(filename) {
		return ErrBadExtension
	}
	if size <= 0 {
		return ErrEmptyFile
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if size > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, maxBytes)
	}

	return nil
}

// LooksSuspicious reports whether extracted text carries script or shell injection markers.
func LooksSuspicious(text string) bool {
	if runes := []rune(text); len(runes) > maxScreenedRunes {
		text = string(runes[:maxScreenedRunes])
	}

	for _, p := range suspiciousPatterns {
		if p.MatchString(text) {
			return true
		}
	}

	return false
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}
