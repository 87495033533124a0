package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips every HTML tag from user supplied text (habit names, notes)
// and trims surrounding whitespace. Entities escaped by the policy are decoded
// back so the stored value stays plain text.
func Sanitize(input string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(input)))
}
