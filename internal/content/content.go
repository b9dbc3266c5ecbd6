package content

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Sanitize strips all HTML from server-delivered text. Message bodies and
// sender names come from other clients and are treated as untrusted even
// though they pass through our own backend.
func Sanitize(input string) string {
	return strings.TrimSpace(policy.Sanitize(input))
}

// Escape escapes special characters like "<" to become "&lt;".
// It matches the behavior of html/template and is safe for use in HTML attributes.
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}
