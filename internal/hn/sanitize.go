package hn

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans the HTML fragments carried in item text.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer builds a sanitizer on the UGC policy (p, a, i, pre, code...).
func NewSanitizer() *Sanitizer {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &Sanitizer{policy: p}
}

// Sanitize strips disallowed markup and trims surrounding whitespace.
func (s *Sanitizer) Sanitize(html string) string {
	if html == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(html))
}
