// Package htmlsanitize cleans user-supplied profile text before it is stored.
//
// Short fields (phone, profession, address, interests) are reduced to plain
// text. Long-form fields (bio, about) keep basic formatting. Link fields must
// be absolute http(s) URLs.
package htmlsanitize

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	richPolicy   = newRichPolicy()
)

// newRichPolicy allows inline formatting, lists, quotes and safe links.
func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "b", "em", "i", "u", "s", "ul", "ol", "li", "blockquote", "code", "pre")
	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Text strips every tag from s and trims the result.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(strictPolicy.Sanitize(s))
}

// Rich removes dangerous markup from s but keeps basic formatting.
func Rich(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// URL returns s trimmed when it is an absolute http or https URL with a host,
// and "" otherwise.
func URL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String()
	}
	return ""
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}
