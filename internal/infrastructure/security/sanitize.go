// Package security provides HTML sanitization for upstream recipe content.
// Instruction markup comes from the public recipe API and is rendered as HTML,
// so it is scrubbed of scripts, event handlers, and disallowed tags first.
package security

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Sanitizer scrubs untrusted HTML fragments down to a small set of
// formatting tags
type Sanitizer struct {
	logger            *zap.Logger
	allowedTags       map[string]bool
	dangerousPatterns []*regexp.Regexp
	tagPattern        *regexp.Regexp
}

// NewSanitizer creates a sanitizer with the default recipe-instruction policy
func NewSanitizer(logger *zap.Logger) *Sanitizer {
	s := &Sanitizer{
		logger:      logger,
		allowedTags: make(map[string]bool),
		tagPattern:  regexp.MustCompile(`</?([a-zA-Z][a-zA-Z0-9]*)\b[^>]*>`),
	}

	// Instruction fragments only need simple formatting and list structure
	for _, tag := range []string{
		"p", "br", "b", "i", "strong", "em", "u",
		"ol", "ul", "li", "span", "div",
		"h1", "h2", "h3", "h4", "h5", "h6",
	} {
		s.allowedTags[tag] = true
	}

	for _, pattern := range []string{
		`(?i)<script[^>]*>[\s\S]*?</script>`,
		`(?i)<script[^>]*/?>`,
		`(?i)<style[^>]*>[\s\S]*?</style>`,
		`(?i)<(iframe|object|embed|form|link|meta)[^>]*>`,
		`(?i)\son\w+\s*=\s*"[^"]*"`,
		`(?i)\son\w+\s*=\s*'[^']*'`,
		`(?i)\son\w+\s*=\s*[^\s>]+`,
		`(?i)javascript\s*:`,
		`(?i)vbscript\s*:`,
		`(?i)data\s*:\s*text/html`,
	} {
		s.dangerousPatterns = append(s.dangerousPatterns, regexp.MustCompile(pattern))
	}

	return s
}

// SanitizeHTML removes dangerous content and disallowed tags from an HTML
// fragment, keeping the text and basic formatting
func (s *Sanitizer) SanitizeHTML(input string) string {
	if input == "" {
		return ""
	}

	cleaned := input
	for _, pattern := range s.dangerousPatterns {
		if pattern.MatchString(cleaned) {
			s.logger.Debug("Removed dangerous content from upstream HTML",
				zap.String("pattern", pattern.String()))
			cleaned = pattern.ReplaceAllString(cleaned, "")
		}
	}

	// Escape any tag not on the allow list; allowed tags lose their attributes
	cleaned = s.tagPattern.ReplaceAllStringFunc(cleaned, func(tag string) string {
		name := strings.ToLower(s.tagPattern.FindStringSubmatch(tag)[1])
		if !s.allowedTags[name] {
			return html.EscapeString(tag)
		}
		if strings.HasPrefix(tag, "</") {
			return fmt.Sprintf("</%s>", name)
		}
		if strings.HasSuffix(tag, "/>") {
			return fmt.Sprintf("<%s/>", name)
		}
		return fmt.Sprintf("<%s>", name)
	})

	return cleaned
}

// SafeHTML sanitizes an HTML fragment and marks the result renderable
func (s *Sanitizer) SafeHTML(input string) template.HTML {
	return template.HTML(s.SanitizeHTML(input))
}

// StripHTML removes all markup, returning plain text
func (s *Sanitizer) StripHTML(input string) string {
	stripped := s.tagPattern.ReplaceAllString(input, "")
	return html.UnescapeString(stripped)
}
