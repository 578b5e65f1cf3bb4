package events

import (
	"regexp"
	"strings"
)

// Redactor masks sensitive fragments of context strings such as the active
// application name, which some apps extend with document or account names.
//
// The zero value is a no-op redactor.
type Redactor struct {
	patterns []*regexp.Regexp
}

var namedPatterns = map[string]string{
	"email": `(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
	"cc16":  `\b(?:\d[ -]?){16}\b`,
	"jwt":   `eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9._-]+\.[A-Za-z0-9._-]+`,
}

// NewRedactor compiles the supplied expressions. The names "email", "cc16"
// and "jwt" select built-in expressions.
func NewRedactor(expressions []string) (Redactor, error) {
	patterns := make([]*regexp.Regexp, 0, len(expressions))

	for _, expr := range expressions {
		trimmed := strings.TrimSpace(expr)
		if trimmed == "" {
			continue
		}

		candidate := trimmed
		if mapped, ok := namedPatterns[strings.ToLower(trimmed)]; ok {
			candidate = mapped
		}

		rx, err := regexp.Compile(candidate)
		if err != nil {
			return Redactor{}, err
		}
		patterns = append(patterns, rx)
	}

	return Redactor{patterns: patterns}, nil
}

// Enabled reports whether any pattern is configured.
func (r Redactor) Enabled() bool {
	return len(r.patterns) > 0
}

// ApplyString redacts sensitive content from a string.
func (r Redactor) ApplyString(input string) string {
	if len(r.patterns) == 0 {
		return input
	}

	redacted := input
	for _, rx := range r.patterns {
		redacted = rx.ReplaceAllString(redacted, "[REDACTED]")
	}
	return redacted
}
