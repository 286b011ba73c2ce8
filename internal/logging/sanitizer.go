package logging

import (
	"regexp"
	"sync"
)

// Sanitizer redacts secrets from log text. Patterns match common
// credential shapes: API keys, bearer tokens, key=value secrets.
type Sanitizer struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
}

const redacted = "[REDACTED]"

// NewSanitizer builds a sanitizer with the default pattern set.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(api[_-]?key|apikey|token|secret|password|passwd|authorization)\s*[:=]\s*\S+`),
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]+=*`),
			regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
			regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
		},
	}
}

// AddPattern registers an extra redaction pattern.
func (s *Sanitizer) AddPattern(re *regexp.Regexp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = append(s.patterns, re)
}

// Sanitize redacts any matching substrings in text.
func (s *Sanitizer) Sanitize(text string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, re := range s.patterns {
		text = re.ReplaceAllString(text, redacted)
	}
	return text
}
