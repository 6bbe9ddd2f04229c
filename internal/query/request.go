// Package query implements Components B and C of LogCrafter: parsing a
// single-line parameterized query string into a Request, and evaluating
// that Request against log entries. Both halves are pure and stateless,
// grounded on the original query_parser.c's param/value grammar.
package query

import (
	"regexp"
	"strings"
	"time"
)

// Operator joins multiple keywords together.
type Operator int

const (
	// OperatorAND requires every keyword to match (the default).
	OperatorAND Operator = iota
	// OperatorOR requires any keyword to match.
	OperatorOR
)

// Request is a parsed, validated query. Every field is optional; absence
// means "no constraint". It implements logbuffer.Matcher.
type Request struct {
	Keyword         string
	HasKeyword      bool
	Keywords        []string
	KeywordOperator Operator
	Regex           *regexp.Regexp
	TimeFrom        int64
	HasTimeFrom     bool
	TimeTo          int64
	HasTimeTo       bool
}

// HasAnyFilter reports whether at least one predicate is set.
func (r *Request) HasAnyFilter() bool {
	return r.HasKeyword || len(r.Keywords) > 0 || r.Regex != nil || r.HasTimeFrom || r.HasTimeTo
}

// Match implements logbuffer.Matcher: it applies every present predicate
// in request order (keyword, keywords, regex, time_from, time_to),
// short-circuiting on the first miss, exactly as §4.A specifies.
func (r *Request) Match(message string, timestamp time.Time) bool {
	if r.HasKeyword && !strings.Contains(message, r.Keyword) {
		return false
	}

	if len(r.Keywords) > 0 {
		switch r.KeywordOperator {
		case OperatorOR:
			matched := false
			for _, kw := range r.Keywords {
				if strings.Contains(message, kw) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default: // OperatorAND
			for _, kw := range r.Keywords {
				if !strings.Contains(message, kw) {
					return false
				}
			}
		}
	}

	if r.Regex != nil && !r.Regex.MatchString(message) {
		return false
	}

	sec := timestamp.Unix()
	if r.HasTimeFrom && sec < r.TimeFrom {
		return false
	}
	if r.HasTimeTo && sec > r.TimeTo {
		return false
	}

	return true
}
