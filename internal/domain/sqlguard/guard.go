// Package sqlguard decides, by text inspection only, whether model-generated
// SQL is safe to execute. There is deliberately no SQL parser here: the model
// may produce dialect-specific syntax the guard must not need to understand
// beyond its first keyword and forbidden terms.
package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Guard validates candidate queries against an allowed-statement prefix list
// and a forbidden-keyword list. A Guard is immutable after construction and
// safe for concurrent use.
type Guard struct {
	allowedStatements []string
	forbiddenKeywords []string
	keywordPatterns   []*regexp.Regexp
}

// New creates a Guard. Allowed statements and forbidden keywords are
// normalized to uppercase.
func New(allowedStatements, forbiddenKeywords []string) *Guard {
	allowed := make([]string, 0, len(allowedStatements))
	for _, s := range allowedStatements {
		allowed = append(allowed, strings.ToUpper(strings.TrimSpace(s)))
	}

	forbidden := make([]string, 0, len(forbiddenKeywords))
	patterns := make([]*regexp.Regexp, 0, len(forbiddenKeywords))
	for _, k := range forbiddenKeywords {
		kw := strings.ToUpper(strings.TrimSpace(k))
		forbidden = append(forbidden, kw)
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return &Guard{
		allowedStatements: allowed,
		forbiddenKeywords: forbidden,
		keywordPatterns:   patterns,
	}
}

// Validate checks a candidate query. The order of checks matters: a rejected
// statement prefix short-circuits before the keyword scan, which runs before
// the more expensive literal-stripping multi-statement pass. Validate is a
// pure function of the query text and the configured lists.
func (g *Guard) Validate(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("query is empty")
	}

	upper := strings.ToUpper(trimmed)
	if !g.hasAllowedPrefix(upper) {
		return fmt.Errorf("only %s statements are allowed", strings.Join(g.allowedStatements, ", "))
	}

	// Keyword scan runs on the original text so quoted literals survive for
	// the multi-statement check below.
	if keyword := g.findForbiddenKeyword(trimmed); keyword != "" {
		return fmt.Errorf("query contains forbidden keyword: %s", keyword)
	}

	if hasMultipleStatements(trimmed) {
		return fmt.Errorf("multiple statements are not allowed")
	}
	return nil
}

func (g *Guard) hasAllowedPrefix(upperQuery string) bool {
	for _, stmt := range g.allowedStatements {
		if strings.HasPrefix(upperQuery, stmt) {
			return true
		}
	}
	return false
}

// findForbiddenKeyword returns the first forbidden keyword appearing as a
// case-insensitive whole word, or "". Word boundaries avoid false positives
// on identifiers like update_time.
func (g *Guard) findForbiddenKeyword(query string) string {
	for i, pattern := range g.keywordPatterns {
		if pattern.MatchString(query) {
			return g.forbiddenKeywords[i]
		}
	}
	return ""
}

// hasMultipleStatements reports whether any semicolon outside string literals
// separates two statements. A single trailing semicolon is a terminator, not
// a separator, so `SELECT 1;` passes while `SELECT 1; SELECT 2` does not.
func hasMultipleStatements(query string) bool {
	stripped := strings.TrimSpace(stripQuotedLiterals(query))
	stripped = strings.TrimSuffix(stripped, ";")
	return strings.Contains(stripped, ";")
}

// stripQuotedLiterals removes single- and double-quoted string literals,
// honoring doubled-quote escapes ('it''s').
func stripQuotedLiterals(query string) string {
	var (
		out     strings.Builder
		inQuote byte
	)
	for i := 0; i < len(query); i++ {
		c := query[i]
		if inQuote != 0 {
			if c == inQuote {
				// doubled quote inside a literal is an escape, stay inside.
				if i+1 < len(query) && query[i+1] == inQuote {
					i++
					continue
				}
				inQuote = 0
			}
			continue
		}
		if c == '\'' || c == '"' {
			inQuote = c
			continue
		}
		out.WriteByte(c)
	}
	return out.String()
}
