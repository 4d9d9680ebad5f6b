package sandbox

import (
	"fmt"
	"regexp"
	"strings"

	liveagent "github.com/ternlabs/liveagent"
)

// mutationKeywords are statement tokens blocked on read-only connectors.
// Matching happens on normalized text with literals and comments
// stripped, so a keyword inside a string value does not trip it.
var mutationKeywords = map[string]struct{}{
	"INSERT":   {},
	"UPDATE":   {},
	"DELETE":   {},
	"DROP":     {},
	"ALTER":    {},
	"CREATE":   {},
	"TRUNCATE": {},
	"GRANT":    {},
	"REVOKE":   {},
	"MERGE":    {},
	"EXEC":     {},
	"EXECUTE":  {},
	"COPY":     {},
	"VACUUM":   {},
}

var (
	placeholderPattern = regexp.MustCompile(`\$\d+|[@:][A-Za-z_][A-Za-z0-9_]*|\?`)
	positionalPattern  = regexp.MustCompile(`\$\d+|\?`)
)

func unsafe(format string, args ...any) error {
	return fmt.Errorf("%w: %s", liveagent.ErrUnsafeQuery, fmt.Sprintf(format, args...))
}

// validateSQL checks a SQL query before any network call: keyword
// deny-list when read-only, single statement only, no comments, and
// parameterized placeholders for every supplied argument.
func validateSQL(query string, params map[string]any, readOnly bool) error {
	if strings.TrimSpace(query) == "" {
		return unsafe("empty query")
	}

	normalized, hasComment := stripLiteralsAndComments(query)
	if hasComment {
		return unsafe("comments are not allowed in query text")
	}

	if rest := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(normalized), ";")); strings.Contains(rest, ";") {
		return unsafe("multiple statements are not allowed")
	}

	if readOnly {
		for _, token := range tokenize(normalized) {
			if _, blocked := mutationKeywords[strings.ToUpper(token)]; blocked {
				return unsafe("statement %q is not allowed on a read-only connector", strings.ToUpper(token))
			}
		}
	}

	return validateParameterized(query, normalized, params)
}

// validateParameterized enforces that user-influenced values arrive via
// placeholders rather than spliced into the query text. Per-name
// matching applies only to named styles (@name, :name); positional
// styles ($1, ?) cannot be checked against the params map by name. The
// interpolation check is lexical and best-effort: it catches a value
// spliced in as a quoted literal, not every possible embedding.
func validateParameterized(raw, normalized string, params map[string]any) error {
	if len(params) == 0 {
		return nil
	}

	if !placeholderPattern.MatchString(normalized) {
		return unsafe("parameters supplied but query has no placeholders")
	}

	positional := positionalPattern.MatchString(normalized)
	for name, value := range params {
		if !positional && !referencesParam(normalized, name) {
			return unsafe("parameter %q has no matching placeholder", name)
		}
		s, ok := value.(string)
		if !ok || s == "" {
			continue
		}
		if strings.Contains(raw, "'"+s+"'") || strings.Contains(raw, `"`+s+`"`) {
			return unsafe("parameter %q is interpolated into the query text", name)
		}
	}
	return nil
}

func referencesParam(normalized, name string) bool {
	for _, prefix := range []string{"@", ":", "$"} {
		idx := 0
		for {
			i := strings.Index(normalized[idx:], prefix+name)
			if i < 0 {
				break
			}
			end := idx + i + len(prefix) + len(name)
			if end >= len(normalized) || !isWordByte(normalized[end]) {
				return true
			}
			idx = end
		}
	}
	return false
}

// validateHTTP checks an endpoint path for an HTTP connector. Arguments
// must travel through the params map, never spliced into the path.
func validateHTTP(path string, params map[string]any) error {
	if strings.TrimSpace(path) == "" {
		return unsafe("empty path")
	}
	if !strings.HasPrefix(path, "/") {
		return unsafe("path must be relative to the connector base url")
	}
	if strings.Contains(path, "://") {
		return unsafe("absolute urls are not allowed")
	}
	if strings.ContainsAny(path, "?#") {
		return unsafe("query strings must be passed as parameters")
	}
	if strings.Contains(path, "..") {
		return unsafe("path traversal is not allowed")
	}

	for name, value := range params {
		s, ok := value.(string)
		if !ok || len(s) < 2 {
			continue
		}
		if strings.Contains(path, s) {
			return unsafe("parameter %q is interpolated into the path", name)
		}
	}
	return nil
}

// stripLiteralsAndComments blanks out string literals and quoted
// identifiers and reports whether the query contains SQL comments.
func stripLiteralsAndComments(query string) (string, bool) {
	var b strings.Builder
	b.Grow(len(query))

	hasComment := false
	for i := 0; i < len(query); {
		switch {
		case query[i] == '\'' || query[i] == '"':
			quote := query[i]
			j := i + 1
			for j < len(query) {
				if query[j] == quote {
					// Doubled quotes escape inside literals.
					if j+1 < len(query) && query[j+1] == quote {
						j += 2
						continue
					}
					break
				}
				j++
			}
			b.WriteByte(' ')
			i = j + 1
		case strings.HasPrefix(query[i:], "--"):
			hasComment = true
			j := strings.IndexByte(query[i:], '\n')
			if j < 0 {
				i = len(query)
				break
			}
			i += j
		case strings.HasPrefix(query[i:], "/*"):
			hasComment = true
			j := strings.Index(query[i:], "*/")
			if j < 0 {
				i = len(query)
				break
			}
			i += j + 2
		default:
			b.WriteByte(query[i])
			i++
		}
	}
	return b.String(), hasComment
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

func isWordByte(b byte) bool {
	return isWordRune(rune(b))
}
