package options

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/goliatone/go-crudmeta/pkg/model"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// ResolveURL substitutes every {key} token in template with the matching
// state value. Missing or nil values resolve to the empty string. Tokens in
// the query are query-escaped; tokens in the path are escaped per segment,
// so a value may carry a multi-segment path fragment.
func ResolveURL(template string, state model.FormState) string {
	query := strings.IndexByte(template, '?')
	matches := placeholderPattern.FindAllStringSubmatchIndex(template, -1)

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(template[last:m[0]])
		value := model.Stringify(state[template[m[2]:m[3]]])
		if query >= 0 && m[0] > query {
			b.WriteString(url.QueryEscape(value))
		} else {
			b.WriteString(escapeSegments(value))
		}
		last = m[1]
	}
	b.WriteString(template[last:])
	return b.String()
}

func escapeSegments(value string) string {
	segments := strings.Split(value, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// Placeholders lists the state keys referenced by template, in order.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	keys := make([]string, 0, len(matches))
	for _, match := range matches {
		keys = append(keys, match[1])
	}
	return keys
}
