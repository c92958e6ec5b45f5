// Package render fills proposal templates with resolved field values.
package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// tokenPattern matches {{ name }} where name is letters, digits and underscores
var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// MissingMarker is substituted for tokens with no value
const MissingMarker = "[MISSING:%s]"

// Renderer turns a template and a finalized field mapping into output text
type Renderer interface {
	Render(ctx context.Context, template string, values map[string]string) (string, error)
}

// Result is the outcome of a substitution pass
type Result struct {
	Text    string
	Missing []string
}

// Substitute replaces every token in template with its value, or with a
// [MISSING:key] marker when values has no entry for the key.
func Substitute(template string, values map[string]string) Result {
	var missing []string
	seen := make(map[string]bool)

	text := tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := tokenPattern.FindStringSubmatch(token)[1]
		if v, ok := values[key]; ok {
			return v
		}
		if !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
		return fmt.Sprintf(MissingMarker, key)
	})

	return Result{Text: text, Missing: missing}
}

// Tokens returns the distinct token names in template, in order of first use
func Tokens(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// HasMissing reports whether text still carries a missing-value marker
func HasMissing(text string) bool {
	return strings.Contains(text, "[MISSING:")
}

// SubstituteRenderer adapts Substitute to the Renderer interface
type SubstituteRenderer struct{}

// Render implements Renderer
func (SubstituteRenderer) Render(_ context.Context, template string, values map[string]string) (string, error) {
	return Substitute(template, values).Text, nil
}
