// Package clean contains small string-cleaning and classification helpers
// used when normalizing field values and file names.
package clean

import (
	"fmt"
	"regexp"
	"strings"
)

// Patterns are compiled once at package level to avoid recompilation per call.
var (
	nonAlnumPattern = regexp.MustCompile(`[^a-zA-Z0-9]`)
	bracketsPattern = regexp.MustCompile(`\((.*?)\)`)
	splitPattern    = regexp.MustCompile(`[/ \-.]`)
)

// String removes all characters except ASCII letters and digits.
func String(s string) string {
	return nonAlnumPattern.ReplaceAllString(s, "")
}

// RemoveBrackets removes every parenthesized group, including the
// parentheses, and trims surrounding whitespace.
func RemoveBrackets(s string) string {
	return strings.TrimSpace(bracketsPattern.ReplaceAllString(s, ""))
}

// BetweenBrackets returns the concatenated contents of every parenthesized
// group, or the empty string when none exists.
func BetweenBrackets(s string) string {
	matches := bracketsPattern.FindAllStringSubmatch(s, -1)
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(m[1])
	}
	return strings.TrimSpace(sb.String())
}

// DataType classifies a file name against a list of known type tokens.
// The name is split on slashes, spaces, hyphens and dots; the first known
// token wins. Returns "Invalid" when no token matches.
func DataType(fileName string, known []string) string {
	parts := splitPattern.Split(fileName, -1)
	tokens := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		tokens[p] = struct{}{}
	}
	for _, k := range known {
		if _, ok := tokens[k]; ok {
			return k
		}
	}
	return "Invalid"
}

// ParseBool converts loose truth representations ("yes", "t", "1", ...) into
// a bool. Non-string values are formatted first, so numeric flags work too.
func ParseBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	switch strings.ToLower(fmt.Sprint(v)) {
	case "yes", "true", "t", "y", "1":
		return true, nil
	case "no", "false", "f", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("boolean value expected, got %v", v)
}
