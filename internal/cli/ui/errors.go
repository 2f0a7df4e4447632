package ui

import (
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// RenderMetaDataError writes a metadata error with its code description,
// hint, and cycle chain when present.
func RenderMetaDataError(w io.Writer, err *merr.MetaDataError, noColor bool) {
	header := color.New(color.FgRed, color.Bold)
	body := color.New(color.FgRed)
	hint := color.New(color.FgCyan)
	if err.Severity == merr.Warning {
		header = color.New(color.FgYellow, color.Bold)
		body = color.New(color.FgYellow)
	}
	if noColor {
		header.DisableColor()
		body.DisableColor()
		hint.DisableColor()
	}

	subject := err.Class
	if err.Member != "" {
		subject = err.Class + "." + err.Member
	}
	header.Fprintf(w, "%s [%s]: %s\n", merr.Describe(err.Code), err.Code, subject)
	body.Fprintf(w, "   %s\n", err.Message)

	if len(err.Chain) > 0 {
		body.Fprintf(w, "   chain: %s\n", strings.Join(err.Chain, " -> "))
	}
	if err.Hint != "" {
		hint.Fprintf(w, "   → %s\n", err.Hint)
	}
}

// RenderUnknownClass writes a not-found message with close-match
// suggestions from the registered class names.
func RenderUnknownClass(w io.Writer, name string, known []string, noColor bool) {
	header := color.New(color.FgRed, color.Bold)
	hint := color.New(color.FgCyan)
	if noColor {
		header.DisableColor()
		hint.DisableColor()
	}

	header.Fprintf(w, "class not found: %s\n", name)
	if suggestions := SuggestClasses(name, known); len(suggestions) > 0 {
		hint.Fprintf(w, "   did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
}

const (
	maxSuggestionDistance = 3
	maxSuggestions        = 3
)

// SuggestClasses returns up to three registered class names within a
// small edit distance of the requested name. Matching is done on the
// short name, so "custmer" finds "app.model.Customer".
func SuggestClasses(name string, known []string) []string {
	shortOf := func(full string) string {
		if i := strings.LastIndexByte(full, '.'); i >= 0 {
			return full[i+1:]
		}
		return full
	}

	target := strings.ToLower(shortOf(name))

	type match struct {
		full string
		dist int
	}
	var matches []match
	for _, full := range known {
		dist := editDistance(target, strings.ToLower(shortOf(full)))
		if dist <= maxSuggestionDistance {
			matches = append(matches, match{full: full, dist: dist})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].dist != matches[j].dist {
			return matches[i].dist < matches[j].dist
		}
		return matches[i].full < matches[j].full
	})

	var result []string
	for i := 0; i < len(matches) && i < maxSuggestions; i++ {
		result = append(result, matches[i].full)
	}
	return result
}

// editDistance computes the Levenshtein distance between two strings
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Warn prints a one-line warning
func Warn(w io.Writer, format string, args ...interface{}) {
	c := color.New(color.FgYellow)
	c.Fprintf(w, "⚠ "+format+"\n", args...)
}

// Success prints a one-line success message
func Success(w io.Writer, format string, args ...interface{}) {
	c := color.New(color.FgGreen)
	c.Fprintf(w, "✓ "+format+"\n", args...)
}
