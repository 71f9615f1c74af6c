package common

import (
	"strings"
	"unicode/utf8"
)

// SnippetLen is the default number of bytes kept from a response body in error messages.
const SnippetLen = 256

// Snippet trims s and cuts it to at most n bytes on a rune boundary.
func Snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SplitList splits a comma separated list and drops empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
