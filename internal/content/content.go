// Package content cleans user-generated text and renders forum markdown to safe HTML.
package content

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	ugc   = bluemonday.UGCPolicy()
	plain = bluemonday.StrictPolicy()
	md    = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// Sanitize removes unsafe HTML from the input while keeping safe formatting.
func Sanitize(input string) string {
	return ugc.Sanitize(input)
}

// PlainText strips every tag. Used for headings, names and chat messages.
func PlainText(input string) string {
	return strings.TrimSpace(plain.Sanitize(input))
}

// RenderMarkdown converts markdown to HTML and sanitizes the result.
// Raw HTML in the source is escaped by goldmark and never reaches the output.
func RenderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return ugc.Sanitize(src)
	}
	return ugc.SanitizeReader(&buf).String()
}

// NormalizeTags trims, lowercases and de-duplicates tags, dropping empty entries
// and any leading '#'.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(t), "#")))
		t = PlainText(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
