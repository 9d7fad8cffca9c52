// Package content turns post bodies into safe HTML and derives the text
// attributes of a post (slug, excerpt, reading time) from them.
package content

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	ghtml "github.com/yuin/goldmark/renderer/html"
)

var (
	md              goldmark.Markdown
	policy          *bluemonday.Policy
	stripTagsPolicy *bluemonday.Policy
)

func init() {
	md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			ghtml.WithHardWraps(),
			ghtml.WithXHTML(),
			// Raw HTML is passed through and cleaned by bluemonday below.
			ghtml.WithUnsafe(),
		),
	)

	policy = bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "span")
	policy.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")

	stripTagsPolicy = bluemonday.StripTagsPolicy()
}

// RenderMarkdown converts Markdown to sanitized HTML.
func RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return policy.Sanitize(buf.String()), nil
}

// PlainText renders source and strips every tag, leaving readable text with
// collapsed whitespace.
func PlainText(source string) string {
	rendered, err := RenderMarkdown(source)
	if err != nil {
		rendered = source
	}
	text := html.UnescapeString(stripTagsPolicy.Sanitize(rendered))
	return strings.Join(strings.Fields(text), " ")
}
