package content

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// WordsPerMinute is the reading speed behind ReadingTime.
	WordsPerMinute = 200
	// ExcerptLength is the maximum excerpt length in runes, ellipsis excluded.
	ExcerptLength = 160
)

// Slugify lowercases s, folds accents to ASCII and collapses every run of
// other characters into a single dash.
func Slugify(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ReadingTime estimates minutes to read the Markdown source; never below 1.
func ReadingTime(source string) int {
	words := len(strings.Fields(PlainText(source)))
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Excerpt returns the opening of the plain text, cut at a word boundary
// and marked with an ellipsis when shortened.
func Excerpt(source string) string {
	text := PlainText(source)
	r := []rune(text)
	if len(r) <= ExcerptLength {
		return text
	}

	cut := string(r[:ExcerptLength])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}
