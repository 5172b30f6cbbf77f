// Package richtext extracts readable text from the HTML produced by the post editor.
package richtext

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const WordsPerMinute = 200

// blocks end a line of text so adjacent paragraphs do not glue their words together.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Td: true, atom.Th: true,
	atom.Hr: true, atom.Figure: true, atom.Figcaption: true,
}

// PlainText strips markup and decodes entities. Script and style bodies are dropped.
func PlainText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if a == atom.Script || a == atom.Style {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			if blocks[a] {
				b.WriteByte('\n')
			}
		}
	}
}

// Stats are the live counters shown next to the editor.
type Stats struct {
	Words          int `json:"words"`
	Characters     int `json:"characters"`
	ReadingMinutes int `json:"reading_minutes"`
}

// Measure computes Stats over the plain text of an HTML document. Characters are
// counted after whitespace runs collapse to a single space.
func Measure(content string) Stats {
	fields := strings.Fields(PlainText(content))
	words := len(fields)
	return Stats{
		Words:          words,
		Characters:     utf8.RuneCountInString(strings.Join(fields, " ")),
		ReadingMinutes: ReadingMinutes(words),
	}
}

// ReadingMinutes rounds up so any non-empty text takes at least a minute.
func ReadingMinutes(words int) int {
	if words <= 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / WordsPerMinute))
}

// IsBlank reports whether the document has no visible text.
func IsBlank(content string) bool {
	return PlainText(content) == ""
}

// Truncate shortens text to at most n runes, cutting on a word boundary when possible.
func Truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:n])
	if i := strings.LastIndexAny(cut, " \n\t"); i >= 0 && utf8.RuneCountInString(cut[:i]) > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
