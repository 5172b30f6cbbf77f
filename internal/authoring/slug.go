package authoring

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRun  = regexp.MustCompile(`\s+`)
	hyphenRun = regexp.MustCompile(`-+`)
)

// Slugify derives a URL key from a title. The result only holds [a-z0-9] separated
// by single hyphens.
func Slugify(title string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, strings.ToLower(title))

	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), "-")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
