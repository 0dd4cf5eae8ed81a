package disc

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Label derives a display name from an image path, e.g.
// "/discs/the_big_movie-disc1.iso" becomes "The Big Movie Disc1".
func Label(imagePath string) string {
	if imagePath == "" {
		return "Unknown Disc"
	}
	base := filepath.Base(imagePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	label := strings.TrimSpace(cleaned.String())
	if label == "" {
		return "Unknown Disc"
	}
	return cases.Title(language.Und).String(strings.ToLower(label))
}
