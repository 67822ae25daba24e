package grading

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var arabicLetterVariants = strings.NewReplacer(
	"أ", "ا",
	"إ", "ا",
	"آ", "ا",
	"ة", "ه",
	"ى", "ي",
)

// Arabic harakat and tanween, U+064B..U+065F.
func isArabicDiacritic(r rune) bool {
	return r >= 0x064B && r <= 0x065F
}

// NormalizeText prepares free text for comparison: case folding, whitespace collapsing,
// Arabic diacritic removal and Arabic letter variant folding.
func NormalizeText(s string) string {
	// transformers and casers keep state, so they are built per call
	t := transform.Chain(norm.NFC, runes.Remove(runes.Predicate(isArabicDiacritic)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	out = arabicLetterVariants.Replace(out)
	return strings.Join(strings.Fields(out), " ")
}
