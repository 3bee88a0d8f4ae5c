package lower

import (
	"strings"
	"unicode"

	"go.jacobcolvin.com/devicedesc/ir"
)

// parseWordBoundaries reads a NameWordBoundaries config value: a
// comma-separated list of boundary names. An unrecognized word is
// ignored (a pragmatic diagnostic is left to the caller). An empty or
// absent value yields every boundary rule, per spec.md §4.E step 2.
func parseWordBoundaries(raw string) ir.WordBoundarySet {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ir.DefaultWordBoundaries()
	}

	set := make(ir.WordBoundarySet)

	for _, word := range strings.Split(raw, ",") {
		switch strings.TrimSpace(word) {
		case "underscore":
			set[ir.BoundaryUnderscore] = true
		case "hyphen":
			set[ir.BoundaryHyphen] = true
		case "space":
			set[ir.BoundarySpace] = true
		case "lower_upper":
			set[ir.BoundaryLowerUpper] = true
		case "upper_digit":
			set[ir.BoundaryUpperDigit] = true
		case "digit_upper":
			set[ir.BoundaryDigitUpper] = true
		case "digit_lower":
			set[ir.BoundaryDigitLower] = true
		case "lower_digit":
			set[ir.BoundaryLowerDigit] = true
		case "acronym":
			set[ir.BoundaryAcronym] = true
		}
	}

	if len(set) == 0 {
		return ir.DefaultWordBoundaries()
	}

	return set
}

// splitWords breaks name into its component words according to the
// active boundary set, matching spec.md §4.E step 2's union-of-rules
// description: underscore/hyphen/space are literal separators; the
// lower→upper, upper→digit, digit→upper, digit→lower, lower→digit, and
// acronym-split rules are transition boundaries within a run of letters
// and digits.
func splitWords(name string, boundaries ir.WordBoundarySet) []string {
	runes := []rune(name)

	var words []string

	var cur []rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = nil
		}
	}

	for i, r := range runes {
		switch {
		case r == '_' && boundaries[ir.BoundaryUnderscore]:
			flush()

			continue
		case r == '-' && boundaries[ir.BoundaryHyphen]:
			flush()

			continue
		case unicode.IsSpace(r) && boundaries[ir.BoundarySpace]:
			flush()

			continue
		}

		if i > 0 && isBoundary(runes, i, boundaries) {
			flush()
		}

		cur = append(cur, r)
	}

	flush()

	return words
}

// isBoundary reports whether a word-boundary transition occurs between
// runes[i-1] and runes[i].
func isBoundary(runes []rune, i int, boundaries ir.WordBoundarySet) bool {
	prev, cur := runes[i-1], runes[i]

	switch {
	case boundaries[ir.BoundaryLowerUpper] && unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case boundaries[ir.BoundaryUpperDigit] && unicode.IsUpper(prev) && unicode.IsDigit(cur):
		return true
	case boundaries[ir.BoundaryDigitUpper] && unicode.IsDigit(prev) && unicode.IsUpper(cur):
		return true
	case boundaries[ir.BoundaryDigitLower] && unicode.IsDigit(prev) && unicode.IsLower(cur):
		return true
	case boundaries[ir.BoundaryLowerDigit] && unicode.IsLower(prev) && unicode.IsDigit(cur):
		return true
	case boundaries[ir.BoundaryAcronym] && unicode.IsUpper(prev) && unicode.IsUpper(cur) &&
		i+1 < len(runes) && unicode.IsLower(runes[i+1]):
		return true
	default:
		return false
	}
}

// normalize splits name at the active boundaries and rejoins the
// lowercased words with underscores, producing the canonical form every
// object/field/enum/enum-variant identifier is compared by. Applying
// normalize to an already-normalized name is a no-op (testable property
// 7 of spec.md §8), since a lowercase, underscore-joined name has no
// further boundaries to split at beyond the underscores themselves,
// which re-split to the same words.
func normalize(name string, boundaries ir.WordBoundarySet) string {
	words := splitWords(name, boundaries)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}

	return strings.Join(words, "_")
}
