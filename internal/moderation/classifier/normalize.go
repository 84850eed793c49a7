package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Cyrillic letters that render like Latin ones.
var homoglyphs = map[rune]rune{
	'а': 'a', 'в': 'b', 'е': 'e', 'ё': 'e', 'з': '3', 'і': 'i', 'ј': 'j',
	'к': 'k', 'м': 'm', 'н': 'h', 'о': 'o', 'р': 'p', 'с': 'c', 'т': 't',
	'у': 'y', 'х': 'x', 'ѕ': 's', 'ԁ': 'd',
}

// foldText lowercases text, strips diacritics and compatibility forms, and
// rewrites Cyrillic lookalikes inside words that also contain Latin letters.
func foldText(s string) string {
	if s == "" {
		return ""
	}
	// transform.Chain keeps state, so a fresh chain is built per call.
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(unicode.ToLower),
		norm.NFKC,
	)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}

	words := strings.Fields(folded)
	changed := false
	for i, word := range words {
		if isMixedScript(word) {
			words[i] = mapHomoglyphs(word)
			changed = true
		}
	}
	if !changed {
		return folded
	}
	return strings.Join(words, " ")
}

func isMixedScript(word string) bool {
	var latin, cyrillic bool
	for _, r := range word {
		switch {
		case r >= 'a' && r <= 'z':
			latin = true
		case r >= 0x0400 && r <= 0x052F:
			cyrillic = true
		}
		if latin && cyrillic {
			return true
		}
	}
	return false
}

func mapHomoglyphs(word string) string {
	return strings.Map(func(r rune) rune {
		if mapped, ok := homoglyphs[r]; ok {
			return mapped
		}
		return r
	}, word)
}

// compactText keeps only [a-z0-9] of already folded text.
func compactText(folded string) string {
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
