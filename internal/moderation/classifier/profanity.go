package classifier

import (
	"fmt"
	"regexp"
)

type Severity string

const (
	SeverityNone       Severity = ""
	SeverityNormal     Severity = "NORMAL"
	SeverityMedium     Severity = "MEDIUM"
	SeveritySevere     Severity = "SEVERE"
	SeverityUnverified Severity = "UNVERIFIED"
)

// ProfanityResult is the verdict of Detector.DetectProfanity.
type ProfanityResult struct {
	Found    bool
	Term     string
	Severity Severity
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Detector holds the compiled vocabulary used by the text checks.
type Detector struct {
	severe         vocabulary
	severePatterns []*regexp.Regexp
	profanity      vocabulary
	political      vocabulary
}

func NewDetector(lists WordLists) (*Detector, error) {
	patterns, err := compilePatterns(lists.SeverePatterns)
	if err != nil {
		return nil, err
	}
	severe := newVocabulary(lists.SevereWords)
	severe.phrases = append(severe.phrases, newVocabulary(lists.SeverePhrases).phrases...)
	return &Detector{
		severe:         severe,
		severePatterns: patterns,
		profanity:      newVocabulary(lists.Profanity),
		political:      newVocabulary(lists.PoliticalKeywords),
	}, nil
}

// NewDefaultDetector builds a Detector from the embedded word lists.
func NewDefaultDetector() (*Detector, error) {
	lists, err := DefaultWordLists()
	if err != nil {
		return nil, err
	}
	d, err := NewDetector(lists)
	if err != nil {
		return nil, fmt.Errorf("build detector: %w", err)
	}
	return d, nil
}

// DetectProfanity checks, in order: severe words, severe phrases, fuzzy
// slur patterns and then the general profanity list. The first hit wins.
func (d *Detector) DetectProfanity(text string) ProfanityResult {
	folded := foldText(text)
	words := wordPattern.FindAllString(folded, -1)

	if term, ok := d.severe.matchWord(words); ok {
		return ProfanityResult{Found: true, Term: term, Severity: SeveritySevere}
	}
	if term, ok := d.severe.matchPhrase(folded); ok {
		return ProfanityResult{Found: true, Term: term, Severity: SeveritySevere}
	}

	compact := compactText(folded)
	for _, re := range d.severePatterns {
		if match := re.FindString(compact); match != "" {
			return ProfanityResult{Found: true, Term: match, Severity: SeveritySevere}
		}
	}

	if term, ok := d.profanity.matchWord(words); ok {
		return ProfanityResult{Found: true, Term: term, Severity: SeverityNormal}
	}
	if term, ok := d.profanity.matchPhrase(folded); ok {
		return ProfanityResult{Found: true, Term: term, Severity: SeverityNormal}
	}

	return ProfanityResult{}
}

// HasPoliticalKeyword reports whether text mentions a political topic.
func (d *Detector) HasPoliticalKeyword(text string) bool {
	folded := foldText(text)
	if _, ok := d.political.matchWord(wordPattern.FindAllString(folded, -1)); ok {
		return true
	}
	_, ok := d.political.matchPhrase(folded)
	return ok
}
