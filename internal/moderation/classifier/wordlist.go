package classifier

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/prime/resources"
)

const wordListsFile = "wordlists.yml"

// WordLists is the on-disk shape of the moderation vocabulary.
type WordLists struct {
	SevereWords       []string `yaml:"severe_words"`
	SeverePhrases     []string `yaml:"severe_phrases"`
	SeverePatterns    []string `yaml:"severe_patterns"`
	Profanity         []string `yaml:"profanity"`
	PoliticalKeywords []string `yaml:"political_keywords"`
}

// LoadWordLists reads word lists from the given filesystem.
func LoadWordLists(fsys fs.FS, name string) (WordLists, error) {
	var lists WordLists
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return lists, fmt.Errorf("read word lists: %w", err)
	}
	if err := yaml.Unmarshal(raw, &lists); err != nil {
		return lists, fmt.Errorf("parse word lists: %w", err)
	}
	return lists, nil
}

// DefaultWordLists returns the word lists embedded into the binary.
func DefaultWordLists() (WordLists, error) {
	return LoadWordLists(resources.FS, wordListsFile)
}

type vocabulary struct {
	words   map[string]struct{}
	phrases []string
}

func newVocabulary(entries []string) vocabulary {
	v := vocabulary{words: make(map[string]struct{}, len(entries))}
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.Contains(entry, " ") {
			v.phrases = append(v.phrases, entry)
			continue
		}
		v.words[entry] = struct{}{}
	}
	return v
}

func (v vocabulary) matchWord(words []string) (string, bool) {
	for _, word := range words {
		if _, ok := v.words[word]; ok {
			return word, true
		}
	}
	return "", false
}

func (v vocabulary) matchPhrase(text string) (string, bool) {
	for _, phrase := range v.phrases {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
