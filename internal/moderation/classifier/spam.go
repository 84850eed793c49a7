package classifier

import (
	"strings"
	"unicode"
)

const (
	ReasonRepeatedChars    = "Repeated characters spam"
	ReasonRepeatedChar     = "Excessive repeated character spam"
	ReasonGibberish        = "Gibberish pattern spam"
	ReasonExcessiveCaps    = "Excessive caps spam"
	ReasonExcessiveMention = "Excessive mentions spam"
	ReasonExcessiveEmoji   = "Excessive emojis spam"
)

const (
	spamMinLength         = 5
	repeatedMinLength     = 20
	dominantMinLength     = 25
	dominantShare         = 0.85
	gibberishMinLength    = 40
	gibberishCoverage     = 0.9
	capsMinLength         = 15
	capsShare             = 0.85
	maxMentions           = 5
	maxEmojis             = 8
	emojiMaxMessageLength = 30
	emojiCodePointFloor   = 0x1F300
)

// DetectSpam applies the burst-independent spam heuristics to a single
// message. Lengths are counted in runes.
func DetectSpam(text string) (bool, string) {
	lower := strings.TrimSpace(strings.ToLower(text))
	compact := []rune(strings.ReplaceAll(lower, " ", ""))
	n := len(compact)

	if n < spamMinLength {
		return false, ""
	}

	freq := make(map[rune]int, n)
	maxCount := 0
	for _, r := range compact {
		freq[r]++
		if freq[r] > maxCount {
			maxCount = freq[r]
		}
	}

	if n >= repeatedMinLength && len(freq) == 1 {
		return true, ReasonRepeatedChars
	}

	if n >= dominantMinLength && float64(maxCount)/float64(n) > dominantShare {
		return true, ReasonRepeatedChar
	}

	if n > gibberishMinLength {
		s := string(compact)
		for _, size := range []int{2, 3, 4} {
			prefix := string(compact[:size])
			if float64(strings.Count(s, prefix)*size) > float64(n)*gibberishCoverage {
				return true, ReasonGibberish
			}
		}
	}

	original := []rune(text)
	if len(original) > capsMinLength {
		upper := 0
		for _, r := range original {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper)/float64(len(original)) > capsShare {
			return true, ReasonExcessiveCaps
		}
	}

	if strings.Count(text, "@") > maxMentions {
		return true, ReasonExcessiveMention
	}

	emojis := 0
	for _, r := range original {
		if r > emojiCodePointFloor {
			emojis++
		}
	}
	if emojis > maxEmojis && len([]rune(lower)) < emojiMaxMessageLength {
		return true, ReasonExcessiveEmoji
	}

	return false, ""
}
