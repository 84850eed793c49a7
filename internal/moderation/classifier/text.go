package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var invitePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)discord\.gg/[a-zA-Z0-9]+`),
	regexp.MustCompile(`(?i)discord\.com/invite/[a-zA-Z0-9]+`),
	regexp.MustCompile(`(?i)discordapp\.com/invite/[a-zA-Z0-9]+`),
}

// DetectInviteLink reports whether text carries a Discord server invite.
func DetectInviteLink(text string) bool {
	for _, re := range invitePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

const (
	minChildAge   = 7
	minAllowedAge = 13
)

var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(i\s*am|im|i'm)\s*(?:searchin|looking)?\s*(?:for)?\s*(\d{1,2})\s*(?:year|yr|y)s?\s*(?:old|o)?\b`),
	regexp.MustCompile(`\b(my\s*age\s*is)\s*(\d{1,2})\b`),
	regexp.MustCompile(`\b(im|i'm|i\s*am)\s*(\d{1,2})\b`),
	regexp.MustCompile(`\b(\d{1,2})\s*(?:year|yr|y)s?\s*(?:old|o)\b`),
}

// DetectAge looks for a self-reported age between 7 and 12. Smaller numbers
// are treated as noise.
func DetectAge(text string) (bool, string) {
	lower := strings.ToLower(text)
	for _, re := range agePatterns {
		for _, groups := range re.FindAllStringSubmatch(lower, -1) {
			age, ok := firstNumericGroup(groups[1:])
			if !ok {
				continue
			}
			if age >= minChildAge && age < minAllowedAge {
				return true, fmt.Sprintf("User admitted to being %d years old (Discord requires 13+)", age)
			}
		}
	}
	return false, ""
}

func firstNumericGroup(groups []string) (int, bool) {
	for _, group := range groups {
		if group == "" {
			continue
		}
		age, err := strconv.Atoi(group)
		if err == nil {
			return age, true
		}
	}
	return 0, false
}
