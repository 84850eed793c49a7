package classifier

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
)

var errNoJSON = errors.New("no json object in model answer")

// stripCodeFences removes a surrounding ```json ... ``` block.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeAnswer parses a model answer into v, tolerating fences and prose
// around the JSON object.
func decodeAnswer(answer string, v any) error {
	s := stripCodeFences(answer)
	if err := sonic.UnmarshalString(s, v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return errNoJSON
	}
	return sonic.UnmarshalString(s[start:end+1], v)
}
