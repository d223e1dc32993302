package parser

import (
	"strings"
)

const fence = "```"

// StripFence removes a single markdown code fence around a model response:
// a leading line of ``` with an optional language tag, and a trailing ```.
// Any other wrapping is left in place and will fail JSON decoding.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, fence) {
		rest := s[len(fence):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			if isFenceTag(strings.TrimSpace(rest[:nl])) {
				rest = rest[nl+1:]
			}
		} else {
			rest = strings.TrimLeftFunc(rest, isTagRune)
		}
		s = rest
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, fence) {
		s = s[:len(s)-len(fence)]
	}
	return strings.TrimSpace(s)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !isTagRune(r) {
			return false
		}
	}
	return true
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+'
}
