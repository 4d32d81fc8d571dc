package llmport

import (
	"regexp"
	"strings"
)

var (
	fenceRE        = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRE = regexp.MustCompile(`,(\s*[}\]])`)
)

// RepairJSON strips markdown fences, removes trailing commas, and extracts
// the first top-level JSON object from a possibly-chatty LLM response
// (spec §4.12 "JSON repair"). Returns ok=false if no object-shaped text
// survives repair.
func RepairJSON(raw string) (string, bool) {
	text := raw
	if m := fenceRE.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end := matchingBrace(text, start)
	if end < 0 {
		return "", false
	}
	obj := text[start : end+1]
	obj = trailingCommaRE.ReplaceAllString(obj, "$1")
	return obj, true
}

// matchingBrace finds the index of the '}' that closes the '{' at start,
// respecting nested braces and quoted strings.
func matchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
