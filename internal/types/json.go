package types

import "strings"

// CleanJSONFromMarkdown removes markdown code block wrappers from JSON strings.
// This is commonly needed when parsing LLM responses that may include markdown formatting.
func CleanJSONFromMarkdown(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the outermost {...} span of s after stripping
// markdown fences, or "" when there is none.
func ExtractJSONObject(s string) string {
	s = CleanJSONFromMarkdown(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
