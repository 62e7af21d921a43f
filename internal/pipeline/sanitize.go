package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"review-reply-automation/internal/validator"
)

// terminators end a sentence for closing phrase placement.
const terminators = ".!?。"

// spliceWindow is how close to the end, in runes, the last terminator must be
// for the closing phrase to replace the trailing fragment.
const spliceWindow = 10

// Sanitize normalizes model output into plain reply text: NFC, printable BMP
// runes, "\n" line breaks, single blank lines, trimmed.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r > 0xFFFF:
		case r == '\t':
			b.WriteRune(' ')
		case unicode.IsPrint(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	lines := strings.Split(b.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " ")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	text := strings.TrimSpace(strings.Join(out, "\n"))
	return trimQuotes(text)
}

func trimQuotes(s string) string {
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) > len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			inner := s[len(q[0]) : len(s)-len(q[1])]
			if !strings.Contains(inner, q[0]) && !strings.Contains(inner, q[1]) {
				return strings.TrimSpace(inner)
			}
		}
	}
	return s
}

// EnsureClosing makes text end with closing exactly once. A closing phrase
// already in place is kept; one elsewhere in the text is moved to the end.
func EnsureClosing(text, closing string) string {
	closing = strings.TrimSpace(closing)
	if closing == "" {
		return text
	}
	if strings.Count(text, closing) == 1 && validator.ClosingAtEnd(text, closing) {
		return text
	}

	text = strings.ReplaceAll(text, closing, " ")
	text = strings.Join(strings.FieldsFunc(text, func(r rune) bool { return r == ' ' }), " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return closing
	}

	runes := []rune(text)
	last := -1
	for i := len(runes) - 1; i >= 0; i-- {
		if strings.ContainsRune(terminators, runes[i]) {
			last = i
			break
		}
	}

	if last >= 0 && last >= len(runes)-spliceWindow {
		return string(runes[:last+1]) + " " + closing
	}
	if !strings.ContainsRune(terminators, runes[len(runes)-1]) {
		text += "."
	}
	return text + " " + closing
}
