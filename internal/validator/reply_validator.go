// Package validator checks generated replies against store rules.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Code identifies the first rule a reply broke.
type Code string

const (
	CodeOK                   Code = ""
	CodeEmpty                Code = "EMPTY"
	CodeTooLong              Code = "TOO_LONG"
	CodeClosingMissing       Code = "CLOSING_MISSING"
	CodeClosingDuplicated    Code = "CLOSING_DUPLICATED"
	CodeForbiddenWord        Code = "FORBIDDEN_WORD"
	CodeDisallowedScript     Code = "DISALLOWED_SCRIPT"
	CodeExcessivePunctuation Code = "EXCESSIVE_PUNCTUATION"
	CodeExcessiveSlang       Code = "EXCESSIVE_SLANG"
)

// maxClosingTail is how many punctuation or space runes may follow the closing phrase.
const maxClosingTail = 3

// DefaultDisallowedScripts are rejected unless Rules overrides them.
var DefaultDisallowedScripts = []string{"Hiragana", "Katakana", "Han"}

var (
	punctuationRun = regexp.MustCompile(`[?!.]{2,}`)
	jamoSlang      = regexp.MustCompile(`[ㅋㅎㄷㅠㅜ]{3,}`)
)

// Rules is the per-store rule set for one reply.
type Rules struct {
	MaxLength      int // in runes; 0 disables the check
	ClosingPhrase  string
	ForbiddenWords []string
	// DisallowedScripts are unicode script names; nil means DefaultDisallowedScripts.
	DisallowedScripts []string
	// SlangPatterns are checked in addition to repeated jamo.
	SlangPatterns []*regexp.Regexp
}

// Result is the validation verdict.
type Result struct {
	Valid  bool
	Code   Code
	Detail string
}

func (r Result) String() string {
	if r.Valid {
		return "OK"
	}
	if r.Detail == "" {
		return string(r.Code)
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Detail)
}

func fail(code Code, format string, args ...any) Result {
	return Result{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks candidate against rules and reports the first violation.
func Validate(candidate string, rules Rules) Result {
	if strings.TrimSpace(candidate) == "" {
		return Result{Code: CodeEmpty}
	}

	if n := utf8.RuneCountInString(candidate); rules.MaxLength > 0 && n > rules.MaxLength {
		return fail(CodeTooLong, "%d > %d runes", n, rules.MaxLength)
	}

	if closing := strings.TrimSpace(rules.ClosingPhrase); closing != "" {
		if res := checkClosing(candidate, closing); !res.Valid {
			return res
		}
	}

	lower := strings.ToLower(candidate)
	for _, w := range rules.ForbiddenWords {
		w = strings.TrimSpace(w)
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return fail(CodeForbiddenWord, "%q", w)
		}
	}

	scripts := rules.DisallowedScripts
	if scripts == nil {
		scripts = DefaultDisallowedScripts
	}
	if name, r, ok := findScript(candidate, scripts); ok {
		return fail(CodeDisallowedScript, "%s %q", name, r)
	}

	body := candidate
	if closing := strings.TrimSpace(rules.ClosingPhrase); closing != "" {
		body = strings.ReplaceAll(body, closing, " ")
	}
	if m := punctuationRun.FindString(body); m != "" {
		return fail(CodeExcessivePunctuation, "%q", m)
	}

	if m := jamoSlang.FindString(candidate); m != "" {
		return fail(CodeExcessiveSlang, "%q", m)
	}
	for _, re := range rules.SlangPatterns {
		if m := re.FindString(candidate); m != "" {
			return fail(CodeExcessiveSlang, "%q", m)
		}
	}

	return Result{Valid: true}
}

func checkClosing(candidate, closing string) Result {
	switch strings.Count(candidate, closing) {
	case 0:
		return fail(CodeClosingMissing, "closing phrase not found")
	case 1:
	default:
		return fail(CodeClosingDuplicated, "closing phrase appears %d times", strings.Count(candidate, closing))
	}

	if !ClosingAtEnd(candidate, closing) {
		return fail(CodeClosingMissing, "closing phrase not at the end")
	}
	return Result{Valid: true}
}

// ClosingAtEnd reports whether the last occurrence of closing is followed by
// nothing but a few punctuation, symbol or space runes.
func ClosingAtEnd(text, closing string) bool {
	idx := strings.LastIndex(text, closing)
	if closing == "" || idx < 0 {
		return false
	}
	tail := text[idx+len(closing):]
	if utf8.RuneCountInString(tail) > maxClosingTail {
		return false
	}
	for _, r := range tail {
		if !unicode.IsPunct(r) && !unicode.IsSpace(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

func findScript(s string, names []string) (string, rune, bool) {
	for _, name := range names {
		table, ok := unicode.Scripts[name]
		if !ok {
			continue
		}
		for _, r := range s {
			if unicode.Is(table, r) {
				return name, r, true
			}
		}
	}
	return "", 0, false
}

// CompilePatterns compiles configured slang patterns.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile slang pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
