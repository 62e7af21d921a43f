package validator

import (
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	base := Rules{
		MaxLength:      60,
		ClosingPhrase:  "감사합니다.",
		ForbiddenWords: []string{"환불", "Refund"},
	}

	tests := []struct {
		name      string
		candidate string
		rules     Rules
		code      Code
	}{
		{"valid", "맛있게 드셔주셔서 기쁩니다. 감사합니다.", base, CodeOK},
		{"valid with trailing marks", "맛있게 드셔주셔서 기쁩니다. 감사합니다. ^^", base, CodeOK},
		{"empty", "   \n", base, CodeEmpty},
		{"too long", strings.Repeat("가", 61), base, CodeTooLong},
		{"closing missing", "맛있게 드셔주셔서 기쁩니다.", base, CodeClosingMissing},
		{"closing not at end", "감사합니다. 다음에도 꼭 찾아주세요 고객님", base, CodeClosingMissing},
		{"closing duplicated", "감사합니다. 정말 감사합니다.", base, CodeClosingDuplicated},
		{"forbidden word", "환불 관련 문의는 매장으로 주세요. 감사합니다.", base, CodeForbiddenWord},
		{"forbidden word case insensitive", "No REFUND needed. 감사합니다.", base, CodeForbiddenWord},
		{"han script", "맛있게 드셔주셔서 感謝. 감사합니다.", base, CodeDisallowedScript},
		{"katakana", "アリガトウ 감사합니다.", base, CodeDisallowedScript},
		{"excessive punctuation", "정말요?! 기뻐요. 감사합니다.", base, CodeExcessivePunctuation},
		{"ellipsis", "그러셨군요... 죄송해요. 감사합니다.", base, CodeExcessivePunctuation},
		{"jamo slang", "너무 좋아요ㅋㅋㅋ 감사합니다.", base, CodeExcessiveSlang},
		{"no closing configured", "좋은 하루 되세요.", Rules{MaxLength: 50}, CodeOK},
		{"scripts overridden", "感謝 합니다.", Rules{DisallowedScripts: []string{}}, CodeOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.candidate, tt.rules)
			assert.Equal(t, tt.code, res.Code, res.String())
			assert.Equal(t, tt.code == CodeOK, res.Valid)
		})
	}
}

func TestValidate_ClosingPunctuationIsNotExcessive(t *testing.T) {
	rules := Rules{ClosingPhrase: "또 만나요!!"}
	res := Validate("주문해 주셔서 고마워요. 또 만나요!!", rules)
	assert.True(t, res.Valid, res.String())
}

func TestValidate_ConfiguredSlang(t *testing.T) {
	patterns, err := CompilePatterns([]string{`(?i)lol`})
	require.NoError(t, err)

	res := Validate("That was great lol", Rules{SlangPatterns: patterns})
	assert.Equal(t, CodeExcessiveSlang, res.Code)
}

func TestCompilePatterns_Invalid(t *testing.T) {
	_, err := CompilePatterns([]string{"("})
	assert.Error(t, err)
}

func TestValidate_ValidRepliesRespectLengthAndClosing(t *testing.T) {
	rules := Rules{MaxLength: 40, ClosingPhrase: "또 오세요"}
	candidates := []string{
		"맛있게 드셔주셔서 감사해요. 또 오세요",
		"리뷰 고마워요. 또 오세요.",
		strings.Repeat("좋", 35) + " 또 오세요",
		"또 오세요 그리고 또 오세요",
		"짧아요",
	}
	for _, c := range candidates {
		res := Validate(c, rules)
		if !res.Valid {
			continue
		}
		assert.LessOrEqual(t, utf8.RuneCountInString(c), rules.MaxLength)
		assert.Equal(t, 1, strings.Count(c, rules.ClosingPhrase))
	}
}

func TestValidate_DoesNotMutateRules(t *testing.T) {
	rules := Rules{ForbiddenWords: []string{" 환불 "}, SlangPatterns: []*regexp.Regexp{}}
	Validate("환불", rules)
	assert.Equal(t, " 환불 ", rules.ForbiddenWords[0])
}
