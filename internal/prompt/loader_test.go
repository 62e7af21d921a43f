package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_BuiltinDefaults(t *testing.T) {
	l := NewLoader("")

	for _, name := range []string{Analyze, Generate, Score} {
		out, err := l.Render("baemin", name, map[string]any{
			"Rating":         5,
			"Text":           "맛있어요",
			"StoreType":      "delivery-only restaurant",
			"Language":       "Korean",
			"Author":         "철수",
			"Budget":         200,
			"ClosingPhrase":  "감사합니다.",
			"ForbiddenWords": []string{"환불"},
			"Reply":          "감사합니다.",
			"MaxLength":      300,
		})
		require.NoError(t, err, name)
		assert.NotEmpty(t, out.System, name)
		assert.Contains(t, out.User, "5 / 5", name)
	}
}

func TestLoader_GenerateIncludesMitigation(t *testing.T) {
	out, err := NewLoader("").Render("", Generate, map[string]any{
		"Language":       "Korean",
		"Author":         "고객",
		"Budget":         120,
		"ForbiddenWords": []string{"환불", "배달비"},
		"NoQuote":        true,
	})
	require.NoError(t, err)
	assert.Contains(t, out.System, "환불, 배달비")
	assert.Contains(t, out.System, "Do not quote")
	assert.Contains(t, out.User, "고객님")
}

func TestLoader_FallbackHierarchy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "default"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "coupang"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default", "score.md"),
		[]byte(`{{define "system"}}default system{{end}}{{define "user"}}default {{.Reply}}{{end}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coupang", "score.md"),
		[]byte(`{{define "system"}}coupang system{{end}}{{define "user"}}coupang {{.Reply}}{{end}}`), 0o644))

	l := NewLoader(dir)

	out, err := l.Render("coupang", Score, map[string]any{"Reply": "r"})
	require.NoError(t, err)
	assert.Equal(t, "coupang system", out.System)
	assert.Equal(t, "coupang r", out.User)

	out, err = l.Render("yogiyo", Score, map[string]any{"Reply": "r"})
	require.NoError(t, err)
	assert.Equal(t, "default r", out.User)

	out, err = l.Render("yogiyo", Analyze, map[string]any{"Rating": 3})
	require.NoError(t, err)
	assert.Contains(t, out.User, "3 / 5")
}

func TestLoader_MissingPart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "default"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default", "score.md"),
		[]byte(`{{define "system"}}only system{{end}}`), 0o644))

	_, err := NewLoader(dir).Render("", Score, nil)
	assert.Error(t, err)
}

func TestLoader_UnknownName(t *testing.T) {
	_, err := NewLoader("").Render("", "nope", nil)
	assert.Error(t, err)
}
