// Package prompt renders the system and user prompts sent to the
// text-generation service.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Prompt names.
const (
	Analyze  = "analyze"
	Generate = "generate"
	Score    = "score"
)

//go:embed defaults/*.md
var defaults embed.FS

// Rendered is a prompt pair ready to send.
type Rendered struct {
	System string
	User   string
}

// Loader resolves prompt templates from a directory with a fallback hierarchy:
// <dir>/<platform>/<name>.md, then <dir>/default/<name>.md, then the built-in
// template. Every template must define "system" and "user".
type Loader struct {
	baseDir string
}

// NewLoader creates a loader rooted at baseDir. An empty baseDir uses the
// built-in templates only.
func NewLoader(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Render resolves and executes the named template for a platform.
func (l *Loader) Render(platform, name string, data map[string]any) (Rendered, error) {
	content, source, err := l.resolve(platform, name)
	if err != nil {
		return Rendered{}, err
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(content)
	if err != nil {
		return Rendered{}, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	var out Rendered
	if out.System, err = execute(tmpl, "system", data); err != nil {
		return Rendered{}, fmt.Errorf("render prompt %s: %w", source, err)
	}
	if out.User, err = execute(tmpl, "user", data); err != nil {
		return Rendered{}, fmt.Errorf("render prompt %s: %w", source, err)
	}
	return out, nil
}

func (l *Loader) resolve(platform, name string) (string, string, error) {
	if l.baseDir != "" {
		var candidates []string
		if platform != "" {
			candidates = append(candidates, filepath.Join(l.baseDir, platform, name+".md"))
		}
		candidates = append(candidates, filepath.Join(l.baseDir, "default", name+".md"))

		for _, path := range candidates {
			data, err := os.ReadFile(path)
			if err == nil {
				return string(data), path, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", "", fmt.Errorf("read prompt %s: %w", path, err)
			}
		}
	}

	path := "defaults/" + name + ".md"
	data, err := defaults.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("no prompt found for platform=%q name=%q", platform, name)
	}
	slog.Debug("using built-in prompt", "name", name)
	return string(data), "builtin:" + path, nil
}

func execute(tmpl *template.Template, part string, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, part, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

var funcs = template.FuncMap{
	"join": strings.Join,
}
