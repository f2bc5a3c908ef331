package template

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"regexp"
	"strings"
)

// Engine renders email bodies using Go's html/template package.
type Engine struct {
	templates *template.Template
}

// NewEngine creates a new template engine by loading all *.html templates from the given directory.
func NewEngine(templatesDir string) (*Engine, error) {
	tmpl, err := template.ParseGlob(filepath.Join(templatesDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("parsing templates from %s: %w", templatesDir, err)
	}

	return &Engine{templates: tmpl}, nil
}

// Render executes the named template. The ".html" suffix is optional.
func (e *Engine) Render(name string, data any) (string, error) {
	if !strings.HasSuffix(name, ".html") {
		name += ".html"
	}
	if e.templates.Lookup(name) == nil {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.String(), nil
}

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// StripHTML removes HTML tags and collapses whitespace to produce a plain-text version.
func StripHTML(s string) string {
	text := tagRe.ReplaceAllString(s, " ")

	// Decode common HTML entities
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#34;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")

	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
