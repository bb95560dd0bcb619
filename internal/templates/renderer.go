package templates

import (
	"bytes"
	"fmt"
	"text/template"
)

// Vars are the values a template may reference, e.g. {{.Name}}.
type Vars map[string]any

// Renderer renders message templates.
type Renderer struct{}

// Render compiles the provided template text with strict missing-key semantics.
func (Renderer) Render(name, tmpl string, data Vars) (string, error) {
	if tmpl == "" {
		return "", fmt.Errorf("templates: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("templates: parse: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(data)); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return buf.String(), nil
}

// Check parses tmpl without executing it.
func (Renderer) Check(tmpl string) error {
	if _, err := template.New("check").Parse(tmpl); err != nil {
		return fmt.Errorf("templates: parse: %w", err)
	}
	return nil
}
