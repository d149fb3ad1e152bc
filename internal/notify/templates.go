// Package notify renders notification templates and delivers them through
// the external messaging gateway.
package notify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

var ErrTemplateNotFound = errors.New("notification template not found")

// Template is one message template. Subject and Body use Go template syntax
// over the notification's context variables.
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Registry holds the named notification templates.
type Registry struct {
	templates map[string]Template
}

// NewRegistry loads the built-in templates, then overlays the optional
// override file so deployments can adjust wording without a rebuild.
func NewRegistry(overridePath string) (*Registry, error) {
	templates := make(map[string]Template)
	if err := yaml.Unmarshal(defaultTemplates, &templates); err != nil {
		return nil, fmt.Errorf("parse built-in templates: %w", err)
	}

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read template overrides: %w", err)
			}
		} else {
			overrides := make(map[string]Template)
			if err := yaml.Unmarshal(data, &overrides); err != nil {
				return nil, fmt.Errorf("parse template overrides: %w", err)
			}
			for name, tpl := range overrides {
				templates[name] = tpl
			}
		}
	}

	return &Registry{templates: templates}, nil
}

// Render produces the subject and body for a named template.
func (r *Registry) Render(name string, vars map[string]string) (subject, body string, err error) {
	tpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	subject, err = render(name+":subject", tpl.Subject, vars)
	if err != nil {
		return "", "", err
	}
	body, err = render(name+":body", tpl.Body, vars)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func render(name, text string, vars map[string]string) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return sb.String(), nil
}
