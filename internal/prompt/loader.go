package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Conceptual-Machines/voxel-architect/pkg/embedded"
)

// Template names as embedded.
const (
	structureTemplate = "structure.tmpl"
	planTemplate      = "plan.tmpl"
	chunkTemplate     = "chunk.tmpl"
)

// Loader parses the embedded prompt templates.
type Loader struct {
	templates *template.Template
}

func NewPromptLoader() (*Loader, error) {
	t, err := template.ParseFS(embedded.Prompts, embedded.PromptGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	return &Loader{templates: t}, nil
}

// Render executes the named template with data.
func (l *Loader) Render(name string, data any) (string, error) {
	var b strings.Builder
	if err := l.templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return strings.TrimSpace(b.String()), nil
}
