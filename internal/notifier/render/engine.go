// internal/notifier/render/engine.go
package render

import (
	"bytes"
	"path/filepath"
	"text/template"

	"gaia-notifier/internal/common/errors"
)

// Engine renders an opaque template reference against a resolved context.
type Engine interface {
	Render(ref string, context map[string]interface{}) (string, error)
}

// FileEngine renders text/template files under a root directory. The
// reference is the file name relative to the root.
type FileEngine struct {
	root string
}

func NewFileEngine(root string) *FileEngine {
	return &FileEngine{root: root}
}

func (e *FileEngine) Render(ref string, context map[string]interface{}) (string, error) {
	tmpl, err := template.ParseFiles(filepath.Join(e.root, ref))
	if err != nil {
		return "", errors.NewTemplateRenderFailedError(ref, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, context); err != nil {
		return "", errors.NewTemplateRenderFailedError(ref, err)
	}
	return buf.String(), nil
}
