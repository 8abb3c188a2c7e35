// internal/models/template.go
package models

import "strings"

// Template names an external render target.
type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Ref  string `json:"ref"` // file path or template identifier
	HTML bool   `json:"html"`
}

// ContextualTemplate binds a template to a context specification: a mapping
// from output key to a field reference. A reference without the "@" marker is
// a literal; otherwise it has the shape "@<EntityKind>.<field>".
type ContextualTemplate struct {
	ID       string            `json:"id"`
	Template Template          `json:"template"`
	Context  map[string]string `json:"context"`
}

// FieldRef is a parsed context reference.
type FieldRef struct {
	Literal string
	Kind    EntityKind
	Field   string
}

// IsLiteral reports whether the reference carries a constant value.
func (r FieldRef) IsLiteral() bool {
	return r.Kind == ""
}

// ParseFieldRef splits a context reference into its kind and field. A value
// without the "@" marker is passed through verbatim as a literal.
func ParseFieldRef(value string) FieldRef {
	if !strings.Contains(value, "@") {
		return FieldRef{Literal: value}
	}

	ref := strings.TrimPrefix(value, "@")
	kind, field, _ := strings.Cut(ref, ".")
	return FieldRef{Kind: EntityKind(kind), Field: field}
}
