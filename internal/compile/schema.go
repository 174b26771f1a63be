package compile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gleanlang/glean/internal/lang"
)

// ErrCyclicSchema reports a schema graph that references itself through
// LIST or REF fields.
var ErrCyclicSchema = errors.New("cyclic schema reference")

// schemaBuilder resolves LIST/REF references while building JSON-schema
// fragments and prompt description lines. The visiting set rejects cycles,
// which would otherwise inline forever.
type schemaBuilder struct {
	schemas  map[string]*lang.Schema
	visiting map[string]bool
}

func newSchemaBuilder(schemas map[string]*lang.Schema) *schemaBuilder {
	return &schemaBuilder{schemas: schemas, visiting: make(map[string]bool)}
}

func (b *schemaBuilder) resolve(name string) (*lang.Schema, error) {
	s, ok := b.schemas[name]
	if !ok {
		return nil, fmt.Errorf("referenced type %q not defined", name)
	}
	return s, nil
}

// objectFragment renders schema as {type: object, properties, required} with
// referenced schemas inlined. Required lists every field in declaration
// order; the model is asked for all of them.
func (b *schemaBuilder) objectFragment(schema *lang.Schema) (map[string]any, error) {
	if b.visiting[schema.Name] {
		return nil, fmt.Errorf("%w through %q", ErrCyclicSchema, schema.Name)
	}
	b.visiting[schema.Name] = true
	defer delete(b.visiting, schema.Name)

	props := make(map[string]any, len(schema.Fields))
	required := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		frag, err := b.fieldFragment(f)
		if err != nil {
			return nil, err
		}
		props[f.Name] = frag
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}, nil
}

func (b *schemaBuilder) fieldFragment(f lang.FieldDef) (map[string]any, error) {
	switch f.Type {
	case lang.TypeText:
		return map[string]any{"type": "string"}, nil
	case lang.TypeMoney, lang.TypeNumber:
		return map[string]any{"type": "number"}, nil
	case lang.TypeBool:
		return map[string]any{"type": "boolean"}, nil
	case lang.TypeEnum:
		return map[string]any{"type": "string", "enum": f.EnumValues}, nil
	case lang.TypeList:
		ref, err := b.resolve(f.RefType)
		if err != nil {
			return nil, err
		}
		items, err := b.objectFragment(ref)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case lang.TypeRef:
		ref, err := b.resolve(f.RefType)
		if err != nil {
			return nil, err
		}
		return b.objectFragment(ref)
	}
	return nil, fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
}

// promptLine renders the description of one field for the system prompt.
// Callers run objectFragment first, so references here are known to resolve.
func (b *schemaBuilder) promptLine(f lang.FieldDef) string {
	switch f.Type {
	case lang.TypeText:
		return fmt.Sprintf("- %s: text string", f.Name)
	case lang.TypeMoney:
		return fmt.Sprintf("- %s: numeric dollar amount (number only, no $ sign)", f.Name)
	case lang.TypeNumber:
		return fmt.Sprintf("- %s: numeric value", f.Name)
	case lang.TypeBool:
		return fmt.Sprintf("- %s: true or false", f.Name)
	case lang.TypeEnum:
		return fmt.Sprintf("- %s: MUST be exactly one of: %s", f.Name, strings.Join(f.EnumValues, ", "))
	case lang.TypeList:
		return fmt.Sprintf("- %s: array of %s objects, each with: %s", f.Name, f.RefType, b.fieldNames(f.RefType))
	case lang.TypeRef:
		return fmt.Sprintf("- %s: %s object with: %s", f.Name, f.RefType, b.fieldNames(f.RefType))
	}
	return fmt.Sprintf("- %s", f.Name)
}

func (b *schemaBuilder) fieldNames(ref string) string {
	s, ok := b.schemas[ref]
	if !ok {
		return ""
	}
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}
