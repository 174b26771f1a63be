package glean

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gleanlang/glean/internal/lang"
)

// Schema is a built, immutable field layout plus every schema it references.
type Schema struct {
	root *lang.Schema
	all  map[string]*lang.Schema
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.root.Name
}

// SchemaBuilder declares a schema field by field. Methods chain; errors are
// collected and surface at Build.
type SchemaBuilder struct {
	schema *lang.Schema
	deps   map[string]*lang.Schema
	errs   []error
}

// NewSchema starts a schema with the given name.
func NewSchema(name string) *SchemaBuilder {
	b := &SchemaBuilder{
		schema: &lang.Schema{Name: name},
		deps:   make(map[string]*lang.Schema),
	}
	if name == "" {
		b.fail(fmt.Errorf("schema name is empty"))
	}
	return b
}

// Text declares a free-text field.
func (b *SchemaBuilder) Text(name string) *SchemaBuilder {
	return b.field(name, lang.FieldDef{Type: lang.TypeText})
}

// Money declares a numeric amount field.
func (b *SchemaBuilder) Money(name string) *SchemaBuilder {
	return b.field(name, lang.FieldDef{Type: lang.TypeMoney})
}

// Number declares a numeric field.
func (b *SchemaBuilder) Number(name string) *SchemaBuilder {
	return b.field(name, lang.FieldDef{Type: lang.TypeNumber})
}

// Bool declares a yes/no field.
func (b *SchemaBuilder) Bool(name string) *SchemaBuilder {
	return b.field(name, lang.FieldDef{Type: lang.TypeBool})
}

// Enum declares a field constrained to the given values.
func (b *SchemaBuilder) Enum(name string, values ...string) *SchemaBuilder {
	if len(values) == 0 {
		b.fail(fmt.Errorf("enum field %q has no values", name))
		return b
	}
	return b.field(name, lang.FieldDef{Type: lang.TypeEnum, EnumValues: values})
}

// ListOf declares a field holding a list of sub objects. The sub schema and
// its own dependencies travel with this schema.
func (b *SchemaBuilder) ListOf(name string, sub *Schema) *SchemaBuilder {
	if sub == nil {
		b.fail(fmt.Errorf("list field %q has no element schema", name))
		return b
	}
	b.absorb(sub)
	return b.field(name, lang.FieldDef{Type: lang.TypeList, RefType: sub.root.Name})
}

// Ref declares a field holding one nested sub object.
func (b *SchemaBuilder) Ref(name string, sub *Schema) *SchemaBuilder {
	if sub == nil {
		b.fail(fmt.Errorf("ref field %q has no schema", name))
		return b
	}
	b.absorb(sub)
	return b.field(name, lang.FieldDef{Type: lang.TypeRef, RefType: sub.root.Name})
}

// Build finalizes the schema. The first collected error wins.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.schema.Fields) == 0 {
		return nil, fmt.Errorf("schema %q has no fields", b.schema.Name)
	}

	all := make(map[string]*lang.Schema, len(b.deps)+1)
	for name, s := range b.deps {
		all[name] = s
	}
	all[b.schema.Name] = b.schema
	return &Schema{root: b.schema, all: all}, nil
}

func (b *SchemaBuilder) field(name string, f lang.FieldDef) *SchemaBuilder {
	if name == "" {
		b.fail(fmt.Errorf("field name is empty"))
		return b
	}
	if strings.HasPrefix(name, "_") {
		b.fail(fmt.Errorf("field %q: names starting with _ are reserved", name))
		return b
	}
	for _, existing := range b.schema.Fields {
		if existing.Name == name {
			b.fail(fmt.Errorf("field %q declared twice", name))
			return b
		}
	}
	f.Name = name
	b.schema.Fields = append(b.schema.Fields, f)
	return b
}

func (b *SchemaBuilder) absorb(sub *Schema) {
	for name, s := range sub.all {
		b.deps[name] = s
	}
}

func (b *SchemaBuilder) fail(err error) {
	b.errs = append(b.errs, err)
}

// SchemaFromJSON builds a flat schema from a JSON document of the form
//
//	{"name": "expense", "fields": {"merchant": "text", "amount": "money",
//	 "category": ["travel", "meals"]}}
//
// Field values are "text", "money", "number", "bool", or an array of enum
// values. Field order follows the document.
func SchemaFromJSON(data []byte) (*Schema, error) {
	var doc struct {
		Name   string          `json:"name"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("schema json: missing name")
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("schema json: missing fields")
	}

	b := NewSchema(doc.Name)
	if err := walkJSONFields(doc.Fields, b); err != nil {
		return nil, err
	}
	return b.Build()
}

// SchemaFromJSONFile is SchemaFromJSON over a file.
func SchemaFromJSONFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema json: %w", err)
	}
	return SchemaFromJSON(data)
}

// walkJSONFields streams the fields object with a decoder so declaration
// order survives; unmarshaling into a map would lose it.
func walkJSONFields(raw json.RawMessage, b *SchemaBuilder) error {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("parse schema fields: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("schema json: fields must be an object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("parse schema fields: %w", err)
		}
		name := tok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("parse schema field %q: %w", name, err)
		}

		switch v := value.(type) {
		case string:
			switch strings.ToLower(v) {
			case "text":
				b.Text(name)
			case "money":
				b.Money(name)
			case "number":
				b.Number(name)
			case "bool":
				b.Bool(name)
			default:
				return fmt.Errorf("schema field %q: unknown type %q", name, v)
			}
		case []any:
			values := make([]string, 0, len(v))
			for _, el := range v {
				s, ok := el.(string)
				if !ok {
					return fmt.Errorf("schema field %q: enum values must be strings", name)
				}
				values = append(values, s)
			}
			b.Enum(name, values...)
		default:
			return fmt.Errorf("schema field %q: value must be a type name or enum array", name)
		}
	}
	return nil
}
