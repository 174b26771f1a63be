package runtime

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gleanlang/glean/internal/lang"
	"github.com/gleanlang/glean/internal/record"
)

// validateRecord coerces rec in place against the plan schema, then runs the
// compiled JSON schema as the structural authority.
func (e *Extractor) validateRecord(rec record.Record) error {
	if err := coerceObject(rec, e.plan.Schema, e.plan.Schemas); err != nil {
		return err
	}
	if err := e.plan.ValidateJSON(map[string]any(rec)); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// coerceObject walks the schema fields, failing on missing or mistyped
// values and rewriting numeric strings as float64 in place. Extra keys pass
// untouched; booleans are never coerced.
func coerceObject(obj map[string]any, schema *lang.Schema, schemas map[string]*lang.Schema) error {
	for _, f := range schema.Fields {
		v, ok := obj[f.Name]
		if !ok {
			return fmt.Errorf("missing field %q", f.Name)
		}

		switch f.Type {
		case lang.TypeMoney, lang.TypeNumber:
			n, err := coerceNumber(v)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
			obj[f.Name] = n

		case lang.TypeEnum:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("field %q: expected one of %s, got %T", f.Name, strings.Join(f.EnumValues, ", "), v)
			}
			if !slices.Contains(f.EnumValues, s) {
				return fmt.Errorf("field %q: %q is not one of %s", f.Name, s, strings.Join(f.EnumValues, ", "))
			}

		case lang.TypeBool:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("field %q: expected true or false, got %T", f.Name, v)
			}

		case lang.TypeList:
			items, ok := v.([]any)
			if !ok {
				return fmt.Errorf("field %q: expected an array, got %T", f.Name, v)
			}
			sub, ok := schemas[f.RefType]
			if !ok {
				return fmt.Errorf("field %q: unknown schema %q", f.Name, f.RefType)
			}
			for i, item := range items {
				el, ok := item.(map[string]any)
				if !ok {
					return fmt.Errorf("field %q[%d]: expected an object, got %T", f.Name, i, item)
				}
				if err := coerceObject(el, sub, schemas); err != nil {
					return fmt.Errorf("field %q[%d]: %w", f.Name, i, err)
				}
			}

		case lang.TypeRef:
			el, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("field %q: expected an object, got %T", f.Name, v)
			}
			sub, ok := schemas[f.RefType]
			if !ok {
				return fmt.Errorf("field %q: unknown schema %q", f.Name, f.RefType)
			}
			if err := coerceObject(el, sub, schemas); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}

// coerceNumber accepts JSON numbers and numeric strings.
func coerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return parsed, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}
