// Package lang defines the glean source language: the Program AST and the
// line-oriented parser that produces it. A Program is immutable once parsed;
// compilation and execution live in other packages.
package lang

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeText   FieldType = "TEXT"
	TypeMoney  FieldType = "MONEY"
	TypeNumber FieldType = "NUMBER"
	TypeBool   FieldType = "BOOL"
	TypeEnum   FieldType = "ENUM"
	TypeList   FieldType = "LIST"
	TypeRef    FieldType = "REF"
)

// FieldDef is a single field declaration inside a DEFINE block.
// EnumValues is set for ENUM fields; RefType names the referenced schema
// for LIST and REF fields.
type FieldDef struct {
	Name       string
	Type       FieldType
	EnumValues []string
	RefType    string
}

// Schema is a named, ordered list of field definitions. Field order is
// significant: it drives prompt rendering and the JSON-schema required list.
type Schema struct {
	Name   string
	Fields []FieldDef
}

// Condition is one comparison inside a FLAG WHEN rule.
type Condition struct {
	Field string
	Op    string // OVER, UNDER, IS
	Value string
}

// FlagRule is an ordered list of conditions joined pairwise by the
// conjunction sequence. Evaluation is strictly left to right with no
// operator precedence.
type FlagRule struct {
	Conditions   []Condition
	Conjunctions []string // "AND" or "OR", in encounter order
}

// ClassifyDef describes a CLASSIFY directive: the output field name and the
// ordered category list.
type ClassifyDef struct {
	FieldName  string
	Categories []string
}

// DraftDef describes a DRAFT directive: a second generation pass that writes
// free text into FieldName after extraction.
type DraftDef struct {
	FieldName    string
	PromptName   string // WITH <name> on the DRAFT line
	ExamplesName string // USE <name> on the DRAFT line
}

// Settings accumulates SET directives. Nil pointers mean "not set": the
// runtime omits unset values from the request body. Headers apply to source
// fetches (FROM http://...), never to the model call.
type Settings struct {
	Model       string
	Temperature *float64
	TopP        *float64
	Seed        *int
	Headers     map[string]string
}

// Program is the parsed AST of one glean source file. Exactly one of
// ExtractTarget and Classify is set. Schemas holds every DEFINE block,
// including schemas only reachable through LIST/REF fields.
type Program struct {
	Schemas       map[string]*Schema
	Source        string
	ExtractTarget string
	Classify      *ClassifyDef
	Draft         *DraftDef
	PromptName    string
	ExamplesName  string
	Flags         []FlagRule
	Output        string
	Settings      Settings
}
