// Package compile turns a parsed program into an execution plan: the system
// prompt and JSON schema handed to the model, the deterministic flag
// evaluator, and the optional draft prompt. Compilation catches every
// configuration error before a single model call is made.
package compile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gleanlang/glean/internal/lang"
	"github.com/gleanlang/glean/internal/rules"
)

// Plan verbs.
const (
	VerbExtract  = "EXTRACT"
	VerbClassify = "CLASSIFY"
)

// DefaultOutput is used when a program has no OUTPUT directive.
const DefaultOutput = "output.json"

// DraftPrompt is the compiled second-pass prompt. System may contain
// {field} placeholders that the runtime substitutes with record values.
type DraftPrompt struct {
	FieldName string
	System    string
}

// Plan is the compiled form of one program. It is immutable after Compile;
// the runtime only reads it, so one Plan serves concurrent workers.
type Plan struct {
	Source     string
	Output     string
	Verb       string
	Schema     *lang.Schema
	Schemas    map[string]*lang.Schema
	System     string
	JSONSchema map[string]any
	Rules      *rules.Evaluator
	Draft      *DraftPrompt
	Settings   lang.Settings

	validator *jsonschema.Schema
}

// ValidateJSON checks a coerced record against the plan's JSON schema.
func (p *Plan) ValidateJSON(v any) error {
	return p.validator.Validate(v)
}

// Option configures compilation.
type Option func(*options)

type options struct {
	baseDir string
}

// WithBaseDir sets the directory that source paths and the prompts/ and
// examples/ companion directories are resolved against. Default ".".
func WithBaseDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.baseDir = dir
		}
	}
}

// Compile builds the execution plan for prog. A program with a CLASSIFY
// directive compiles as a classification regardless of any EXTRACT line.
func Compile(prog *lang.Program, opts ...Option) (*Plan, error) {
	o := options{baseDir: "."}
	for _, opt := range opts {
		opt(&o)
	}

	var context string
	if prog.PromptName != "" {
		var err error
		if context, err = loadPromptContext(o.baseDir, prog.PromptName); err != nil {
			return nil, err
		}
	}
	var pairs []examplePair
	if prog.ExamplesName != "" {
		var err error
		if pairs, err = loadExamples(o.baseDir, prog.ExamplesName); err != nil {
			return nil, err
		}
	}

	var (
		plan *Plan
		err  error
	)
	if prog.Classify != nil {
		plan, err = compileClassify(prog, context, pairs)
	} else {
		plan, err = compileExtract(prog, context, pairs)
	}
	if err != nil {
		return nil, err
	}

	if prog.Draft != nil {
		if plan.Draft, err = buildDraftPrompt(prog.Draft, o.baseDir); err != nil {
			return nil, err
		}
	}

	if plan.validator, err = compileValidator(plan.JSONSchema); err != nil {
		return nil, err
	}

	plan.Source = prog.Source
	plan.Output = prog.Output
	if plan.Output == "" {
		plan.Output = DefaultOutput
	}
	plan.Schemas = prog.Schemas
	plan.Rules = rules.NewEvaluator(prog.Flags)
	plan.Settings = prog.Settings
	return plan, nil
}

func compileExtract(prog *lang.Program, context string, pairs []examplePair) (*Plan, error) {
	schema, ok := prog.Schemas[prog.ExtractTarget]
	if !ok {
		return nil, fmt.Errorf("schema %q not defined", prog.ExtractTarget)
	}

	b := newSchemaBuilder(prog.Schemas)
	fragment, err := b.objectFragment(schema)
	if err != nil {
		return nil, err
	}

	fields := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		fields[i] = b.promptLine(f)
	}
	system, err := renderPrompt("extract.tmpl", extractView{
		Context:  context,
		Fields:   fields,
		Examples: exampleViews(pairs),
	})
	if err != nil {
		return nil, err
	}

	return &Plan{
		Verb:       VerbExtract,
		Schema:     schema,
		System:     system,
		JSONSchema: fragment,
	}, nil
}

func compileClassify(prog *lang.Program, context string, pairs []examplePair) (*Plan, error) {
	c := prog.Classify

	system, err := renderPrompt("classify.tmpl", classifyView{
		Context:    context,
		Field:      c.FieldName,
		Categories: strings.Join(c.Categories, ", "),
		Examples:   exampleViews(pairs),
	})
	if err != nil {
		return nil, err
	}

	// A synthetic single-field schema keeps validation and flag evaluation
	// verb-uniform downstream.
	schema := &lang.Schema{
		Name:   "_classify",
		Fields: []lang.FieldDef{{Name: c.FieldName, Type: lang.TypeEnum, EnumValues: c.Categories}},
	}
	fragment := map[string]any{
		"type": "object",
		"properties": map[string]any{
			c.FieldName: map[string]any{"type": "string", "enum": c.Categories},
		},
		"required": []string{c.FieldName},
	}

	return &Plan{
		Verb:       VerbClassify,
		Schema:     schema,
		System:     system,
		JSONSchema: fragment,
	}, nil
}

func compileValidator(fragment map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(fragment)
	if err != nil {
		return nil, fmt.Errorf("marshal json schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan.json", bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add json schema resource: %w", err)
	}
	schema, err := c.Compile("plan.json")
	if err != nil {
		return nil, fmt.Errorf("compile json schema: %w", err)
	}
	return schema, nil
}
