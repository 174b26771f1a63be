package glean

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gleanlang/glean/internal/compile"
	"github.com/gleanlang/glean/internal/config"
	"github.com/gleanlang/glean/internal/lang"
	"github.com/gleanlang/glean/internal/output"
	"github.com/gleanlang/glean/internal/providers"
	"github.com/gleanlang/glean/internal/runtime"
	"github.com/gleanlang/glean/internal/sources"
)

// Pipeline assembles a program the way a .ai source file does. Methods
// chain; configuration errors are collected and the first one surfaces at
// Program, Run, or RunOne.
type Pipeline struct {
	prog    *lang.Program
	baseDir string
	logger  *slog.Logger

	client      providers.LLMClient
	mock        bool
	concurrency int

	errs []error
}

// NewPipeline starts an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		prog:    &lang.Program{Schemas: make(map[string]*lang.Schema)},
		baseDir: ".",
	}
}

// Source sets the input source: a CSV/JSON file, a folder, an http(s) URL,
// or any text file, resolved against BaseDir.
func (p *Pipeline) Source(src string) *Pipeline {
	p.prog.Source = src
	return p
}

// Extract runs schema-directed field extraction. Mutually exclusive with
// Classify.
func (p *Pipeline) Extract(s *Schema) *Pipeline {
	if s == nil {
		p.fail(errors.New("Extract: nil schema"))
		return p
	}
	if p.prog.Classify != nil {
		p.fail(errors.New("Extract and Classify are mutually exclusive"))
		return p
	}
	p.prog.ExtractTarget = s.root.Name
	for name, sch := range s.all {
		p.prog.Schemas[name] = sch
	}
	return p
}

// Classify assigns each input one of the given categories, written to the
// "classification" field. Mutually exclusive with Extract.
func (p *Pipeline) Classify(categories ...string) *Pipeline {
	return p.ClassifyAs("classification", categories...)
}

// ClassifyAs is Classify with an explicit output field name.
func (p *Pipeline) ClassifyAs(field string, categories ...string) *Pipeline {
	if len(categories) == 0 {
		p.fail(errors.New("Classify: no categories"))
		return p
	}
	if field == "" {
		p.fail(errors.New("Classify: empty field name"))
		return p
	}
	if p.prog.ExtractTarget != "" {
		p.fail(errors.New("Extract and Classify are mutually exclusive"))
		return p
	}
	p.prog.Classify = &lang.ClassifyDef{FieldName: field, Categories: categories}
	return p
}

// Draft adds a second generation pass that writes free text into field after
// extraction.
func (p *Pipeline) Draft(field string) *Pipeline {
	return p.DraftWith(field, "")
}

// DraftWith is Draft with a named companion prompt (prompts/<name>.prompt
// under BaseDir) whose {field} placeholders resolve per record.
func (p *Pipeline) DraftWith(field, promptName string) *Pipeline {
	if field == "" {
		p.fail(errors.New("Draft: empty field name"))
		return p
	}
	p.prog.Draft = &lang.DraftDef{FieldName: field, PromptName: promptName}
	return p
}

// Prompt prepends the named companion prompt (prompts/<name>.prompt) to the
// system prompt.
func (p *Pipeline) Prompt(name string) *Pipeline {
	p.prog.PromptName = name
	return p
}

// Examples adds few-shot pairs from the named companion file
// (examples/<name>.examples).
func (p *Pipeline) Examples(name string) *Pipeline {
	p.prog.ExamplesName = name
	return p
}

// Flag adds a rule in the source syntax, e.g. "amount OVER 500 AND category
// IS travel". Records matching any rule are marked _flagged.
func (p *Pipeline) Flag(rule string) *Pipeline {
	r := lang.ParseFlagRule(rule)
	if len(r.Conditions) == 0 {
		p.fail(fmt.Errorf("flag rule %q has no conditions", rule))
		return p
	}
	p.prog.Flags = append(p.prog.Flags, r)
	return p
}

// Model overrides the configured model for this pipeline.
func (p *Pipeline) Model(model string) *Pipeline {
	p.prog.Settings.Model = model
	return p
}

// Temperature sets the sampling temperature.
func (p *Pipeline) Temperature(t float64) *Pipeline {
	p.prog.Settings.Temperature = &t
	return p
}

// TopP sets nucleus sampling.
func (p *Pipeline) TopP(t float64) *Pipeline {
	p.prog.Settings.TopP = &t
	return p
}

// Seed pins the sampling seed.
func (p *Pipeline) Seed(s int) *Pipeline {
	p.prog.Settings.Seed = &s
	return p
}

// Header adds an HTTP header sent with http(s) source fetches. Headers never
// reach the model call.
func (p *Pipeline) Header(name, value string) *Pipeline {
	if p.prog.Settings.Headers == nil {
		p.prog.Settings.Headers = make(map[string]string)
	}
	p.prog.Settings.Headers[name] = value
	return p
}

// Output sets the artifact path (default output.json), resolved against
// BaseDir unless absolute.
func (p *Pipeline) Output(path string) *Pipeline {
	p.prog.Output = path
	return p
}

// BaseDir sets the directory sources, companion files, and the output
// artifact resolve against. Default ".".
func (p *Pipeline) BaseDir(dir string) *Pipeline {
	if dir != "" {
		p.baseDir = dir
	}
	return p
}

// Concurrency sets how many rows run in parallel. Default is the configured
// value (1 unless overridden).
func (p *Pipeline) Concurrency(n int) *Pipeline {
	p.concurrency = n
	return p
}

// Mock swaps the model for offline heuristic extraction; no API key needed.
func (p *Pipeline) Mock() *Pipeline {
	p.mock = true
	return p
}

// Logger sets the logger. Default slog.Default().
func (p *Pipeline) Logger(l *slog.Logger) *Pipeline {
	p.logger = l
	return p
}

// Program builds the program declared so far. The first collected error
// wins; a pipeline with neither Extract nor Classify is an error.
func (p *Pipeline) Program() (*lang.Program, error) {
	if len(p.errs) > 0 {
		return nil, p.errs[0]
	}
	if p.prog.ExtractTarget == "" && p.prog.Classify == nil {
		return nil, errors.New("pipeline declares neither Extract nor Classify")
	}
	if p.prog.Output == "" {
		p.prog.Output = compile.DefaultOutput
	}
	return p.prog, nil
}

// Run compiles the pipeline, loads the source, extracts every row, and
// writes the output artifact. Records come back in input order; per-row
// failures become error records rather than failing the run.
func (p *Pipeline) Run(ctx context.Context) ([]Record, Summary, error) {
	prog, err := p.Program()
	if err != nil {
		return nil, Summary{}, err
	}
	if prog.Source == "" {
		return nil, Summary{}, errors.New("no source configured")
	}

	plan, err := compile.Compile(prog, compile.WithBaseDir(p.baseDir))
	if err != nil {
		return nil, Summary{}, err
	}

	_, runner, err := p.runtimeFor(ctx, plan)
	if err != nil {
		return nil, Summary{}, err
	}

	rows, err := sources.Load(ctx, p.baseDir, plan.Source, plan.Settings.Headers, nil)
	if err != nil {
		return nil, Summary{}, err
	}

	records, summary, err := runner.Run(ctx, rows)
	if err != nil {
		return nil, Summary{}, err
	}

	out := plan.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(p.baseDir, out)
	}
	if err := output.Write(out, records); err != nil {
		return nil, Summary{}, err
	}
	return records, summary, nil
}

// RunOne extracts a single record without touching sources or the output
// artifact. Text that parses as a JSON object is treated as a structured
// row; its non-internal fields become the model input.
func (p *Pipeline) RunOne(ctx context.Context, text string) (Record, error) {
	prog, err := p.Program()
	if err != nil {
		return nil, err
	}

	plan, err := compile.Compile(prog, compile.WithBaseDir(p.baseDir))
	if err != nil {
		return nil, err
	}

	ext, _, err := p.runtimeFor(ctx, plan)
	if err != nil {
		return nil, err
	}

	input := text
	if strings.TrimSpace(input) == "" {
		return nil, errors.New("empty input text")
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(text), &row); err == nil {
		if derived := runtime.RowText(row); derived != "" {
			input = derived
		}
	}
	return ext.Process(ctx, input), nil
}

// runtimeFor resolves the client and runtime knobs. An injected client (or
// Mock) skips config entirely; otherwise ~/.glean/config.yaml and GLEAN_*
// env vars apply.
func (p *Pipeline) runtimeFor(ctx context.Context, plan *compile.Plan) (*runtime.Extractor, *runtime.Runner, error) {
	cfg := config.DefaultConfig()
	client := p.client

	switch {
	case client != nil:
	case p.mock:
		client = providers.NewOfflineClient(plan.Schema, plan.Schemas)
	default:
		mgr, err := config.NewManager("")
		if err != nil {
			return nil, nil, err
		}
		cfg = mgr.Get()
		if client, err = cfg.NewLLMClient(ctx); err != nil {
			return nil, nil, err
		}
	}

	concurrency := p.concurrency
	if concurrency <= 0 {
		concurrency = cfg.Concurrency
	}

	ext := runtime.NewExtractor(runtime.ExtractorConfig{
		Client:    client,
		Plan:      plan,
		Logger:    p.log(),
		Retries:   cfg.Retries,
		Timeout:   cfg.Timeout(),
		MaxTokens: cfg.MaxTokens,
	})
	runner := runtime.NewRunner(runtime.RunnerConfig{
		Extractor:   ext,
		Logger:      p.log(),
		Concurrency: concurrency,
	})
	return ext, runner, nil
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}

func (p *Pipeline) fail(err error) {
	p.errs = append(p.errs, err)
}
