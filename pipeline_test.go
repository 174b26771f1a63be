package glean

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gleanlang/glean/internal/providers"
	"github.com/gleanlang/glean/internal/record"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expenseSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema("expense").
		Text("merchant").
		Money("amount").
		Enum("category", "travel", "meals", "equipment").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPipelineProgramDefaults(t *testing.T) {
	prog, err := NewPipeline().
		Source("receipts.csv").
		Extract(expenseSchema(t)).
		Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}

	if prog.ExtractTarget != "expense" {
		t.Errorf("extract target = %q", prog.ExtractTarget)
	}
	if prog.Source != "receipts.csv" {
		t.Errorf("source = %q", prog.Source)
	}
	if prog.Output != "output.json" {
		t.Errorf("output = %q, want default", prog.Output)
	}
	if _, ok := prog.Schemas["expense"]; !ok {
		t.Error("schema not registered in program")
	}
}

func TestPipelineSettings(t *testing.T) {
	prog, err := NewPipeline().
		Source("tickets.json").
		Classify("positive", "negative").
		Model("openai/gpt-4o").
		Temperature(0.2).
		TopP(0.9).
		Seed(42).
		Header("Authorization", "Bearer tok").
		Output("sorted.json").
		Program()
	if err != nil {
		t.Fatalf("Program: %v", err)
	}

	if prog.Classify == nil || prog.Classify.FieldName != "classification" {
		t.Fatalf("classify = %+v", prog.Classify)
	}
	if got := prog.Classify.Categories; len(got) != 2 || got[0] != "positive" {
		t.Errorf("categories = %v", got)
	}
	if prog.Settings.Model != "openai/gpt-4o" {
		t.Errorf("model = %q", prog.Settings.Model)
	}
	if prog.Settings.Temperature == nil || *prog.Settings.Temperature != 0.2 {
		t.Errorf("temperature = %v", prog.Settings.Temperature)
	}
	if prog.Settings.TopP == nil || *prog.Settings.TopP != 0.9 {
		t.Errorf("top_p = %v", prog.Settings.TopP)
	}
	if prog.Settings.Seed == nil || *prog.Settings.Seed != 42 {
		t.Errorf("seed = %v", prog.Settings.Seed)
	}
	if prog.Settings.Headers["Authorization"] != "Bearer tok" {
		t.Errorf("headers = %v", prog.Settings.Headers)
	}
	if prog.Output != "sorted.json" {
		t.Errorf("output = %q", prog.Output)
	}
}

func TestPipelineExtractClassifyExclusive(t *testing.T) {
	_, err := NewPipeline().
		Source("r.csv").
		Extract(expenseSchema(t)).
		Classify("a", "b").
		Program()
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("extract-then-classify error = %v", err)
	}

	_, err = NewPipeline().
		Source("r.csv").
		Classify("a", "b").
		Extract(expenseSchema(t)).
		Program()
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("classify-then-extract error = %v", err)
	}
}

func TestPipelineErrorsCollectFirstWins(t *testing.T) {
	_, err := NewPipeline().
		Source("r.csv").
		Extract(nil).
		Flag("not a rule").
		Program()
	if err == nil || !strings.Contains(err.Error(), "nil schema") {
		t.Errorf("error = %v, want the Extract error first", err)
	}
}

func TestPipelineFlagRejectsEmptyRule(t *testing.T) {
	_, err := NewPipeline().
		Source("r.csv").
		Extract(expenseSchema(t)).
		Flag("garbage with no operator").
		Program()
	if err == nil || !strings.Contains(err.Error(), "no conditions") {
		t.Errorf("error = %v", err)
	}
}

func TestPipelineRequiresVerb(t *testing.T) {
	_, err := NewPipeline().Source("r.csv").Program()
	if err == nil || !strings.Contains(err.Error(), "neither Extract nor Classify") {
		t.Errorf("error = %v", err)
	}
}

func TestPipelineRunMockEndToEnd(t *testing.T) {
	dir := t.TempDir()
	csv := "text\nUber ride to airport $47.50\nTeam lunch at Chipotle $62.30\n"
	if err := os.WriteFile(filepath.Join(dir, "receipts.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	records, summary, err := NewPipeline().
		Source("receipts.csv").
		Extract(expenseSchema(t)).
		Flag("amount OVER 50").
		Output("expenses.json").
		BaseDir(dir).
		Mock().
		Logger(quietLogger()).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if summary.Clean != 1 || summary.Flagged != 1 || summary.Errors != 0 {
		t.Errorf("summary = %+v", summary)
	}

	first := records[0]
	if first["merchant"] != "Uber" {
		t.Errorf("merchant = %v", first["merchant"])
	}
	if first["amount"] != 47.5 {
		t.Errorf("amount = %v", first["amount"])
	}
	if first["category"] != "travel" {
		t.Errorf("category = %v", first["category"])
	}
	if first[record.KeyFlagged] != false {
		t.Errorf("_flagged = %v", first[record.KeyFlagged])
	}

	second := records[1]
	if second["merchant"] != "Chipotle" {
		t.Errorf("merchant = %v", second["merchant"])
	}
	if second[record.KeyFlagged] != true {
		t.Errorf("_flagged = %v", second[record.KeyFlagged])
	}
	reasons, ok := second[record.KeyFlagReasons].([]string)
	if !ok || len(reasons) != 1 || reasons[0] != "amount OVER 50" {
		t.Errorf("_flag_reasons = %v", second[record.KeyFlagReasons])
	}

	// The artifact lands next to the source, in input order.
	data, err := os.ReadFile(filepath.Join(dir, "expenses.json"))
	if err != nil {
		t.Fatalf("output artifact: %v", err)
	}
	var written []map[string]any
	if err := json.Unmarshal(data, &written); err != nil {
		t.Fatalf("output artifact parse: %v", err)
	}
	if len(written) != 2 || written[0]["merchant"] != "Uber" {
		t.Errorf("artifact = %v", written)
	}
}

func TestPipelineRunNoSource(t *testing.T) {
	_, _, err := NewPipeline().
		Extract(expenseSchema(t)).
		Mock().
		Logger(quietLogger()).
		Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no source configured") {
		t.Errorf("error = %v", err)
	}
}

func TestPipelineRunOnePlainText(t *testing.T) {
	rec, err := NewPipeline().
		Extract(expenseSchema(t)).
		Mock().
		Logger(quietLogger()).
		RunOne(context.Background(), "Uber ride to airport $47.50")
	if err != nil {
		t.Fatalf("RunOne: %v", err)
	}

	if rec["merchant"] != "Uber" {
		t.Errorf("merchant = %v", rec["merchant"])
	}
	if rec[record.KeySource] != "Uber ride to airport $47.50" {
		t.Errorf("_source = %v", rec[record.KeySource])
	}
	if rec[record.KeyFlagged] != false {
		t.Errorf("_flagged = %v", rec[record.KeyFlagged])
	}
}

func TestPipelineRunOneStructuredRow(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `{"merchant": "Uber", "amount": 47.5, "category": "travel"}`

	p := NewPipeline().
		Extract(expenseSchema(t)).
		Logger(quietLogger())
	p.client = mock

	rec, err := p.RunOne(context.Background(), `{"vendor": "Uber", "total": 47.5}`)
	if err != nil {
		t.Fatalf("RunOne: %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	// JSON-object input is replaced by its serialized non-internal fields.
	if reqs[0].User != `{"total":47.5,"vendor":"Uber"}` {
		t.Errorf("model input = %q", reqs[0].User)
	}
	if rec["merchant"] != "Uber" {
		t.Errorf("merchant = %v", rec["merchant"])
	}
}

func TestPipelineRunOneEmptyText(t *testing.T) {
	_, err := NewPipeline().
		Extract(expenseSchema(t)).
		Mock().
		Logger(quietLogger()).
		RunOne(context.Background(), "   \n")
	if err == nil || !strings.Contains(err.Error(), "empty input") {
		t.Errorf("error = %v", err)
	}
}

func TestPipelineClassifyRunOne(t *testing.T) {
	mock := providers.NewMockClient()
	mock.ResponseText = `{"classification": "positive"}`

	p := NewPipeline().
		Classify("positive", "negative").
		Logger(quietLogger())
	p.client = mock

	rec, err := p.RunOne(context.Background(), "Love the new release!")
	if err != nil {
		t.Fatalf("RunOne: %v", err)
	}
	if rec["classification"] != "positive" {
		t.Errorf("classification = %v", rec["classification"])
	}
}
