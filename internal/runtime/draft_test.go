package runtime

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gleanlang/glean/internal/compile"
	"github.com/gleanlang/glean/internal/providers"
	"github.com/gleanlang/glean/internal/record"
)

const draftSrc = `DEFINE expense:
  merchant TEXT
  amount MONEY
  category ONE OF [travel, meals, equipment]

FROM receipts.csv
EXTRACT expense
DRAFT note
OUTPUT out.json
`

const extractReply = `{"merchant":"Uber","amount":47.5,"category":"travel"}`

func writePromptFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "prompts"), 0o755); err != nil {
		t.Fatalf("mkdir prompts: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "prompts", name+".prompt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write prompt: %v", err)
	}
}

func TestResolveDraftPrompt(t *testing.T) {
	rec := record.Record{
		"merchant":       "Uber",
		"amount":         47.5,
		"reimbursed":     true,
		record.KeySource: "secret input",
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"field value", "Thank {merchant} for the ride.", "Thank Uber for the ride."},
		{"number rendering", "Total was {amount} dollars.", "Total was 47.5 dollars."},
		{"bool rendering", "Reimbursed: {reimbursed}", "Reimbursed: true"},
		{"internal key stays literal", "Source: {_source}", "Source: {_source}"},
		{"unknown stays literal", "See {nothing} here.", "See {nothing} here."},
		{"repeated", "{merchant} and {merchant}", "Uber and Uber"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveDraftPrompt(tt.template, rec); got != tt.want {
				t.Errorf("resolveDraftPrompt(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestDraftValue(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    any
	}{
		{"json object with field", `{"note":"thanks!"}`, "thanks!"},
		{"fenced json", "```json\n{\"note\":\"fenced\"}\n```", "fenced"},
		{"raw text", "Just a plain sentence.", "Just a plain sentence."},
		{"json missing field", `{"summary":"x"}`, nil},
		{"json null field", `{"note":null}`, nil},
		{"json empty string", `{"note":""}`, nil},
		{"empty response", "", nil},
		{"whitespace response", "   \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := draftValue(tt.content, "note"); got != tt.want {
				t.Errorf("draftValue(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestDraftPassAddsField(t *testing.T) {
	client := providers.NewMockClient().
		Respond(extractReply, `{"note":"Team ride to the airport."}`)
	plan := mustPlan(t, draftSrc)
	ext := newTestExtractor(t, client, plan)

	rec := ext.Process(context.Background(), "Uber ride $47.50")
	if rec["note"] != "Team ride to the airport." {
		t.Errorf("note = %v, want the draft response field", rec["note"])
	}
	if rec[record.KeyDraftPrompt] != plan.Draft.System {
		t.Errorf("_draft_prompt = %v, want the resolved system prompt", rec[record.KeyDraftPrompt])
	}
	if client.RequestCount() != 2 {
		t.Fatalf("made %d requests, want extraction + draft", client.RequestCount())
	}

	draftReq := client.Requests()[1]
	if draftReq.System != plan.Draft.System {
		t.Error("draft call did not use the draft system prompt")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(draftReq.User), &payload); err != nil {
		t.Fatalf("draft user message is not JSON: %v", err)
	}
	if payload["merchant"] != "Uber" || payload["amount"] != 47.5 {
		t.Errorf("draft payload missing extracted fields: %v", payload)
	}
	for k := range payload {
		if record.IsMetadata(k) {
			t.Errorf("draft payload leaked internal key %q", k)
		}
	}
}

func TestDraftPassSubstitutesCompanionPlaceholders(t *testing.T) {
	dir := t.TempDir()
	writePromptFile(t, dir, "tone", "Mention {merchant} politely. Never echo {_source}.")

	src := `DEFINE expense:
  merchant TEXT
  amount MONEY
  category ONE OF [travel, meals, equipment]

FROM receipts.csv
EXTRACT expense
DRAFT note WITH tone
OUTPUT out.json
`
	client := providers.NewMockClient().
		Respond(extractReply, `{"note":"Thanks, Uber!"}`)
	ext := newTestExtractor(t, client, mustPlan(t, src, compile.WithBaseDir(dir)))

	rec := ext.Process(context.Background(), "Uber ride $47.50")
	if rec["note"] != "Thanks, Uber!" {
		t.Fatalf("note = %v, want the draft response", rec["note"])
	}

	system := client.Requests()[1].System
	want := "Mention Uber politely. Never echo {_source}."
	if got, _ := rec[record.KeyDraftPrompt].(string); got != system {
		t.Error("_draft_prompt differs from the system prompt actually sent")
	}
	if len(system) < len(want) || system[:len(want)] != want {
		t.Errorf("draft system prompt starts with %q, want %q", system[:min(len(system), len(want))], want)
	}
}

func TestDraftPassRawTextResponse(t *testing.T) {
	client := providers.NewMockClient().
		Respond(extractReply, "A quick, friendly note.")
	ext := newTestExtractor(t, client, mustPlan(t, draftSrc))

	rec := ext.Process(context.Background(), "Uber ride $47.50")
	if rec["note"] != "A quick, friendly note." {
		t.Errorf("note = %v, want the raw draft text", rec["note"])
	}
}

func TestDraftPassMissingTargetSkipped(t *testing.T) {
	client := providers.NewMockClient().
		Respond(extractReply, `{"summary":"wrong field"}`)
	ext := newTestExtractor(t, client, mustPlan(t, draftSrc))

	rec := ext.Process(context.Background(), "Uber ride $47.50")
	if _, ok := rec["note"]; ok {
		t.Errorf("note = %v, want absent", rec["note"])
	}
	if _, ok := rec[record.KeyDraftPrompt]; ok {
		t.Error("_draft_prompt set although the draft produced nothing")
	}
}

func TestDraftPassFailureNonFatal(t *testing.T) {
	fastBackoff(t)
	client := providers.NewMockClient().
		Respond(extractReply).
		FailWith(providers.ErrorTypeServer, providers.ErrorTypeServer, providers.ErrorTypeServer)
	ext := newTestExtractor(t, client, mustPlan(t, draftSrc))

	rec := ext.Process(context.Background(), "Uber ride $47.50")
	if rec[record.KeyError] != nil {
		t.Fatalf("draft failure escalated to an error record: %v", rec)
	}
	if _, ok := rec["note"]; ok {
		t.Error("note set although every draft call failed")
	}
	if flagged, ok := rec[record.KeyFlagged].(bool); !ok || flagged {
		t.Errorf("_flagged = %v, want false", rec[record.KeyFlagged])
	}
	if client.RequestCount() != 4 {
		t.Errorf("made %d requests, want 1 extraction + 3 draft attempts", client.RequestCount())
	}
}

func TestDraftRunsBeforeFlags(t *testing.T) {
	src := draftSrc + "FLAG WHEN note IS urgent\n"
	client := providers.NewMockClient().
		Respond(extractReply, `{"note":"URGENT"}`)
	ext := newTestExtractor(t, client, mustPlan(t, src))

	rec := ext.Process(context.Background(), "Uber ride $47.50")
	if flagged, _ := rec[record.KeyFlagged].(bool); !flagged {
		t.Fatal("rule on the drafted field did not fire; draft must run before flags")
	}
	reasons, _ := rec[record.KeyFlagReasons].([]string)
	if len(reasons) != 1 || reasons[0] != "note IS urgent" {
		t.Errorf("_flag_reasons = %v, want [note IS urgent]", reasons)
	}
}
