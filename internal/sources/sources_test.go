package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gleanlang/glean/internal/record"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "receipts.csv", "text,amount\n\"Uber ride, downtown\",47.50\nLunch at cafe,12.00\n")

	rows, err := Load(context.Background(), dir, "receipts.csv", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[0]["text"]; got != "Uber ride, downtown" {
		t.Errorf("text = %q", got)
	}
	if got := rows[0]["amount"]; got != "47.50" {
		t.Errorf("amount = %v, want the raw string", got)
	}
	if got := rows[1]["text"]; got != "Lunch at cafe" {
		t.Errorf("second text = %q", got)
	}
}

func TestLoadCSVHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "text,amount\n")

	rows, err := Load(context.Background(), dir, "empty.csv", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestLoadJSONArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.json", `[{"text": "first", "id": 1}, {"text": "second", "id": 2}]`)

	rows, err := Load(context.Background(), dir, "data.json", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[0]["text"]; got != "first" {
		t.Errorf("rows[0].text = %q", got)
	}
	if got := rows[1]["id"]; got != float64(2) {
		t.Errorf("rows[1].id = %v (%T)", got, got)
	}
}

func TestLoadJSONSingleObject(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.json", `{"text": "only row", "priority": "high"}`)

	rows, err := Load(context.Background(), dir, "one.json", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0]["priority"]; got != "high" {
		t.Errorf("priority = %v", got)
	}
}

func TestLoadJSONEmptyArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "none.json", `[]`)

	rows, err := Load(context.Background(), dir, "none.json", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestLoadJSONStringElements(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lines.json", `["first snippet", "second snippet"]`)

	rows, err := Load(context.Background(), dir, "lines.json", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[1]["text"]; got != "second snippet" {
		t.Errorf("rows[1].text = %q", got)
	}
}

func TestLoadJSONScalarTopLevelFails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `42`)

	if _, err := Load(context.Background(), dir, "bad.json", nil, nil); err == nil {
		t.Fatal("expected error for scalar top-level JSON")
	}
}

func TestLoadFolderSortedWithFilenames(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.Mkdir(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, docs, "b.txt", "Second document")
	writeFile(t, docs, "a.txt", "First document")
	writeFile(t, docs, "c.md", "Third document")

	rows, err := Load(context.Background(), dir, "docs", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	wantText := []string{"First document", "Second document", "Third document"}
	wantName := []string{"a.txt", "b.txt", "c.md"}
	for i := range rows {
		if got := rows[i]["text"]; got != wantText[i] {
			t.Errorf("rows[%d].text = %q, want %q", i, got, wantText[i])
		}
		if got := rows[i][record.KeyFilename]; got != wantName[i] {
			t.Errorf("rows[%d]._filename = %v, want %q", i, got, wantName[i])
		}
	}
}

func TestLoadFolderSkipsHiddenAndEmpty(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.Mkdir(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, docs, ".hidden", "should not appear")
	writeFile(t, docs, "blank.txt", "")
	writeFile(t, docs, "spaces.txt", "   \n\t\n")
	writeFile(t, docs, "real.txt", "kept")

	rows, err := Load(context.Background(), dir, "docs", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0]["text"]; got != "kept" {
		t.Errorf("text = %q", got)
	}
}

func TestLoadFolderParsesJSONFiles(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.Mkdir(docs, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, docs, "a.json", `{"text": "from object", "id": 1}`)
	writeFile(t, docs, "b.json", `[{"text": "from array", "id": 2}, {"text": "also array", "id": 3}]`)
	writeFile(t, docs, "c.txt", "plain text")

	rows, err := Load(context.Background(), dir, "docs", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	for i, want := range []float64{1, 2, 3} {
		if got := rows[i]["id"]; got != want {
			t.Errorf("rows[%d].id = %v, want %v", i, got, want)
		}
		if _, ok := rows[i][record.KeyFilename]; ok {
			t.Errorf("rows[%d] parsed from JSON should not carry _filename", i)
		}
	}
	if got := rows[3]["text"]; got != "plain text" {
		t.Errorf("rows[3].text = %q", got)
	}
	if got := rows[3][record.KeyFilename]; got != "c.txt" {
		t.Errorf("rows[3]._filename = %v", got)
	}
}

func TestLoadFolderEmpty(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	if err := os.Mkdir(docs, 0o755); err != nil {
		t.Fatal(err)
	}

	rows, err := Load(context.Background(), dir, "docs", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestLoadTextBlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "A single note about a purchase.\n")

	rows, err := Load(context.Background(), dir, "notes.txt", nil, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0]["text"]; got != "A single note about a purchase." {
		t.Errorf("text = %q", got)
	}
	if _, ok := rows[0][record.KeyFilename]; ok {
		t.Error("standalone file should not carry _filename")
	}
}

func TestLoadMissingSource(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(context.Background(), dir, "nope.csv", nil, nil); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestLoadHTTPArray(t *testing.T) {
	var gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"text": "ticket one"},
			{"text": "ticket two"},
		})
	}))
	defer srv.Close()

	headers := map[string]string{
		"Authorization": "Bearer tok",
		"Accept":        "application/json",
	}
	rows, err := Load(context.Background(), "", srv.URL, headers, srv.Client())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got := rows[1]["text"]; got != "ticket two" {
		t.Errorf("rows[1].text = %q", got)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept header = %q", gotAccept)
	}
}

func TestLoadHTTPObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"text": "single payload"})
	}))
	defer srv.Close()

	rows, err := Load(context.Background(), "", srv.URL, nil, srv.Client())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if got := rows[0]["text"]; got != "single payload" {
		t.Errorf("text = %q", got)
	}
}

func TestLoadHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := Load(context.Background(), "", srv.URL, nil, srv.Client()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
