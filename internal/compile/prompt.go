package compile

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// The system-prompt skeletons live in embedded template files so prompt
// wording can change without touching compilation logic.
//
//go:embed templates/*.tmpl
var templateFS embed.FS

var promptTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// exampleView is one few-shot pair as the templates render it.
type exampleView struct {
	Ordinal int
	Input   string
	Output  string
}

// extractView feeds extract.tmpl. Fields are pre-rendered prompt lines.
type extractView struct {
	Context  string
	Fields   []string
	Examples []exampleView
}

// classifyView feeds classify.tmpl.
type classifyView struct {
	Context    string
	Field      string
	Categories string
	Examples   []exampleView
}

// draftView feeds draft.tmpl.
type draftView struct {
	Context  string
	Field    string
	Examples []exampleView
}

// renderPrompt executes one embedded template. Template files end with a
// newline the prompt does not carry.
func renderPrompt(name string, view any) (string, error) {
	var b strings.Builder
	if err := promptTemplates.ExecuteTemplate(&b, name, view); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

func exampleViews(pairs []examplePair) []exampleView {
	views := make([]exampleView, len(pairs))
	for i, p := range pairs {
		views[i] = exampleView{Ordinal: i + 1, Input: p.Input, Output: p.Output}
	}
	return views
}
