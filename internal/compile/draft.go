package compile

import (
	"github.com/gleanlang/glean/internal/lang"
)

// buildDraftPrompt compiles the DRAFT directive into its own system prompt.
// The draft is never folded into the extraction prompt: it runs as a second
// model call over the already-extracted record. Any {field} placeholders in
// the prompt file survive compilation; the runtime substitutes them per
// record.
func buildDraftPrompt(d *lang.DraftDef, baseDir string) (*DraftPrompt, error) {
	var context string
	if d.PromptName != "" {
		var err error
		if context, err = loadPromptContext(baseDir, d.PromptName); err != nil {
			return nil, err
		}
	}
	var pairs []examplePair
	if d.ExamplesName != "" {
		var err error
		if pairs, err = loadExamples(baseDir, d.ExamplesName); err != nil {
			return nil, err
		}
	}

	system, err := renderPrompt("draft.tmpl", draftView{
		Context:  context,
		Field:    d.FieldName,
		Examples: exampleViews(pairs),
	})
	if err != nil {
		return nil, err
	}

	return &DraftPrompt{
		FieldName: d.FieldName,
		System:    system,
	}, nil
}
