package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/avast/retry-go/v4"

	"github.com/gleanlang/glean/internal/providers"
	"github.com/gleanlang/glean/internal/record"
)

// placeholderRe matches {fieldName} tokens in draft prompt templates.
var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// draftPass runs the optional second model call that writes one extra field
// into the record. It never fails the record: problems are logged and the
// record stays as extracted.
func (e *Extractor) draftPass(ctx context.Context, rec record.Record) {
	d := e.plan.Draft
	if d == nil {
		return
	}

	system := resolveDraftPrompt(d.System, rec)
	payload, err := json.Marshal(rec)
	if err != nil {
		e.logger.Warn("draft skipped: record not serializable", "field", d.FieldName, "error", err)
		return
	}

	attempt := 0
	content, err := retry.DoWithData(func() (string, error) {
		attempt++
		return e.chatOnce(ctx, system, string(payload), "draft", attempt)
	}, e.retryOpts(ctx)...)
	if err != nil {
		e.logger.Warn("draft call failed", "field", d.FieldName, "error", err)
		return
	}

	value := draftValue(content, d.FieldName)
	if value == nil {
		e.logger.Debug("draft returned nothing usable", "field", d.FieldName)
		return
	}

	rec[d.FieldName] = value
	rec[record.KeyDraftPrompt] = system
}

// resolveDraftPrompt substitutes record values into {field} placeholders.
// Internal keys are never substituted; unknown placeholders stay literal.
func resolveDraftPrompt(system string, rec record.Record) string {
	return placeholderRe.ReplaceAllStringFunc(system, func(m string) string {
		name := m[1 : len(m)-1]
		if record.IsMetadata(name) {
			return m
		}
		v, ok := rec[name]
		if !ok {
			return m
		}
		return formatValue(v)
	})
}

// draftValue interprets the draft response: a JSON object yields its target
// field, anything else is the raw text. Empty or missing values yield nil.
func draftValue(content, field string) any {
	text := strings.TrimSpace(providers.StripFences(content))
	if text == "" {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return text
	}

	v, ok := obj[field]
	if !ok || v == nil {
		return nil
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil
	}
	return v
}

// formatValue renders a record value for prompt text.
func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
