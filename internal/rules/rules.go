// Package rules evaluates FLAG WHEN rules against extracted records. Rules
// run deterministically after extraction; no model call is involved.
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gleanlang/glean/internal/lang"
	"github.com/gleanlang/glean/internal/record"
)

// Evaluator holds the flag rules of one compiled program.
type Evaluator struct {
	Rules []lang.FlagRule
}

// NewEvaluator wraps rules for evaluation.
func NewEvaluator(rules []lang.FlagRule) *Evaluator {
	return &Evaluator{Rules: rules}
}

// Evaluate returns a reason string for every rule rec trips. The result is
// never nil so it serializes as a JSON array even when empty.
func (e *Evaluator) Evaluate(rec record.Record) []string {
	reasons := []string{}
	for _, rule := range e.Rules {
		if evalRule(rule, rec) {
			reasons = append(reasons, describe(rule))
		}
	}
	return reasons
}

// evalRule folds condition results strictly left to right. AND and OR have
// equal precedence; a rule with no conditions never fires.
func evalRule(rule lang.FlagRule, rec record.Record) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	results := make([]bool, len(rule.Conditions))
	for i, c := range rule.Conditions {
		results[i] = evalCond(c, rec)
	}
	acc := results[0]
	for i, conj := range rule.Conjunctions {
		if i+1 >= len(results) {
			break
		}
		if conj == "AND" {
			acc = acc && results[i+1]
		} else {
			acc = acc || results[i+1]
		}
	}
	return acc
}

// evalCond compares one record field. Missing fields and values that resist
// numeric coercion make the condition false rather than erroring.
func evalCond(cond lang.Condition, rec record.Record) bool {
	value, ok := rec[cond.Field]
	if !ok || value == nil {
		return false
	}
	switch cond.Op {
	case "OVER":
		v, vok := toFloat(value)
		t, tok := toFloat(cond.Value)
		return vok && tok && v > t
	case "UNDER":
		v, vok := toFloat(value)
		t, tok := toFloat(cond.Value)
		return vok && tok && v < t
	case "IS":
		return strings.EqualFold(strings.TrimSpace(stringify(value)), strings.TrimSpace(cond.Value))
	}
	return false
}

// describe renders a rule back to its source form, conjunctions included,
// for the _flag_reasons list.
func describe(rule lang.FlagRule) string {
	parts := make([]string, 0, len(rule.Conditions)*2)
	for i, c := range rule.Conditions {
		if i > 0 && i-1 < len(rule.Conjunctions) {
			parts = append(parts, rule.Conjunctions[i-1])
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", c.Field, c.Op, c.Value))
	}
	return strings.Join(parts, " ")
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
