package lang

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// SyntaxError reports a directive the parser recognizes but cannot accept.
// Unrecognized lines never produce a SyntaxError; they are skipped.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var (
	defineRe   = regexp.MustCompile(`^DEFINE\s+(\w+)\s*:`)
	bracketRe  = regexp.MustCompile(`\[([^\]]+)\]`)
	promptRe   = regexp.MustCompile(`\b(?:WITH|PROMPT)\s+(\w+)`)
	examplesRe = regexp.MustCompile(`\b(?:USE|EXAMPLES)\s+(\w+)`)
	leadWordRe = regexp.MustCompile(`^(\w+)`)
	wordOnlyRe = regexp.MustCompile(`^\w+$`)
	classifyRe = regexp.MustCompile(`^CLASSIFY\s+(\w+)\s+INTO\b`)
	condRe     = regexp.MustCompile(`^(\w+)\s+(OVER|UNDER|IS)\s+(.+)$`)
	conjRe     = regexp.MustCompile(`\s+(AND|OR)\s+`)
)

// parser carries the two pieces of state line handling needs: the program
// under construction and the DEFINE block currently open, if any.
type parser struct {
	prog   *Program
	schema *Schema
}

// ParseFile reads path and parses it as a glean program.
func ParseFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	return Parse(string(data))
}

// Parse turns glean source text into a Program. Blank lines and lines
// starting with "--" are skipped. Lines that match no directive are skipped
// with a debug log rather than rejected, so source files stay forgiving;
// only a malformed DEFINE header is an error.
func Parse(src string) (*Program, error) {
	p := &parser{prog: &Program{Schemas: make(map[string]*Schema)}}
	for i, raw := range strings.Split(src, "\n") {
		if err := p.line(i+1, strings.TrimRight(raw, " \t\r")); err != nil {
			return nil, err
		}
	}
	return p.prog, nil
}

func (p *parser) line(n int, line string) error {
	stripped := strings.TrimSpace(line)
	if stripped == "" || strings.HasPrefix(stripped, "--") {
		return nil
	}

	if m := defineRe.FindStringSubmatch(stripped); m != nil {
		s := &Schema{Name: m[1]}
		p.prog.Schemas[s.Name] = s
		p.schema = s
		return nil
	}
	if f := strings.Fields(stripped); f[0] == "DEFINE" {
		return &SyntaxError{Line: n, Msg: `malformed DEFINE (want "DEFINE <name>:")`}
	}

	// Indented lines belong to the open DEFINE block.
	if p.schema != nil && (line[0] == ' ' || line[0] == '\t') {
		p.fieldLine(n, stripped)
		return nil
	}
	p.schema = nil
	p.directive(n, stripped)
	return nil
}

// fieldLine parses one "<name> <type>" declaration inside a DEFINE block.
func (p *parser) fieldLine(n int, s string) {
	name, typeStr := splitFirst(s)
	if typeStr == "" {
		slog.Debug("glean: ignoring schema line without a type", "line", n, "text", s)
		return
	}
	f := FieldDef{Name: name}
	switch {
	case typeStr == "TEXT":
		f.Type = TypeText
	case typeStr == "MONEY":
		f.Type = TypeMoney
	case typeStr == "NUMBER":
		f.Type = TypeNumber
	case typeStr == "YES/NO":
		f.Type = TypeBool
	case strings.HasPrefix(typeStr, "ONE OF"):
		m := bracketRe.FindStringSubmatch(typeStr)
		if m == nil {
			slog.Debug("glean: ignoring ONE OF without bracketed values", "line", n, "text", s)
			return
		}
		f.Type = TypeEnum
		f.EnumValues = splitTrim(m[1])
	case strings.HasPrefix(typeStr, "LIST OF"):
		ref := strings.TrimSpace(typeStr[len("LIST OF"):])
		if !wordOnlyRe.MatchString(ref) {
			slog.Debug("glean: ignoring LIST OF without a type name", "line", n, "text", s)
			return
		}
		f.Type = TypeList
		f.RefType = ref
	case wordOnlyRe.MatchString(typeStr):
		// Bare identifier: reference to another DEFINE. Resolution is
		// checked at compile time, not here.
		f.Type = TypeRef
		f.RefType = typeStr
	default:
		slog.Debug("glean: ignoring field with unknown type", "line", n, "text", s)
		return
	}
	p.schema.Fields = append(p.schema.Fields, f)
}

func (p *parser) directive(n int, s string) {
	switch {
	case strings.HasPrefix(s, "FROM "):
		p.prog.Source = strings.TrimSpace(s[len("FROM "):])
	case strings.HasPrefix(s, "EXTRACT"):
		rest := strings.TrimSpace(s[len("EXTRACT"):])
		if m := leadWordRe.FindStringSubmatch(rest); m != nil {
			p.prog.ExtractTarget = m[1]
		}
		p.modifiers(rest)
	case strings.HasPrefix(s, "CLASSIFY"):
		p.classify(n, s)
	case strings.HasPrefix(s, "DRAFT "):
		p.draft(strings.TrimSpace(s[len("DRAFT "):]))
	case strings.HasPrefix(s, "WITH "):
		p.promptLine(strings.TrimSpace(s[len("WITH "):]))
	case strings.HasPrefix(s, "PROMPT "):
		p.promptLine(strings.TrimSpace(s[len("PROMPT "):]))
	case strings.HasPrefix(s, "USE "):
		p.examplesLine(strings.TrimSpace(s[len("USE "):]))
	case strings.HasPrefix(s, "EXAMPLES "):
		p.examplesLine(strings.TrimSpace(s[len("EXAMPLES "):]))
	case strings.HasPrefix(s, "FLAG WHEN"):
		p.prog.Flags = append(p.prog.Flags, ParseFlagRule(strings.TrimSpace(s[len("FLAG WHEN"):])))
	case strings.HasPrefix(s, "OUTPUT "):
		p.prog.Output = strings.TrimSpace(s[len("OUTPUT "):])
	case strings.HasPrefix(s, "SET "):
		p.set(n, strings.TrimSpace(s[len("SET "):]))
	default:
		slog.Debug("glean: ignoring unrecognized line", "line", n, "text", s)
	}
}

// modifiers picks up inline WITH/PROMPT and USE/EXAMPLES clauses. Later
// directives overwrite earlier ones.
func (p *parser) modifiers(s string) {
	if m := promptRe.FindStringSubmatch(s); m != nil {
		p.prog.PromptName = m[1]
	}
	if m := examplesRe.FindStringSubmatch(s); m != nil {
		p.prog.ExamplesName = m[1]
	}
}

func (p *parser) classify(n int, s string) {
	m := bracketRe.FindStringSubmatch(s)
	if m == nil {
		slog.Debug("glean: ignoring CLASSIFY without bracketed categories", "line", n, "text", s)
		return
	}
	field := "classification"
	if fm := classifyRe.FindStringSubmatch(s); fm != nil && fm[1] != "INTO" {
		field = fm[1]
	}
	p.prog.Classify = &ClassifyDef{FieldName: field, Categories: splitTrim(m[1])}
	p.modifiers(s)
}

func (p *parser) draft(rest string) {
	m := leadWordRe.FindStringSubmatch(rest)
	if m == nil {
		return
	}
	d := &DraftDef{FieldName: m[1]}
	if pm := promptRe.FindStringSubmatch(rest); pm != nil {
		d.PromptName = pm[1]
	}
	if em := examplesRe.FindStringSubmatch(rest); em != nil {
		d.ExamplesName = em[1]
	}
	p.prog.Draft = d
}

// promptLine handles a standalone WITH/PROMPT directive, which may carry a
// trailing USE/EXAMPLES clause on the same line.
func (p *parser) promptLine(rest string) {
	if loc := examplesRe.FindStringSubmatchIndex(rest); loc != nil {
		p.prog.ExamplesName = rest[loc[2]:loc[3]]
		if name := strings.TrimSpace(rest[:loc[0]]); name != "" {
			p.prog.PromptName = name
		}
		return
	}
	if rest != "" {
		p.prog.PromptName = rest
	}
}

func (p *parser) examplesLine(rest string) {
	if loc := promptRe.FindStringSubmatchIndex(rest); loc != nil {
		p.prog.PromptName = rest[loc[2]:loc[3]]
		if name := strings.TrimSpace(rest[:loc[0]]); name != "" {
			p.prog.ExamplesName = name
		}
		return
	}
	if rest != "" {
		p.prog.ExamplesName = rest
	}
}

func (p *parser) set(n int, rest string) {
	key, val := splitFirst(rest)
	switch key {
	case "MODEL":
		if val != "" {
			p.prog.Settings.Model = val
		}
	case "TEMPERATURE":
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			p.prog.Settings.Temperature = &f
		} else {
			slog.Debug("glean: ignoring SET TEMPERATURE with non-numeric value", "line", n, "value", val)
		}
	case "TOP_P":
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			p.prog.Settings.TopP = &f
		} else {
			slog.Debug("glean: ignoring SET TOP_P with non-numeric value", "line", n, "value", val)
		}
	case "SEED":
		if i, err := strconv.Atoi(val); err == nil {
			p.prog.Settings.Seed = &i
		} else {
			slog.Debug("glean: ignoring SET SEED with non-integer value", "line", n, "value", val)
		}
	case "HEADER":
		name, hval := splitFirst(val)
		if name == "" || hval == "" {
			slog.Debug("glean: ignoring SET HEADER without name and value", "line", n, "text", rest)
			return
		}
		if p.prog.Settings.Headers == nil {
			p.prog.Settings.Headers = make(map[string]string)
		}
		p.prog.Settings.Headers[name] = hval
	default:
		slog.Debug("glean: ignoring unknown SET key", "line", n, "key", key)
	}
}

// ParseFlagRule parses the condition text after FLAG WHEN. The text is split
// on AND/OR first; every conjunction is kept even when a neighboring token
// fails to parse as a condition, so evaluation stays positional.
func ParseFlagRule(text string) FlagRule {
	var rule FlagRule
	for _, tok := range splitConjunctions(text) {
		if tok == "AND" || tok == "OR" {
			rule.Conjunctions = append(rule.Conjunctions, tok)
			continue
		}
		if m := condRe.FindStringSubmatch(tok); m != nil {
			rule.Conditions = append(rule.Conditions, Condition{
				Field: m[1],
				Op:    m[2],
				Value: strings.TrimSpace(m[3]),
			})
		}
	}
	return rule
}

// splitConjunctions splits on whitespace-delimited AND/OR while keeping the
// conjunction tokens in the result.
func splitConjunctions(text string) []string {
	locs := conjRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	out := make([]string, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		out = append(out, text[last:loc[0]], text[loc[2]:loc[3]])
		last = loc[1]
	}
	return append(out, text[last:])
}

func splitFirst(s string) (first, rest string) {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}
