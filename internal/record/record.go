// Package record defines the result row shape shared by the runtime, source
// and output layers, plus the reserved metadata keys those layers exchange.
package record

// Record is one pipeline result row. Extracted fields sit alongside
// underscore-prefixed metadata keys; the two never collide because schema
// field names cannot start with an underscore prefix used here.
type Record = map[string]any

// Reserved metadata keys.
const (
	KeyFlagged     = "_flagged"      // bool, present on every successful record
	KeyFlagReasons = "_flag_reasons" // []string of human-readable rule reasons
	KeySource      = "_source"       // original input text for the row
	KeyError       = "_error"        // failure message, set instead of fields
	KeyFilename    = "_filename"     // folder sources: originating file name
	KeyDraftPrompt = "_draft_prompt" // resolved prompt when a draft pass ran
)

// Failed builds the error record emitted when extraction gives up on a row.
func Failed(source string) Record {
	return Record{KeySource: source, KeyError: "extraction failed"}
}

// IsError reports whether r is a failure record.
func IsError(r Record) bool {
	_, ok := r[KeyError]
	return ok
}

// Flagged reports whether r tripped at least one flag rule. Error records
// report false.
func Flagged(r Record) bool {
	b, _ := r[KeyFlagged].(bool)
	return b
}

// Clean reports whether r completed extraction and tripped no flag rules.
func Clean(r Record) bool {
	b, ok := r[KeyFlagged].(bool)
	return ok && !b
}

// IsMetadata reports whether key is reserved for pipeline metadata.
func IsMetadata(key string) bool {
	return len(key) > 0 && key[0] == '_'
}
