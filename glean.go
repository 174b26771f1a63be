// Package glean embeds the glean pipeline as a library: declare a schema and
// a pipeline fluently, then run them against texts, files, folders, or HTTP
// sources. The CLI under cmd/glean is a thin wrapper over the same surface.
package glean

import (
	"github.com/gleanlang/glean/internal/output"
	"github.com/gleanlang/glean/internal/record"
)

// Record is one result row: extracted fields alongside underscore-prefixed
// metadata keys (_flagged, _flag_reasons, _source, _error, _filename,
// _draft_prompt).
type Record = record.Record

// Summary tallies the dispositions of a finished run.
type Summary = output.Summary
