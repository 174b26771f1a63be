// Package output writes the run artifact and tallies the run summary.
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gleanlang/glean/internal/record"
)

// Summary tallies the final records of one run.
type Summary struct {
	Clean   int
	Flagged int
	Errors  int
}

// Summarize counts record dispositions. Flagged records carry a true
// _flagged, clean ones carry it exactly false, error records carry _error.
func Summarize(records []record.Record) Summary {
	var s Summary
	for _, r := range records {
		if record.Flagged(r) {
			s.Flagged++
		}
		if record.Clean(r) {
			s.Clean++
		}
		if record.IsError(r) {
			s.Errors++
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%d clean | %d flagged | %d errors", s.Clean, s.Flagged, s.Errors)
}

// Write renders records as a pretty-printed JSON array at path, in the order
// given.
func Write(path string, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
