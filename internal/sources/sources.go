// Package sources loads input rows from a program's FROM target: CSV and
// JSON files, folders of documents, and HTTP endpoints.
package sources

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gleanlang/glean/internal/record"
)

// Load resolves source against baseDir and returns its rows in order.
// http(s) sources are fetched with the given headers; client may be nil.
func Load(ctx context.Context, baseDir, source string, headers map[string]string, client *http.Client) ([]record.Record, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loadHTTP(ctx, source, headers, client)
	}

	path := source
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", source, err)
	}
	if info.IsDir() {
		return loadFolder(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".json":
		return loadJSONFile(path)
	default:
		return loadTextBlob(path)
	}
}

// loadCSV keeps every column of every row; the header row names the keys.
func loadCSV(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []record.Record
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(record.Record, len(header))
		for i, col := range header {
			if i < len(fields) {
				row[col] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func loadJSONFile(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read json source: %w", err)
	}
	rows, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("json source %q: %w", filepath.Base(path), err)
	}
	return rows, nil
}

// decodeJSON turns a JSON payload into rows: an array becomes one row per
// element (objects kept as-is, strings become text rows), a single object
// becomes one row.
func decodeJSON(data []byte) ([]record.Record, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case []any:
		rows := make([]record.Record, 0, len(x))
		for i, el := range x {
			switch e := el.(type) {
			case map[string]any:
				rows = append(rows, record.Record(e))
			case string:
				rows = append(rows, record.Record{"text": e})
			default:
				return nil, fmt.Errorf("element %d is %T, want object or string", i, el)
			}
		}
		return rows, nil
	case map[string]any:
		return []record.Record{record.Record(x)}, nil
	default:
		return nil, fmt.Errorf("top-level JSON is %T, want object or array", v)
	}
}

// loadFolder reads files sorted by name. Hidden and empty files are skipped,
// .json files parse like JSON sources, everything else becomes a text blob
// row tagged with its file name.
func loadFolder(dir string) ([]record.Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}

	var rows []record.Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		if strings.EqualFold(filepath.Ext(name), ".json") {
			parsed, err := decodeJSON(data)
			if err != nil {
				return nil, fmt.Errorf("json source %q: %w", name, err)
			}
			rows = append(rows, parsed...)
			continue
		}

		rows = append(rows, record.Record{"text": text, record.KeyFilename: name})
	}
	return rows, nil
}

func loadTextBlob(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []record.Record{{"text": text}}, nil
}

func loadHTTP(ctx context.Context, url string, headers map[string]string, client *http.Client) ([]record.Record, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch source: status %d from %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	rows, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("api source %s: %w", url, err)
	}
	return rows, nil
}
