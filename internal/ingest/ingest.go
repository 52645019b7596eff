// Package ingest reads raw message exports.
//
// Exports arrive in two shapes: one JSON object per line, or objects
// concatenated back to back with no separator at all. A brace-depth scan
// over the byte stream splits both shapes into individual objects, so the
// same reader handles either. Malformed objects are skipped with a logged
// warning and counted; they never abort the batch.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jbellard/chatseg/internal/normalize"
)

// maxLineBytes bounds a single JSONL line when reading already-normalized
// streams. Message bodies are small; 4MB leaves generous headroom.
const maxLineBytes = 4 * 1024 * 1024

// Result tallies one reading pass.
type Result struct {
	Objects int // well-formed objects decoded
	Skipped int // malformed objects dropped
}

// Reader splits raw export streams into RawRecords.
type Reader struct {
	log zerolog.Logger
}

// NewReader creates a Reader that reports skipped objects to log.
func NewReader(log zerolog.Logger) *Reader {
	return &Reader{log: log}
}

// ReadFile opens path and reads every record in it. A missing or unreadable
// file is the one fatal condition in the pipeline.
func (rd *Reader) ReadFile(path string) ([]normalize.RawRecord, *Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening input %s: %w", path, err)
	}
	defer f.Close()
	return rd.Read(f)
}

// Read scans r for JSON objects and decodes each into a RawRecord.
func (rd *Reader) Read(r io.Reader) ([]normalize.RawRecord, *Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading input: %w", err)
	}

	res := &Result{}
	var records []normalize.RawRecord

	for _, obj := range splitObjects(string(data)) {
		var raw normalize.RawRecord
		if err := json.Unmarshal([]byte(obj), &raw); err != nil {
			res.Skipped++
			rd.log.Warn().Err(err).Int("object", res.Objects+res.Skipped).Msg("skipping invalid JSON object")
			continue
		}
		res.Objects++
		records = append(records, raw)
	}

	return records, res, nil
}

// splitObjects walks the stream tracking brace depth, emitting one candidate
// string per top-level object. String literals are honored so braces inside
// message contents do not unbalance the scan.
func splitObjects(content string) []string {
	var objects []string
	var depth int
	var start int
	inObject := false
	inString := false
	escaped := false

	for i, ch := range content {
		if inObject && inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '{':
			if !inObject {
				inObject = true
				start = i
			}
			depth++
		case '}':
			if !inObject {
				continue
			}
			depth--
			if depth == 0 {
				objects = append(objects, strings.TrimSpace(content[start:i+1]))
				inObject = false
			}
		case '"':
			if inObject {
				inString = true
			}
		}
	}

	return objects
}

// Lines reads a JSONL stream line by line, invoking fn with each non-empty
// line. Used for already-normalized and segmented files.
func Lines(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}
