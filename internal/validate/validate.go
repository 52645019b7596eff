// Package validate checks normalized JSONL output for schema compliance:
// required fields, canonical timestamps, exactly one sender tag, digest
// shapes. Validation is advisory: it reports, it never mutates.
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jbellard/chatseg/internal/ingest"
)

// requiredFields must be present on every normalized record. Note that
// timestamp is required here even though normalization emits records with
// the field absent when the source value is unparseable: validation is the
// strict gate for fully-timestamped output, and such records are meant to
// show up in the error report rather than pass silently.
var requiredFields = []string{"id", "timestamp", "contents", "source_device_id", "schema_version", "fingerprint"}

// Report aggregates a validation pass.
type Report struct {
	Records        int
	Errors         []string
	SchemaVersions map[string]int
	SenderTypes    map[string]int
	Dates          map[string]int
}

// Valid reports whether the pass found no errors.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

// File validates every line of a normalized JSONL stream.
func File(rd io.Reader) (*Report, error) {
	report := &Report{
		SchemaVersions: map[string]int{},
		SenderTypes:    map[string]int{},
		Dates:          map[string]int{},
	}

	line := 0
	err := ingest.Lines(rd, func(text string) error {
		line++
		report.Records++

		var rec map[string]any
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: invalid JSON: %v", line, err))
			return nil
		}

		report.Errors = append(report.Errors, checkRecord(rec, line)...)
		tally(report, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return report, nil
}

func checkRecord(rec map[string]any, line int) []string {
	var errs []string

	for _, field := range requiredFields {
		if _, ok := rec[field]; !ok {
			errs = append(errs, fmt.Sprintf("line %d: missing required field %q", line, field))
		}
	}

	if ts, ok := rec["timestamp"]; ok {
		s, isStr := ts.(string)
		if !isStr || !strings.HasSuffix(s, "Z") {
			errs = append(errs, fmt.Sprintf("line %d: invalid timestamp format: %v", line, ts))
		}
	}

	switch sender := rec["sender"].(type) {
	case map[string]any:
		tags := 0
		for _, tag := range []string{"me", "phone", "other"} {
			if _, ok := sender[tag]; ok {
				tags++
			}
		}
		if tags == 0 {
			errs = append(errs, fmt.Sprintf("line %d: sender has no recognized tag", line))
		} else if tags > 1 {
			errs = append(errs, fmt.Sprintf("line %d: sender has multiple tags", line))
		}
	default:
		errs = append(errs, fmt.Sprintf("line %d: missing sender normalization", line))
	}

	if id, ok := rec["id"].(string); ok && len(id) < 10 {
		errs = append(errs, fmt.Sprintf("line %d: invalid id format: %q", line, id))
	}

	if fp, ok := rec["fingerprint"]; ok {
		s, isStr := fp.(string)
		if !isStr || len(s) != 64 {
			errs = append(errs, fmt.Sprintf("line %d: invalid fingerprint format: %v", line, fp))
		}
	}

	return errs
}

func tally(report *Report, rec map[string]any) {
	version := "unknown"
	if v, ok := rec["schema_version"].(string); ok {
		version = v
	}
	report.SchemaVersions[version]++

	if sender, ok := rec["sender"].(map[string]any); ok {
		for _, tag := range []string{"me", "phone", "other"} {
			if _, present := sender[tag]; present {
				report.SenderTypes[tag]++
				break
			}
		}
	}

	if ts, ok := rec["timestamp"].(string); ok && len(ts) >= 10 {
		report.Dates[ts[:10]]++
	}
}

// Format renders a human-readable validation summary.
func (r *Report) Format() string {
	var b strings.Builder

	for _, e := range r.Errors {
		fmt.Fprintf(&b, "ERROR: %s\n", e)
	}

	fmt.Fprintf(&b, "\n=== VALIDATION SUMMARY ===\n")
	fmt.Fprintf(&b, "Total records: %d\n", r.Records)
	fmt.Fprintf(&b, "Total errors: %d\n", len(r.Errors))

	fmt.Fprintf(&b, "\nSchema versions:\n")
	writeCounts(&b, r.SchemaVersions)
	fmt.Fprintf(&b, "\nSender types:\n")
	writeCounts(&b, r.SenderTypes)

	return b.String()
}

func writeCounts(b *strings.Builder, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %d\n", k, counts[k])
	}
}
