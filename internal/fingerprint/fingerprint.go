// Package fingerprint computes content-derived digests over canonical JSON.
//
// The canonical form sorts object keys, uses compact separators, and leaves
// non-ASCII text unescaped, so the same logical value always produces the
// same bytes regardless of struct field order.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Sum returns the SHA-256 hex digest of v's canonical JSON serialization.
// Fields tagged omitempty and currently empty (such as a not-yet-set
// fingerprint field) are excluded by ordinary JSON marshaling rules.
func Sum(v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// Canonical renders v as deterministic compact JSON with sorted keys.
func Canonical(v any) ([]byte, error) {
	loose, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling value: %w", err)
	}

	var decoded any
	dec := json.NewDecoder(bytes.NewReader(loose))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding intermediate form: %w", err)
	}

	var b strings.Builder
	if err := writeCanonical(&b, decoded); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeScalar(b, k); err != nil {
				return err
			}
			b.WriteByte(':')
			if err := writeCanonical(b, val[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, elem); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case json.Number:
		b.WriteString(val.String())
	default:
		return writeScalar(b, val)
	}
	return nil
}

func writeScalar(b *strings.Builder, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding scalar: %w", err)
	}
	b.WriteString(strings.TrimSuffix(buf.String(), "\n"))
	return nil
}
