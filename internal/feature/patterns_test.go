package feature

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := `date:
  - '(?i)\bsprint \d+\b'
money:
  - '£\d+'
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPatterns(path)
	if err != nil {
		t.Fatalf("LoadPatterns: %v", err)
	}
	if !reflect.DeepEqual(p.Date, []string{`(?i)\bsprint \d+\b`}) {
		t.Errorf("Date = %v", p.Date)
	}
	if !reflect.DeepEqual(p.Money, []string{`£\d+`}) {
		t.Errorf("Money = %v", p.Money)
	}
	// Omitted families fall back to the defaults.
	if !reflect.DeepEqual(p.Place, DefaultPatterns().Place) {
		t.Errorf("Place = %v, want defaults", p.Place)
	}
}

func TestLoadPatternsMissingFile(t *testing.T) {
	if _, err := LoadPatterns(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadPatternsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte("date: [unterminated\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPatterns(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
