package feature

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Patterns is the external table of detector pattern families. Each family
// is an ordered list of independent regular expressions OR-ed together at
// match time, so linguistic categories can be extended without touching
// control flow.
type Patterns struct {
	Date  []string `yaml:"date"`
	Place []string `yaml:"place"`
	Money []string `yaml:"money"`
}

// DefaultPatterns returns the built-in pattern table.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Date: []string{
			`(?i)\b\d{1,2}/\d{1,2}/\d{2,4}\b`,
			`(?i)\b\d{1,2}-\d{1,2}-\d{2,4}\b`,
			`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2}\b`,
			`(?i)\b(?:January|February|March|April|May|June|July|August|September|October|November|December) \d{1,2}\b`,
			`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:AM|PM)?\b|\b\d{1,2}\s*(?:AM|PM)\b`,
			`(?i)\b(?:today|tomorrow|yesterday|tonight|this morning|this afternoon|this evening)\b`,
		},
		Place: []string{
			`(?i)\b(?:at|in|to|from)\s+\w+`,
			`(?i)\b(?:restaurant|cafe|bar|store|shop|mall|park|beach|airport|station)\b`,
			`(?i)\b(?:street|avenue|road|drive|lane|way|plaza|square)\b`,
			`(?i)\b[A-Z][a-z]+(?:[-\s][A-Z][a-z]+)*\s+(?:Street|Ave|Road|Drive|Lane|Way|Plaza|Square)\b`,
			`(?i)\b(?:New York|Los Angeles|Chicago|Houston|Phoenix|Philadelphia|San Antonio|San Diego|Dallas|San Jose)\b`,
		},
		Money: []string{
			`(?i)\$\d+(?:\.\d{2})?`,
			`(?i)\b\d+(?:\.\d{2})?\s*(?:dollars?|bucks?|USD)\b`,
			`(?i)\b(?:free|cheap|expensive|cost|price|pay|paid|spent|bought|sold)\b`,
		},
	}
}

// LoadPatterns reads a pattern table from a YAML file. Families omitted from
// the file fall back to the built-in defaults.
func LoadPatterns(path string) (*Patterns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern table: %w", err)
	}

	p := &Patterns{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing pattern table %s: %w", path, err)
	}

	defaults := DefaultPatterns()
	if len(p.Date) == 0 {
		p.Date = defaults.Date
	}
	if len(p.Place) == 0 {
		p.Place = defaults.Place
	}
	if len(p.Money) == 0 {
		p.Money = defaults.Money
	}
	return p, nil
}

func compilePatterns(exprs []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", expr, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
