// Package feature derives linguistic signals from message text.
//
// Extraction happens in two phases: Extract pulls emoji graphemes and URLs
// out of the raw text (order of first occurrence preserved), and Compute
// evaluates the fixed feature set on the cleaned, sanitized text. All
// detectors are pure functions of their input; empty text yields zero
// counts, false flags, and empty lists.
package feature

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Extracted holds the substrings removed from a message during extraction.
type Extracted struct {
	Emojis []string `json:"emojis"`
	URLs   []string `json:"urls"`
}

// Features is the fixed record of derived signals for one message.
type Features struct {
	TokenCount     int      `json:"token_count"`
	CharacterCount int      `json:"character_count"`
	IsQuestion     bool     `json:"is_question"`
	IsExclamation  bool     `json:"is_exclamation"`
	ContainsDate   bool     `json:"contains_date"`
	ContainsPlace  bool     `json:"contains_place"`
	ContainsMoney  bool     `json:"contains_money"`
	Mentions       []string `json:"mentions"`
	HasEmojis      bool     `json:"has_emojis"`
	HasURLs        bool     `json:"has_urls"`
	EmojiCount     int      `json:"emoji_count"`
	URLCount       int      `json:"url_count"`
}

var (
	urlRE     = regexp.MustCompile(`https?://(?:[-\w.])+(?:[:\d]+)?(?:/(?:[\w/_.])*(?:\?(?:[\w&=%.])*)?(?:#(?:[\w.])*)?)?`)
	tokenRE   = regexp.MustCompile(`\b\w+\b`)
	mentionRE = regexp.MustCompile(`@(\w+)`)
)

// questionWords is the closed set of interrogative openers checked when a
// message carries no question mark.
var questionWords = []string{"what", "when", "where", "who", "why", "how", "which", "whose", "whom"}

// Extractor evaluates the feature set against a configurable pattern table.
type Extractor struct {
	date  []*regexp.Regexp
	place []*regexp.Regexp
	money []*regexp.Regexp
}

// NewExtractor builds an Extractor from the given pattern table.
func NewExtractor(p *Patterns) (*Extractor, error) {
	if p == nil {
		p = DefaultPatterns()
	}
	e := &Extractor{}
	var err error
	if e.date, err = compilePatterns(p.Date); err != nil {
		return nil, err
	}
	if e.place, err = compilePatterns(p.Place); err != nil {
		return nil, err
	}
	if e.money, err = compilePatterns(p.Money); err != nil {
		return nil, err
	}
	return e, nil
}

// Extract removes emoji graphemes and URLs from text, returning the trimmed
// remainder and the extracted substrings in order of first occurrence.
func (e *Extractor) Extract(text string) (string, Extracted) {
	ex := Extracted{Emojis: []string{}, URLs: []string{}}
	if text == "" {
		return text, ex
	}

	cleaned, emojis := extractEmojis(text)
	ex.Emojis = emojis

	ex.URLs = urlRE.FindAllString(cleaned, -1)
	if ex.URLs == nil {
		ex.URLs = []string{}
	}
	cleaned = strings.TrimSpace(urlRE.ReplaceAllString(cleaned, ""))

	return cleaned, ex
}

// Compute evaluates the feature set on cleaned, sanitized text.
func (e *Extractor) Compute(text string, ex Extracted) Features {
	f := Features{
		TokenCount:     len(tokenRE.FindAllString(text, -1)),
		CharacterCount: utf8.RuneCountInString(text),
		IsQuestion:     detectQuestion(text),
		IsExclamation:  strings.Contains(text, "!"),
		ContainsDate:   anyMatch(e.date, text),
		ContainsPlace:  anyMatch(e.place, text),
		ContainsMoney:  anyMatch(e.money, text),
		Mentions:       extractMentions(text),
		HasEmojis:      len(ex.Emojis) > 0,
		HasURLs:        len(ex.URLs) > 0,
		EmojiCount:     len(ex.Emojis),
		URLCount:       len(ex.URLs),
	}
	return f
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	if text == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func detectQuestion(text string) bool {
	if text == "" {
		return false
	}
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range questionWords {
		if strings.HasPrefix(lower, w+" ") {
			return true
		}
	}
	return false
}

func extractMentions(text string) []string {
	mentions := []string{}
	for _, m := range mentionRE.FindAllStringSubmatch(text, -1) {
		mentions = append(mentions, m[1])
	}
	return mentions
}
