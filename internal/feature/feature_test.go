package feature

import (
	"reflect"
	"strings"
	"testing"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}
	return e
}

func TestExtractRemovesEmojisAndURLs(t *testing.T) {
	e := newTestExtractor(t)

	cleaned, ex := e.Extract("Call me at 5pm! \U0001F600 https://x.co")
	if cleaned != "Call me at 5pm!" {
		t.Errorf("cleaned = %q, want %q", cleaned, "Call me at 5pm!")
	}
	if !reflect.DeepEqual(ex.Emojis, []string{"\U0001F600"}) {
		t.Errorf("emojis = %v", ex.Emojis)
	}
	if !reflect.DeepEqual(ex.URLs, []string{"https://x.co"}) {
		t.Errorf("urls = %v", ex.URLs)
	}

	f := e.Compute(cleaned, ex)
	if !f.HasEmojis || f.EmojiCount != 1 {
		t.Errorf("emoji flags = %v/%d", f.HasEmojis, f.EmojiCount)
	}
	if !f.HasURLs || f.URLCount != 1 {
		t.Errorf("url flags = %v/%d", f.HasURLs, f.URLCount)
	}
	if !f.IsExclamation {
		t.Error("IsExclamation = false")
	}
	if !f.ContainsDate {
		t.Error("ContainsDate = false, want clock-time match on 5pm")
	}
}

func TestExtractPassthrough(t *testing.T) {
	e := newTestExtractor(t)

	for _, text := range []string{"", "plain text with no extras", "punctuation only!?."} {
		cleaned, ex := e.Extract(text)
		if cleaned != text {
			t.Errorf("Extract(%q) cleaned = %q, want unchanged", text, cleaned)
		}
		if len(ex.Emojis) != 0 || len(ex.URLs) != 0 {
			t.Errorf("Extract(%q) extracted %v %v, want nothing", text, ex.Emojis, ex.URLs)
		}
		if ex.Emojis == nil || ex.URLs == nil {
			t.Errorf("Extract(%q) returned nil slices", text)
		}
	}
}

func TestExtractMultiCodepointEmoji(t *testing.T) {
	e := newTestExtractor(t)

	// Thumbs up with skin tone is a single grapheme cluster.
	emoji := "\U0001F44D\U0001F3FD"
	cleaned, ex := e.Extract("nice " + emoji + " work")
	if strings.ContainsAny(cleaned, emoji) {
		t.Errorf("cleaned %q still contains emoji bytes", cleaned)
	}
	if len(ex.Emojis) != 1 || ex.Emojis[0] != emoji {
		t.Errorf("emojis = %q, want the full cluster", ex.Emojis)
	}
}

func TestExtractMultipleURLs(t *testing.T) {
	e := newTestExtractor(t)

	cleaned, ex := e.Extract("see http://a.example/path?q=1 and https://b.example/#frag")
	if len(ex.URLs) != 2 {
		t.Fatalf("urls = %v, want 2", ex.URLs)
	}
	if strings.Contains(cleaned, "http") {
		t.Errorf("cleaned = %q, urls not removed", cleaned)
	}
}

func TestExtractPreservesContent(t *testing.T) {
	e := newTestExtractor(t)

	stripWS := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' {
				return -1
			}
			return r
		}, s)
	}

	for _, text := range []string{
		"Call me at 5pm! \U0001F600 https://x.co",
		"\U0001F389\U0001F389 double party",
		"links https://a.example and http://b.example/x",
		"plain",
	} {
		cleaned, ex := e.Extract(text)
		rebuilt := cleaned + strings.Join(ex.Emojis, "") + strings.Join(ex.URLs, "")
		want := stripWS(text)
		got := stripWS(rebuilt)
		if len(got) != len(want) {
			t.Errorf("Extract(%q) lost content: rebuilt %q", text, rebuilt)
			continue
		}
		for _, r := range want {
			if !strings.ContainsRune(got, r) {
				t.Errorf("Extract(%q): rune %q missing after reconstruction", text, r)
			}
		}
	}
}

func TestComputeCounts(t *testing.T) {
	e := newTestExtractor(t)

	f := e.Compute("one two three", Extracted{Emojis: []string{}, URLs: []string{}})
	if f.TokenCount != 3 {
		t.Errorf("TokenCount = %d, want 3", f.TokenCount)
	}
	if f.CharacterCount != 13 {
		t.Errorf("CharacterCount = %d, want 13", f.CharacterCount)
	}
	if f.IsQuestion || f.IsExclamation {
		t.Errorf("unexpected flags: %+v", f)
	}
}

func TestDetectQuestion(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"are you coming?", true},
		{"What time works", true},
		{"  where did it go", true},
		{"HOW about now", true},
		{"whatever you say", false}, // prefix word must be whole
		{"meet me at noon", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := detectQuestion(tc.text); got != tc.want {
			t.Errorf("detectQuestion(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestDetectors(t *testing.T) {
	e := newTestExtractor(t)

	cases := []struct {
		text               string
		date, place, money bool
	}{
		{"let's meet tomorrow", true, false, false},
		{"lunch at 12:30 pm", true, true, false},
		{"12/25/2024 works for me", true, false, false},
		{"meet me at the office", false, true, false},
		{"I'm going to Paris", false, true, false},
		{"that cost $25.50", false, false, true},
		{"it was 100 dollars", false, false, true},
		{"well hello there", false, false, false},
	}
	for _, tc := range cases {
		f := e.Compute(tc.text, Extracted{})
		if f.ContainsDate != tc.date || f.ContainsPlace != tc.place || f.ContainsMoney != tc.money {
			t.Errorf("Compute(%q) date/place/money = %v/%v/%v, want %v/%v/%v",
				tc.text, f.ContainsDate, f.ContainsPlace, f.ContainsMoney, tc.date, tc.place, tc.money)
		}
	}
}

func TestExtractMentions(t *testing.T) {
	got := extractMentions("hey @alice ping @bob and @alice again")
	want := []string{"alice", "bob", "alice"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mentions = %v, want %v (duplicates preserved, @ stripped)", got, want)
	}

	if got := extractMentions("no mentions here"); len(got) != 0 || got == nil {
		t.Errorf("mentions = %#v, want empty non-nil slice", got)
	}
}

func TestCustomPatterns(t *testing.T) {
	e, err := NewExtractor(&Patterns{
		Date:  []string{`(?i)\bquarter\b`},
		Place: []string{`(?i)\bwarehouse\b`},
		Money: []string{`€\d+`},
	})
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	f := e.Compute("next quarter, at the warehouse, for €40", Extracted{})
	if !f.ContainsDate || !f.ContainsPlace || !f.ContainsMoney {
		t.Errorf("custom patterns not applied: %+v", f)
	}
	// Defaults must not leak in once a table is supplied.
	f = e.Compute("tomorrow costs $5 at the office", Extracted{})
	if f.ContainsDate || f.ContainsPlace || f.ContainsMoney {
		t.Errorf("default patterns leaked through custom table: %+v", f)
	}
}

func TestNewExtractorRejectsBadPattern(t *testing.T) {
	_, err := NewExtractor(&Patterns{Date: []string{"("}})
	if err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}
