package summarize

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jbellard/chatseg/internal/llm"
	"github.com/jbellard/chatseg/internal/normalize"
	"github.com/jbellard/chatseg/internal/segment"
)

// fakeProvider scripts a sequence of completion outcomes.
type fakeProvider struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeProvider) Complete(_ context.Context, prompt string, _ llm.CompletionOpts) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	var text string
	var err error
	if i < len(f.responses) {
		text = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return text, err
}

func (f *fakeProvider) Name() string { return "fake" }

func testSegment() *segment.Segment {
	yes := true
	no := false
	return &segment.Segment{
		SegmentID:    "segment_0001",
		Date:         "2025-02-27",
		StartTime:    "2025-02-27T18:20:00Z",
		EndTime:      "2025-02-27T19:45:00Z",
		MessageCount: 2,
		Participants: []string{"me", "+15551234567"},
		Messages: []*normalize.Record{
			{Contents: "dinner tonight?", IsFromMe: &yes},
			{Contents: "sure, 7pm", IsFromMe: &no},
		},
	}
}

func TestTemplateSummarizer(t *testing.T) {
	sum, err := TemplateSummarizer{}.Summarize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	want := "Conversation on 2025-02-27 from 6:20 PM - 7:45 PM involving 2 participants. " +
		"The exchange consisted of 2 messages covering various topics. " +
		"This appears to be a brief conversation segment."
	if sum.Summary != want {
		t.Errorf("Summary = %q\nwant      %q", sum.Summary, want)
	}
	if sum.GeneratedByModel {
		t.Error("GeneratedByModel = true for template output")
	}
	if sum.SegmentID != "segment_0001" || sum.Date != "2025-02-27" || sum.MessageCount != 2 {
		t.Errorf("metadata = %+v", sum)
	}
}

func TestTemplateSubstantial(t *testing.T) {
	seg := testSegment()
	seg.MessageCount = 6
	sum, _ := TemplateSummarizer{}.Summarize(context.Background(), seg)
	if !strings.Contains(sum.Summary, "substantial conversation segment") {
		t.Errorf("Summary = %q, want substantial wording above 5 messages", sum.Summary)
	}
}

func TestLLMSummarizerSuccess(t *testing.T) {
	p := &fakeProvider{responses: []string{" They agreed on dinner at 7pm. "}}
	sum, err := NewLLMSummarizer(p, 3).Summarize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Summary != "They agreed on dinner at 7pm." {
		t.Errorf("Summary = %q, want trimmed completion", sum.Summary)
	}
	if !sum.GeneratedByModel {
		t.Error("GeneratedByModel = false for provider output")
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestLLMSummarizerRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{
		responses: []string{"", "Second try worked."},
		errs:      []error{fmt.Errorf("transient"), nil},
	}
	sum, err := NewLLMSummarizer(p, 3).Summarize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Summary != "Second try worked." || !sum.GeneratedByModel {
		t.Errorf("sum = %+v", sum)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestLLMSummarizerFallsBackToTemplate(t *testing.T) {
	p := &fakeProvider{errs: []error{
		fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down"),
	}}
	sum, err := NewLLMSummarizer(p, 3).Summarize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if sum.GeneratedByModel {
		t.Error("GeneratedByModel = true after exhausted retries")
	}
	if !strings.Contains(sum.Summary, "Conversation on 2025-02-27") {
		t.Errorf("Summary = %q, want templated fallback", sum.Summary)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want every retry used", p.calls)
	}
}

func TestLLMSummarizerEmptyCompletionRetries(t *testing.T) {
	p := &fakeProvider{responses: []string{"   ", "Real content."}}
	sum, err := NewLLMSummarizer(p, 3).Summarize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Summary != "Real content." {
		t.Errorf("Summary = %q, blank completion should not be accepted", sum.Summary)
	}
}

func TestLLMSummarizerContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{errs: []error{fmt.Errorf("down"), fmt.Errorf("down")}}
	_, err := NewLLMSummarizer(p, 3).Summarize(ctx, testSegment())
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestPromptTagsSpeakers(t *testing.T) {
	p := &fakeProvider{responses: []string{"ok"}}
	if _, err := NewLLMSummarizer(p, 1).Summarize(context.Background(), testSegment()); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	prompt := p.prompts[0]
	if !strings.Contains(prompt, "- Me: dinner tonight?") {
		t.Errorf("prompt missing Me line:\n%s", prompt)
	}
	if !strings.Contains(prompt, "- Other person: sure, 7pm") {
		t.Errorf("prompt missing other-person line:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Date: 2025-02-27") {
		t.Errorf("prompt missing date:\n%s", prompt)
	}
}

func TestTimeframe(t *testing.T) {
	cases := []struct{ start, end, want string }{
		{"2025-02-27T18:20:00Z", "2025-02-27T19:45:00Z", "6:20 PM - 7:45 PM"},
		{"2025-02-27T09:05:00Z", "2025-02-27T09:05:00Z", "9:05 AM - 9:05 AM"},
		{"junk", "2025-02-27T19:45:00Z", "junk to 2025-02-27T19:45:00Z"},
		{"", "", "Unknown timeframe"},
	}
	for _, tc := range cases {
		if got := Timeframe(tc.start, tc.end); got != tc.want {
			t.Errorf("Timeframe(%q, %q) = %q, want %q", tc.start, tc.end, got, tc.want)
		}
	}
}
