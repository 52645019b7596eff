// Package summarize turns conversation segments into short prose summaries.
//
// The pipeline depends only on the Summarizer interface. LLMSummarizer calls
// a completion provider with bounded retries and exponential backoff, then
// falls back to the deterministic template on final failure, so a segment is
// never lost to a flaky collaborator. TemplateSummarizer stands alone when
// no provider is configured.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jbellard/chatseg/internal/llm"
	"github.com/jbellard/chatseg/internal/segment"
)

// DefaultMaxRetries is the number of provider attempts before falling back.
const DefaultMaxRetries = 3

const systemPrompt = "You summarize conversation segments between two people, " +
	"focusing on the dynamic between 'Me' and the other participant. " +
	"Cover the main topic, the key points discussed, and how the exchange concluded, in about three sentences."

// Summary is the produced summary for one segment.
type Summary struct {
	Date             string   `json:"date"`
	Timeframe        string   `json:"timeframe"`
	Summary          string   `json:"summary"`
	SegmentID        string   `json:"segment_id"`
	MessageCount     int      `json:"message_count"`
	Participants     []string `json:"participants"`
	GeneratedByModel bool     `json:"generated_by_model"`
}

// Summarizer is the capability interface for segment summarization.
type Summarizer interface {
	Summarize(ctx context.Context, seg *segment.Segment) (*Summary, error)
}

// TemplateSummarizer produces deterministic summaries with no external
// calls.
type TemplateSummarizer struct{}

// Summarize renders the templated summary for a segment.
func (TemplateSummarizer) Summarize(_ context.Context, seg *segment.Segment) (*Summary, error) {
	s := baseSummary(seg)
	s.Summary = templateText(seg, s.Timeframe)
	return s, nil
}

// LLMSummarizer generates summaries through a completion provider.
type LLMSummarizer struct {
	provider   llm.Provider
	maxRetries int
}

// NewLLMSummarizer wraps a provider. maxRetries <= 0 uses the default.
func NewLLMSummarizer(provider llm.Provider, maxRetries int) *LLMSummarizer {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &LLMSummarizer{provider: provider, maxRetries: maxRetries}
}

// Summarize calls the provider with retry and backoff. Rate-limit responses
// honor the server's Retry-After pacing; other failures back off 1s, 2s, 4s.
// When every attempt fails the templated summary is returned instead, so the
// error is only non-nil if the context was canceled.
func (s *LLMSummarizer) Summarize(ctx context.Context, seg *segment.Segment) (*Summary, error) {
	out := baseSummary(seg)
	prompt := formatPrompt(seg, out.Timeframe)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		text, err := s.provider.Complete(ctx, prompt, llm.CompletionOpts{
			MaxTokens:   1000,
			Temperature: 0.7,
			System:      systemPrompt,
		})
		if err == nil && strings.TrimSpace(text) != "" {
			out.Summary = strings.TrimSpace(text)
			out.GeneratedByModel = true
			return out, nil
		}
		if err == nil {
			err = fmt.Errorf("empty completion from %s", s.provider.Name())
		}

		if attempt == s.maxRetries-1 {
			break
		}

		backoff := time.Duration(1<<attempt) * time.Second
		var httpErr *llm.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests && httpErr.RetryAfter > 0 {
			backoff = httpErr.RetryAfter
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	// Fall back rather than lose the segment.
	out.Summary = templateText(seg, out.Timeframe)
	out.GeneratedByModel = false
	return out, nil
}

func baseSummary(seg *segment.Segment) *Summary {
	participants := seg.Participants
	if participants == nil {
		participants = []string{}
	}
	return &Summary{
		Date:         seg.Date,
		Timeframe:    Timeframe(seg.StartTime, seg.EndTime),
		SegmentID:    seg.SegmentID,
		MessageCount: seg.MessageCount,
		Participants: participants,
	}
}

// Timeframe renders a human-readable clock range like "6:20 PM - 7:45 PM".
// Unparseable bounds fall back to the raw values.
func Timeframe(start, end string) string {
	st, errS := time.Parse(time.RFC3339, start)
	et, errE := time.Parse(time.RFC3339, end)
	if errS != nil || errE != nil {
		if start == "" && end == "" {
			return "Unknown timeframe"
		}
		return start + " to " + end
	}
	return st.Format("3:04 PM") + " - " + et.Format("3:04 PM")
}

func templateText(seg *segment.Segment, timeframe string) string {
	size := "brief"
	if seg.MessageCount > 5 {
		size = "substantial"
	}
	return fmt.Sprintf(
		"Conversation on %s from %s involving %d participants. "+
			"The exchange consisted of %d messages covering various topics. "+
			"This appears to be a %s conversation segment.",
		seg.Date, timeframe, len(seg.Participants), seg.MessageCount, size)
}

func formatPrompt(seg *segment.Segment, timeframe string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please provide a summary of this conversation segment:\n\n")
	fmt.Fprintf(&b, "Date: %s\n", seg.Date)
	fmt.Fprintf(&b, "Timeframe: %s\n", timeframe)
	fmt.Fprintf(&b, "Participants: %s\n", strings.Join(seg.Participants, ", "))
	fmt.Fprintf(&b, "Message Count: %d\n\n", seg.MessageCount)
	b.WriteString("Conversation Content:\n")

	for _, msg := range seg.Messages {
		who := "Other person"
		if msg.IsFromMe != nil && *msg.IsFromMe {
			who = "Me"
		}
		fmt.Fprintf(&b, "- %s: %s\n", who, msg.Contents)
	}

	b.WriteString("\nSummarize the main topic, the key points or developments, and the outcome of the conversation.\n")
	return b.String()
}
