package report

import (
	"strings"
	"testing"

	"github.com/jbellard/chatseg/internal/segment"
)

func seg(id, date string, msgs int, participants []string, gaps []float64) *segment.Segment {
	var total float64
	for _, g := range gaps {
		total += g
	}
	return &segment.Segment{
		SegmentID:            id,
		Date:                 date,
		StartTime:            date + "T10:00:00Z",
		EndTime:              date + "T11:00:00Z",
		MessageCount:         msgs,
		Participants:         participants,
		TimeGaps:             gaps,
		TotalDurationMinutes: total,
	}
}

func TestAnalyze(t *testing.T) {
	segments := []*segment.Segment{
		seg("segment_0001", "2025-02-27", 3, []string{"me", "+15551234567"}, []float64{0.5, 3}),
		seg("segment_0002", "2025-02-27", 12, []string{"me"}, []float64{10, 45}),
		seg("segment_0003", "2025-02-28", 25, []string{"me", "+15551234567"}, []float64{}),
	}
	a := Analyze(segments)

	if a.Segments != 3 || a.Messages != 40 {
		t.Errorf("totals = %d segments, %d messages", a.Segments, a.Messages)
	}
	if a.FirstDate != "2025-02-27" || a.LastDate != "2025-02-28" {
		t.Errorf("range = %s..%s", a.FirstDate, a.LastDate)
	}
	if a.SmallSegments != 1 || a.MediumSegs != 1 || a.LargeSegments != 1 {
		t.Errorf("size buckets = %d/%d/%d", a.SmallSegments, a.MediumSegs, a.LargeSegments)
	}
	if a.GapTotal != 4 || a.GapImmediate != 1 || a.GapQuick != 1 || a.GapModerate != 1 || a.GapSlow != 1 {
		t.Errorf("gap buckets = %+v", a)
	}
	if a.Solo != 1 || a.Group != 2 {
		t.Errorf("solo/group = %d/%d", a.Solo, a.Group)
	}
	if a.Participants["me"] != 3 || a.Participants["+15551234567"] != 2 {
		t.Errorf("participants = %v", a.Participants)
	}
	if a.PerDay["2025-02-27"].Segments != 2 || a.PerDay["2025-02-27"].Messages != 15 {
		t.Errorf("per-day = %+v", a.PerDay["2025-02-27"])
	}
	if len(a.Largest) != 3 || a.Largest[0].SegmentID != "segment_0003" {
		t.Errorf("largest = %+v", a.Largest)
	}
	if a.AvgMessages < 13.3 || a.AvgMessages > 13.4 {
		t.Errorf("AvgMessages = %v", a.AvgMessages)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil)
	if a.Segments != 0 || a.Messages != 0 {
		t.Errorf("analysis = %+v", a)
	}
	out := a.Format()
	if !strings.Contains(out, "Total segments: 0") {
		t.Errorf("Format = %q", out)
	}
}

func TestAnalyzeTopFive(t *testing.T) {
	var segments []*segment.Segment
	for i := 1; i <= 8; i++ {
		segments = append(segments, seg("segment_000"+string(rune('0'+i)), "2025-02-27", i, []string{"me"}, nil))
	}
	a := Analyze(segments)
	if len(a.Largest) != 5 {
		t.Fatalf("Largest = %d entries, want 5", len(a.Largest))
	}
	if a.Largest[0].MessageCount != 8 || a.Largest[4].MessageCount != 4 {
		t.Errorf("Largest bounds = %d..%d", a.Largest[0].MessageCount, a.Largest[4].MessageCount)
	}
}

func TestFormat(t *testing.T) {
	a := Analyze([]*segment.Segment{
		seg("segment_0001", "2025-02-27", 3, []string{"me", "+15551234567"}, []float64{2}),
	})
	out := a.Format()
	for _, want := range []string{
		"CONVERSATION SEGMENT ANALYSIS",
		"Total segments: 1",
		"Date range: 2025-02-27 to 2025-02-27",
		"Small (<=5 messages): 1 (100.0%)",
		"Quick (1-5 min): 1 (100.0%)",
		"Participants: 2 unique",
		"2025-02-27: 1 segments, 3 messages",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format missing %q:\n%s", want, out)
		}
	}
}
