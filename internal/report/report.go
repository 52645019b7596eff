// Package report aggregates statistics over produced conversation segments.
// Pure rollups over already-computed structs; nothing here feeds back into
// the pipeline.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jbellard/chatseg/internal/segment"
)

// Analysis holds aggregate statistics for a set of segments.
type Analysis struct {
	Segments      int
	Messages      int
	AvgMessages   float64
	AvgDuration   float64
	FirstDate     string
	LastDate      string
	SmallSegments int // <= 5 messages
	MediumSegs    int // 6-20 messages
	LargeSegments int // > 20 messages

	GapImmediate int // < 1 minute
	GapQuick     int // 1-5 minutes
	GapModerate  int // 5-30 minutes
	GapSlow      int // 30 minutes - 2 hours
	GapTotal     int

	Participants map[string]int // participant -> segments appeared in
	Solo         int
	Group        int
	PerDay       map[string]*DayStats
	Largest      []*segment.Segment // top 5 by message count
}

// DayStats is the per-calendar-day rollup.
type DayStats struct {
	Segments int
	Messages int
	Duration float64
}

// Analyze computes aggregate statistics over segments.
func Analyze(segments []*segment.Segment) *Analysis {
	a := &Analysis{
		Participants: map[string]int{},
		PerDay:       map[string]*DayStats{},
	}
	if len(segments) == 0 {
		return a
	}

	sorted := make([]*segment.Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].StartTime < sorted[j].StartTime
	})

	a.Segments = len(sorted)
	a.FirstDate = sorted[0].Date
	a.LastDate = sorted[len(sorted)-1].Date

	var totalDuration float64
	for _, seg := range sorted {
		a.Messages += seg.MessageCount
		totalDuration += seg.TotalDurationMinutes

		switch {
		case seg.MessageCount <= 5:
			a.SmallSegments++
		case seg.MessageCount <= 20:
			a.MediumSegs++
		default:
			a.LargeSegments++
		}

		for _, gap := range seg.TimeGaps {
			a.GapTotal++
			switch {
			case gap < 1:
				a.GapImmediate++
			case gap < 5:
				a.GapQuick++
			case gap < 30:
				a.GapModerate++
			case gap < 120:
				a.GapSlow++
			}
		}

		for _, p := range seg.Participants {
			a.Participants[p]++
		}
		if len(seg.Participants) == 1 {
			a.Solo++
		} else {
			a.Group++
		}

		day := a.PerDay[seg.Date]
		if day == nil {
			day = &DayStats{}
			a.PerDay[seg.Date] = day
		}
		day.Segments++
		day.Messages += seg.MessageCount
		day.Duration += seg.TotalDurationMinutes
	}

	a.AvgMessages = float64(a.Messages) / float64(a.Segments)
	a.AvgDuration = totalDuration / float64(a.Segments)

	bySize := make([]*segment.Segment, len(sorted))
	copy(bySize, sorted)
	sort.SliceStable(bySize, func(i, j int) bool {
		return bySize[i].MessageCount > bySize[j].MessageCount
	})
	top := 5
	if len(bySize) < top {
		top = len(bySize)
	}
	a.Largest = bySize[:top]

	return a
}

// Format renders the analysis for the CLI.
func (a *Analysis) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== CONVERSATION SEGMENT ANALYSIS ===\n")
	fmt.Fprintf(&b, "Total segments: %d\n", a.Segments)
	if a.Segments == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "Date range: %s to %s\n", a.FirstDate, a.LastDate)
	fmt.Fprintf(&b, "Total messages: %d\n", a.Messages)
	fmt.Fprintf(&b, "Average messages per segment: %.1f\n", a.AvgMessages)
	fmt.Fprintf(&b, "Average segment duration: %.1f minutes\n", a.AvgDuration)

	pct := func(n int) float64 { return float64(n) / float64(a.Segments) * 100 }
	fmt.Fprintf(&b, "\nSegment sizes:\n")
	fmt.Fprintf(&b, "  Small (<=5 messages): %d (%.1f%%)\n", a.SmallSegments, pct(a.SmallSegments))
	fmt.Fprintf(&b, "  Medium (6-20 messages): %d (%.1f%%)\n", a.MediumSegs, pct(a.MediumSegs))
	fmt.Fprintf(&b, "  Large (>20 messages): %d (%.1f%%)\n", a.LargeSegments, pct(a.LargeSegments))

	if a.GapTotal > 0 {
		gpct := func(n int) float64 { return float64(n) / float64(a.GapTotal) * 100 }
		fmt.Fprintf(&b, "\nGap distribution:\n")
		fmt.Fprintf(&b, "  Immediate (<1 min): %d (%.1f%%)\n", a.GapImmediate, gpct(a.GapImmediate))
		fmt.Fprintf(&b, "  Quick (1-5 min): %d (%.1f%%)\n", a.GapQuick, gpct(a.GapQuick))
		fmt.Fprintf(&b, "  Moderate (5-30 min): %d (%.1f%%)\n", a.GapModerate, gpct(a.GapModerate))
		fmt.Fprintf(&b, "  Slow (30 min-2h): %d (%.1f%%)\n", a.GapSlow, gpct(a.GapSlow))
	}

	fmt.Fprintf(&b, "\nParticipants: %d unique\n", len(a.Participants))
	fmt.Fprintf(&b, "  Solo segments: %d (%.1f%%)\n", a.Solo, pct(a.Solo))
	fmt.Fprintf(&b, "  Group segments: %d (%.1f%%)\n", a.Group, pct(a.Group))

	fmt.Fprintf(&b, "\nLargest segments:\n")
	for i, seg := range a.Largest {
		fmt.Fprintf(&b, "  %d. %s - %d messages (%.1f hours)\n",
			i+1, seg.Date, seg.MessageCount, seg.TotalDurationMinutes/60)
	}

	days := make([]string, 0, len(a.PerDay))
	for d := range a.PerDay {
		days = append(days, d)
	}
	sort.Strings(days)
	fmt.Fprintf(&b, "\nSegments per date:\n")
	for _, d := range days {
		fmt.Fprintf(&b, "  %s: %d segments, %d messages\n", d, a.PerDay[d].Segments, a.PerDay[d].Messages)
	}

	return b.String()
}
