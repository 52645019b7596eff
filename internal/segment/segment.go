// Package segment groups chronologically ordered messages into time-bounded
// conversation segments.
//
// A segment is a maximal run of messages on the same UTC calendar day whose
// consecutive gaps never exceed the configured window. Records without a
// parseable timestamp are excluded before grouping. Segments are immutable
// once closed.
package segment

import (
	"fmt"
	"sort"
	"time"

	"github.com/jbellard/chatseg/internal/normalize"
)

// DefaultWindowHours is the default inactivity threshold between messages.
const DefaultWindowHours = 2

// Segment is one closed conversation run.
type Segment struct {
	SegmentID            string              `json:"segment_id"`
	Date                 string              `json:"date"`
	StartTime            string              `json:"start_time"`
	EndTime              string              `json:"end_time"`
	MessageCount         int                 `json:"message_count"`
	Participants         []string            `json:"participants"`
	Messages             []*normalize.Record `json:"messages"`
	TimeGaps             []float64           `json:"time_gaps"`
	TotalDurationMinutes float64             `json:"total_duration_minutes"`
	AvgGapMinutes        float64             `json:"avg_gap_minutes"`
	MinGapMinutes        float64             `json:"min_gap_minutes"`
	MaxGapMinutes        float64             `json:"max_gap_minutes"`
}

// Segmenter partitions record streams. The segment-id counter is owned by
// the instance and resets on every Segment call, so identifiers are
// monotonic across one whole run and deterministic between runs.
type Segmenter struct {
	windowMinutes float64
	nextID        int
}

// NewSegmenter creates a Segmenter with the given window in hours.
// Non-positive values fall back to the default.
func NewSegmenter(windowHours float64) *Segmenter {
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	return &Segmenter{windowMinutes: windowHours * 60}
}

type timed struct {
	rec  *normalize.Record
	t    time.Time
	date string
}

// Segment orders records chronologically and partitions them into segments.
// The sort is stable: records with identical timestamps keep their input
// order and land in the same segment with a gap of zero.
func (s *Segmenter) Segment(records []*normalize.Record) []*Segment {
	s.nextID = 1

	entries := make([]timed, 0, len(records))
	for _, rec := range records {
		t, ok := rec.Time()
		if !ok {
			continue
		}
		t = t.UTC()
		entries = append(entries, timed{rec: rec, t: t, date: t.Format("2006-01-02")})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].t.Before(entries[j].t)
	})

	var segments []*Segment
	var open *builder
	for i, e := range entries {
		if open != nil {
			gap := e.t.Sub(entries[i-1].t).Minutes()
			if e.date == open.date && gap <= s.windowMinutes {
				open.add(e, gap)
				continue
			}
			segments = append(segments, open.close())
			open = nil
		}
		open = s.openSegment(e)
	}
	if open != nil {
		segments = append(segments, open.close())
	}

	return segments
}

// builder accumulates one in-progress segment.
type builder struct {
	seg  *Segment
	date string
	seen map[string]bool
}

func (s *Segmenter) openSegment(e timed) *builder {
	seg := &Segment{
		SegmentID:    segmentID(s.nextID),
		Date:         e.date,
		StartTime:    e.t.Format(time.RFC3339),
		EndTime:      e.t.Format(time.RFC3339),
		MessageCount: 1,
		Participants: []string{},
		Messages:     []*normalize.Record{e.rec},
		TimeGaps:     []float64{},
	}
	s.nextID++
	b := &builder{seg: seg, date: e.date, seen: map[string]bool{}}
	b.addParticipant(e.rec)
	return b
}

func (b *builder) add(e timed, gap float64) {
	b.seg.Messages = append(b.seg.Messages, e.rec)
	b.seg.MessageCount++
	b.seg.EndTime = e.t.Format(time.RFC3339)
	b.seg.TimeGaps = append(b.seg.TimeGaps, gap)
	b.addParticipant(e.rec)
}

// addParticipant records the sender identity with insertion ordering, so
// participant lists serialize identically across runs.
func (b *builder) addParticipant(rec *normalize.Record) {
	id := rec.Sender.Identity()
	if id == "" || b.seen[id] {
		return
	}
	b.seen[id] = true
	b.seg.Participants = append(b.seg.Participants, id)
}

// close finalizes gap statistics. A single-message segment has duration 0
// and zeroed gap stats.
func (b *builder) close() *Segment {
	seg := b.seg
	if len(seg.TimeGaps) == 0 {
		return seg
	}

	var total, min, max float64
	min = seg.TimeGaps[0]
	max = seg.TimeGaps[0]
	for _, g := range seg.TimeGaps {
		total += g
		if g < min {
			min = g
		}
		if g > max {
			max = g
		}
	}
	seg.TotalDurationMinutes = total
	seg.AvgGapMinutes = total / float64(len(seg.TimeGaps))
	seg.MinGapMinutes = min
	seg.MaxGapMinutes = max
	return seg
}

func segmentID(n int) string {
	return fmt.Sprintf("segment_%04d", n)
}
