package normalize

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/jbellard/chatseg/internal/feature"
	"github.com/jbellard/chatseg/internal/fingerprint"
)

// e164RE matches a strict E.164 number: leading +, first digit 1-9, 2-15
// digits total.
var e164RE = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// isoLayouts are the ISO-8601 shapes passed through unchanged (re-rendered
// in canonical form). Offset-less values are taken as UTC.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Options configures a Normalizer.
type Options struct {
	SchemaVersion  string
	SourceDeviceID string
	Patterns       *feature.Patterns
}

// Normalizer turns RawRecords into canonical Records.
type Normalizer struct {
	extractor     *feature.Extractor
	schemaVersion string
	deviceID      string
}

// New creates a Normalizer. Zero-value options fall back to defaults.
func New(opts Options) (*Normalizer, error) {
	if opts.SchemaVersion == "" {
		opts.SchemaVersion = SchemaVersion
	}
	if opts.SourceDeviceID == "" {
		opts.SourceDeviceID = DefaultSourceDeviceID
	}
	ex, err := feature.NewExtractor(opts.Patterns)
	if err != nil {
		return nil, fmt.Errorf("building feature extractor: %w", err)
	}
	return &Normalizer{
		extractor:     ex,
		schemaVersion: opts.SchemaVersion,
		deviceID:      opts.SourceDeviceID,
	}, nil
}

// Normalize produces the canonical record for one raw input record.
//
// Identity is derived from the raw, pre-normalization values so the same
// raw triplet reproduces the same id even if normalization rules change
// later. Emoji/URL extraction runs on the raw contents before control
// characters are stripped, so sanitization cannot disturb pattern matching.
func (n *Normalizer) Normalize(raw RawRecord) (*Record, error) {
	rec := &Record{
		ID:             StableID(raw),
		Sender:         ParseSender(raw.Sender),
		IsFromMe:       raw.IsFromMe,
		ReadTime:       raw.ReadTime,
		SourceDeviceID: n.deviceID,
		SchemaVersion:  n.schemaVersion,
	}

	if ts, ok := ParseTimestamp(raw.Timestamp); ok {
		rec.Timestamp = ts
	}

	cleaned, extracted := n.extractor.Extract(raw.Contents)
	final := SanitizeText(cleaned)
	rec.Contents = final
	rec.Extracted = extracted
	rec.Features = n.extractor.Compute(final, extracted)

	rec.Attachments = make([]Attachment, len(raw.Attachments))
	copy(rec.Attachments, raw.Attachments)

	fp, err := fingerprint.Sum(rec)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting record %s: %w", rec.ID, err)
	}
	rec.Fingerprint = fp

	return rec, nil
}

// StableID returns the record identity: the source guid verbatim when
// present, otherwise the SHA-256 hex digest of the pipe-joined raw
// timestamp, sender, and contents.
func StableID(raw RawRecord) string {
	if raw.GUID != "" {
		return raw.GUID
	}
	sum := sha256.Sum256([]byte(raw.Timestamp + "|" + raw.Sender + "|" + raw.Contents))
	return fmt.Sprintf("%x", sum)
}

// ParseSender maps the free-text sender field onto the tagged variant.
// The exact string "Me" is the local user; a valid E.164 number keeps its
// string under the phone tag; everything else is preserved opaquely.
func ParseSender(sender string) Sender {
	switch {
	case sender == "Me":
		return Sender{Kind: SenderMe}
	case e164RE.MatchString(sender):
		return Sender{Kind: SenderPhone, Value: sender}
	default:
		return Sender{Kind: SenderOther, Value: sender}
	}
}

// ParseTimestamp converts a source timestamp to the canonical RFC 3339 UTC
// form. The export layout and ISO-8601 values are accepted; anything else
// reports ok=false and the field stays absent.
//
// Parsed wall-clock values are stamped UTC without timezone inference. The
// export carries no offset, so the true local offset is unknowable here;
// this is a documented approximation and downstream day boundaries depend
// on it staying that way.
func ParseTimestamp(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if t, err := time.Parse(TimestampLayout, value); err == nil {
		return t.UTC().Format(time.RFC3339), true
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

// SanitizeText strips non-printable characters, keeping newline, tab, and
// carriage return, then trims surrounding whitespace.
func SanitizeText(text string) string {
	if text == "" {
		return text
	}
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text)
	return strings.TrimSpace(cleaned)
}
