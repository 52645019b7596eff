// Package normalize converts raw exported message records into canonical,
// immutable per-message records: stable identity, tagged sender, UTC
// timestamp, sanitized text, extracted emoji/URL substrings, and the derived
// feature set.
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jbellard/chatseg/internal/feature"
)

// SchemaVersion is the default schema version stamped on normalized records.
const SchemaVersion = "1.0"

// DefaultSourceDeviceID is the passthrough device tag when none is supplied.
const DefaultSourceDeviceID = "unknown"

// TimestampLayout is the single documented input timestamp format. Note the
// two spaces between date and time; the export writes them that way.
const TimestampLayout = "Jan 2, 2006  3:04:05 PM"

// RawRecord is one unvalidated object from the export stream.
type RawRecord struct {
	GUID        string          `json:"guid,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Sender      string          `json:"sender,omitempty"`
	Contents    string          `json:"contents,omitempty"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	IsFromMe    *bool           `json:"is_from_me,omitempty"`
	ReadTime    json.RawMessage `json:"readtime,omitempty"`
}

// Attachment is a mime-type-tagged attachment descriptor, copied verbatim
// from the raw record.
type Attachment struct {
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Record is the canonical per-message representation. It is created once by
// the pipeline and never mutated afterwards.
type Record struct {
	ID             string            `json:"id"`
	Timestamp      string            `json:"timestamp,omitempty"`
	Sender         Sender            `json:"sender"`
	IsFromMe       *bool             `json:"is_from_me,omitempty"`
	ReadTime       json.RawMessage   `json:"readtime,omitempty"`
	Contents       string            `json:"contents"`
	Attachments    []Attachment      `json:"attachments"`
	SourceDeviceID string            `json:"source_device_id"`
	SchemaVersion  string            `json:"schema_version"`
	Extracted      feature.Extracted `json:"extracted"`
	Features       feature.Features  `json:"features"`
	Fingerprint    string            `json:"fingerprint,omitempty"`
}

// Time parses the canonical timestamp back into a time.Time. The second
// return is false for records whose source timestamp could not be parsed.
func (r *Record) Time() (time.Time, bool) {
	if r.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SenderKind discriminates the sender variant. Exactly one kind is set per
// record.
type SenderKind int

const (
	SenderMe SenderKind = iota
	SenderPhone
	SenderOther
)

// Sender is the tagged sender variant: the local user ("me"), a validated
// E.164 phone number, or an opaque string.
type Sender struct {
	Kind  SenderKind
	Value string // phone number or opaque payload; empty for SenderMe
}

// Identity returns the participant identity string used for grouping:
// "me" for the local user, otherwise the preserved sender value.
func (s Sender) Identity() string {
	if s.Kind == SenderMe {
		return "me"
	}
	return s.Value
}

// MarshalJSON writes the variant as a single-key object: {"me":true},
// {"phone":"+15551234567"}, or {"other":"..."}.
func (s Sender) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SenderMe:
		return []byte(`{"me":true}`), nil
	case SenderPhone:
		return json.Marshal(map[string]string{"phone": s.Value})
	default:
		return json.Marshal(map[string]string{"other": s.Value})
	}
}

// UnmarshalJSON reads the single-key variant form back.
func (s *Sender) UnmarshalJSON(data []byte) error {
	var raw struct {
		Me    bool    `json:"me"`
		Phone *string `json:"phone"`
		Other *string `json:"other"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Me:
		*s = Sender{Kind: SenderMe}
	case raw.Phone != nil:
		*s = Sender{Kind: SenderPhone, Value: *raw.Phone}
	case raw.Other != nil:
		*s = Sender{Kind: SenderOther, Value: *raw.Other}
	default:
		return fmt.Errorf("sender object has no recognized tag")
	}
	return nil
}
