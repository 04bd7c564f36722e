package models

import (
	"fmt"
	"strings"
	"time"
)

// RecordTimeLayout is the timestamp layout used by the Record Source.
const RecordTimeLayout = "2006-01-02 15:04:05.000Z"

var parseLayouts = []string{
	RecordTimeLayout,
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02",
}

// DateTime is a timestamp that decodes from the Record Source format and from
// RFC 3339. The empty string and null decode to the zero time.
type DateTime struct {
	time.Time
}

// NewDateTime returns t truncated to milliseconds in UTC.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t.UTC().Truncate(time.Millisecond)}
}

// ParseDateTime parses any supported layout.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateTime{}, nil
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTime{Time: t.UTC()}, nil
		}
	}
	return DateTime{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// String renders the Record Source layout, or "" for the zero time.
func (d DateTime) String() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(RecordTimeLayout)
}

// UnixMilliOrEpoch returns the timestamp in milliseconds, treating an absent
// timestamp as the Unix epoch.
func (d DateTime) UnixMilliOrEpoch() int64 {
	if d.IsZero() {
		return 0
	}
	return d.UnixMilli()
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*d = DateTime{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("timestamp must be a string, got %s", s)
	}
	parsed, err := ParseDateTime(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
