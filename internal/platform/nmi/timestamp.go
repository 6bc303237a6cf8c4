package nmi

import (
	"strings"
	"time"
)

var timestampLayouts = []string{
	"20060102150405",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02",
	"20060102",
}

// ParseTimestamp accepts the formats the gateway has been seen to emit.
// Zone-less values are UTC. Unparseable input yields nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
