package netwatch

import (
	"strings"
	"time"
)

// Netwatch "since" values use the device-local clock and come in
// month-abbreviation forms, with the year omitted inside the current year.
var sinceLayouts = []string{
	"Jan/02/2006 15:04:05",
	"Jan/2/2006 15:04:05",
}

var sinceLayoutsNoYear = []string{
	"Jan/02 15:04:05",
	"Jan/2 15:04:05",
}

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseSince parses a remote netwatch timestamp. Unparseable values yield
// nil; the entry is still synced, only its timestamp is dropped.
func ParseSince(raw string, now time.Time) *time.Time {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return nil
	}

	// RouterOS prints month abbreviations lowercase; Go layouts want "Jan".
	titled := clean
	if len(titled) > 0 {
		titled = strings.ToUpper(titled[:1]) + titled[1:]
	}

	for _, layout := range sinceLayouts {
		if ts, err := time.Parse(layout, titled); err == nil {
			return timePtr(ts)
		}
	}
	for _, layout := range sinceLayoutsNoYear {
		if ts, err := time.Parse(layout, titled); err == nil {
			withYear := time.Date(now.Year(), ts.Month(), ts.Day(),
				ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC)
			return timePtr(withYear)
		}
	}
	for _, layout := range fallbackLayouts {
		if ts, err := time.Parse(layout, clean); err == nil {
			return timePtr(ts)
		}
	}
	return nil
}

func timePtr(ts time.Time) *time.Time {
	u := ts.UTC()
	return &u
}
