// Package edition defines the timezone-local publication edition and the UTC
// window that decides which raw items belong to it. A local edition is
// compiled from the prior UTC day's output, so the window always spans the
// full UTC calendar day before the local edition date. This is fixed policy,
// not a per-call option.
package edition

import (
	"fmt"
	"time"
)

// DateFormat is the canonical layout for edition dates
const DateFormat = "2006-01-02"

// Window is the canonical UTC interval for one edition. UTCStart and UTCEnd
// are inclusive bounds.
type Window struct {
	EditionDateLocal string // YYYY-MM-DD in Timezone
	Timezone         string
	UTCDate          string // YYYY-MM-DD, one day before EditionDateLocal
	UTCStart         time.Time
	UTCEnd           time.Time
}

// Today returns the current calendar date in the named timezone
func Today(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return time.Now().In(loc).Format(DateFormat), nil
}

// WindowFor computes the edition window for a local calendar date. The UTC
// date is one day before the local edition date and the window spans that
// full UTC day, 00:00:00 through 23:59:59.
func WindowFor(editionDateLocal, tz string) (Window, error) {
	if _, err := time.LoadLocation(tz); err != nil {
		return Window{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	localDate, err := time.ParseInLocation(DateFormat, editionDateLocal, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("parse edition date %q: %w", editionDateLocal, err)
	}

	utcDate := localDate.AddDate(0, 0, -1)
	start := time.Date(utcDate.Year(), utcDate.Month(), utcDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(utcDate.Year(), utcDate.Month(), utcDate.Day(), 23, 59, 59, 0, time.UTC)

	return Window{
		EditionDateLocal: editionDateLocal,
		Timezone:         tz,
		UTCDate:          utcDate.Format(DateFormat),
		UTCStart:         start,
		UTCEnd:           end,
	}, nil
}

// Contains reports whether t falls inside the window, both bounds inclusive.
// This is the single in-scope test every adapter filters by.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.UTCStart) && !t.After(w.UTCEnd)
}

// Span returns the window duration in seconds, never less than one second so
// recency math stays defined for degenerate windows.
func (w Window) Span() float64 {
	span := w.UTCEnd.Sub(w.UTCStart).Seconds()
	if span <= 0 {
		return 1
	}
	return span
}

// String renders the window the way the ingest CLI prints it
func (w Window) String() string {
	return fmt.Sprintf("edition %s (%s) => UTC %s [%s .. %s]",
		w.EditionDateLocal, w.Timezone, w.UTCDate,
		w.UTCStart.Format(time.RFC3339), w.UTCEnd.Format(time.RFC3339))
}
