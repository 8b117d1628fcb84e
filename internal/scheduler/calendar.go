package scheduler

import (
	"errors"
	"sort"
	"time"
)

// ErrOverlap is returned when inserting an entry that overlaps an existing one.
var ErrOverlap = errors.New("scheduler: interval overlaps an existing commitment")

// CalendarEntry is one occupied interval of a resource.
type CalendarEntry struct {
	SessionID string
	Interval  Interval
}

// Calendar is the availability register of a single resource: a list of non-overlapping
// intervals kept sorted by start so overlap queries are a binary search plus a short scan.
// The zero value is an empty calendar. Calendar is not safe for concurrent use.
type Calendar struct {
	entries []CalendarEntry
}

// NewCalendar builds a calendar from commitments of a single resource.
// Overlapping input is rejected with ErrOverlap.
func NewCalendar(commitments []Commitment) (*Calendar, error) {
	cal := &Calendar{entries: make([]CalendarEntry, 0, len(commitments))}
	for _, c := range commitments {
		if err := cal.Insert(c.SessionID, c.Interval); err != nil {
			return nil, err
		}
	}
	return cal, nil
}

// Len returns the number of entries.
func (c *Calendar) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in start order.
func (c *Calendar) Entries() []CalendarEntry {
	out := make([]CalendarEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// firstEndingAfter returns the index of the first entry whose End is after t.
// Entries are disjoint and sorted, so End is sorted as well.
func (c *Calendar) firstEndingAfter(t time.Time) int {
	return sort.Search(len(c.entries), func(i int) bool {
		return c.entries[i].Interval.End.After(t)
	})
}

// Overlapping returns the entries that overlap the interval.
func (c *Calendar) Overlapping(iv Interval) []CalendarEntry {
	var out []CalendarEntry
	for i := c.firstEndingAfter(iv.Start); i < len(c.entries); i++ {
		entry := c.entries[i]
		if !entry.Interval.Start.Before(iv.End) {
			break
		}
		out = append(out, entry)
	}
	return out
}

// IsFree reports whether nothing overlaps the interval, ignoring entries of excludeSessionID.
func (c *Calendar) IsFree(iv Interval, excludeSessionID string) bool {
	for _, entry := range c.Overlapping(iv) {
		if excludeSessionID == "" || entry.SessionID != excludeSessionID {
			return false
		}
	}
	return true
}

// Insert adds an interval, keeping the list sorted. Empty intervals are rejected.
func (c *Calendar) Insert(sessionID string, iv Interval) error {
	if !iv.Valid() {
		return errors.New("scheduler: interval must have a positive duration")
	}
	if len(c.Overlapping(iv)) > 0 {
		return ErrOverlap
	}
	idx := sort.Search(len(c.entries), func(i int) bool {
		return !c.entries[i].Interval.Start.Before(iv.Start)
	})
	c.entries = append(c.entries, CalendarEntry{})
	copy(c.entries[idx+1:], c.entries[idx:])
	c.entries[idx] = CalendarEntry{SessionID: sessionID, Interval: iv}
	return nil
}

// Remove drops every entry of the session. Removing an unknown session is a no-op.
func (c *Calendar) Remove(sessionID string) {
	kept := c.entries[:0]
	for _, entry := range c.entries {
		if entry.SessionID != sessionID {
			kept = append(kept, entry)
		}
	}
	c.entries = kept
}

// Gaps returns the free intervals inside window that last at least minLength.
func (c *Calendar) Gaps(window Interval, minLength time.Duration) []Interval {
	if !window.Valid() {
		return nil
	}
	var gaps []Interval
	cursor := window.Start
	for _, entry := range c.Overlapping(window) {
		if entry.Interval.Start.After(cursor) {
			gaps = appendGap(gaps, Interval{Start: cursor, End: entry.Interval.Start}, minLength)
		}
		if entry.Interval.End.After(cursor) {
			cursor = entry.Interval.End
		}
	}
	if window.End.After(cursor) {
		gaps = appendGap(gaps, Interval{Start: cursor, End: window.End}, minLength)
	}
	return gaps
}

func appendGap(gaps []Interval, gap Interval, minLength time.Duration) []Interval {
	if gap.Duration() < minLength {
		return gaps
	}
	return append(gaps, gap)
}
