package recurrence

import (
	"errors"
	"time"
)

// DefaultTimezone is the zone course series are planned in when none is configured.
const DefaultTimezone = "Europe/Paris"

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates occurrences for each day within the range.
	FrequencyDaily
	// FrequencyWeekly generates occurrences for the selected weekdays.
	FrequencyWeekly
)

// ParseFrequency accepts "daily" and "weekly".
func ParseFrequency(value string) (Frequency, error) {
	switch value {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	default:
		return FrequencyUnspecified, ErrInvalidFrequency
	}
}

// Rule describes how a course series repeats.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	// EveryWeeks skips weeks for weekly rules: 2 means every other week. Zero means every week.
	EveryWeeks int
	StartsOn   time.Time
	EndsOn     *time.Time
	// Count caps the number of occurrences. Zero means no cap.
	Count int
}

// GenerateOptions defines optional range bounds for occurrence generation.
type GenerateOptions struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// Occurrence is one generated slot of a series. Index counts from zero in chronological order.
type Occurrence struct {
	Index int
	Start time.Time
	End   time.Time
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that plans wall-clock times in loc.
// If loc is nil, Europe/Paris is used, or UTC when the zone database is unavailable.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = defaultLocation()
	}
	return &Engine{location: loc}
}

// Location returns the zone occurrences are planned in.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return defaultLocation()
	}
	return e.location
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWindow indicates the generation window is unbounded.
var ErrInvalidWindow = errors.New("recurrence: generation window requires an end bound")

// ErrInvalidDuration indicates the base session duration is invalid.
var ErrInvalidDuration = errors.New("recurrence: session duration must be positive")

// GenerateOccurrences produces occurrences of the template slot within the configured window.
//
//   - Occurrences keep the template's wall-clock time in the engine's zone, across DST changes.
//   - The window is bounded by the rule's EndsOn, the optional range end or the rule's Count;
//     at least one of them is required.
//   - Weekly rules need weekdays; daily rules filter by weekdays when provided.
func (e *Engine) GenerateOccurrences(rule Rule, baseStart time.Time, duration time.Duration, opts GenerateOptions) ([]Occurrence, error) {
	loc := e.Location()
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if rule.Frequency != FrequencyDaily && rule.Frequency != FrequencyWeekly {
		return nil, ErrInvalidFrequency
	}
	baseStart = baseStart.In(loc)

	ruleStart := rule.StartsOn.In(loc)
	if rule.StartsOn.IsZero() {
		ruleStart = baseStart
	}

	var upperBound time.Time
	hasUpper := false
	if rule.EndsOn != nil {
		upperBound = rule.EndsOn.In(loc)
		hasUpper = true
	}
	if opts.RangeEnd != nil {
		rangeEnd := opts.RangeEnd.In(loc)
		if !hasUpper || rangeEnd.Before(upperBound) {
			upperBound = rangeEnd
		}
		hasUpper = true
	}
	if !hasUpper && rule.Count <= 0 {
		return nil, ErrInvalidWindow
	}

	lowerBound := ruleStart
	if opts.RangeStart != nil && opts.RangeStart.After(lowerBound) {
		lowerBound = opts.RangeStart.In(loc)
	}
	if hasUpper && lowerBound.After(upperBound) {
		return nil, nil
	}

	weekdaySet := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdaySet[day] = struct{}{}
	}
	if rule.Frequency == FrequencyWeekly && len(weekdaySet) == 0 {
		return nil, nil
	}
	everyWeeks := rule.EveryWeeks
	if everyWeeks <= 0 {
		everyWeeks = 1
	}
	anchorMonday := mondayOf(ruleStart)

	// Occurrences before the range still count towards the rule's Count.
	day := startOfDay(ruleStart)
	index := 0
	occurrences := make([]Occurrence, 0)
	for {
		current := combineDateTime(day, baseStart, loc)
		if hasUpper && current.After(upperBound) {
			break
		}
		if rule.Count > 0 && index >= rule.Count {
			break
		}

		if !current.Before(ruleStart) && includes(rule.Frequency, weekdaySet, everyWeeks, anchorMonday, current) {
			if !current.Before(lowerBound) {
				occurrences = append(occurrences, Occurrence{
					Index: index,
					Start: current,
					End:   current.Add(duration),
				})
			}
			index++
		}

		day = day.AddDate(0, 0, 1)
	}

	return occurrences, nil
}

func includes(freq Frequency, weekdaySet map[time.Weekday]struct{}, everyWeeks int, anchorMonday, current time.Time) bool {
	if len(weekdaySet) > 0 {
		if _, ok := weekdaySet[current.Weekday()]; !ok {
			return false
		}
	}
	if freq == FrequencyWeekly && everyWeeks > 1 {
		weeks := daysBetween(anchorMonday, mondayOf(current)) / 7
		return weeks%everyWeeks == 0
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

func combineDateTime(dateSource, template time.Time, loc *time.Location) time.Time {
	y, m, d := dateSource.In(loc).Date()
	tpl := template.In(loc)
	return time.Date(y, m, d, tpl.Hour(), tpl.Minute(), tpl.Second(), tpl.Nanosecond(), loc)
}
