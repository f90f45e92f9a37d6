// Package recurrence materializes occurrences of recurring events.
package recurrence

import (
	"fmt"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/teambition/rrule-go"
)

// MaxPreview bounds how many instants a single preview returns.
const MaxPreview = 500

func frequency(pattern string) (rrule.Frequency, error) {
	switch pattern {
	case event.PatternDaily:
		return rrule.DAILY, nil
	case event.PatternWeekly:
		return rrule.WEEKLY, nil
	case event.PatternMonthly:
		return rrule.MONTHLY, nil
	case event.PatternYearly:
		return rrule.YEARLY, nil
	}
	return 0, fmt.Errorf("unknown recurrence pattern %q", pattern)
}

func newRule(pattern string, interval int, dtstart time.Time, count int) (*rrule.RRule, error) {
	freq, err := frequency(pattern)
	if err != nil {
		return nil, err
	}
	if interval < 1 {
		interval = 1
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:     freq,
		Interval: interval,
		Dtstart:  dtstart,
		Count:    count,
	})
}

// Next returns the first instant after anchor in the series anchored there.
// Months without the anchor's day are skipped, so a monthly series on the
// 31st goes from January straight to March.
func Next(pattern string, interval int, anchor time.Time) (time.Time, error) {
	r, err := newRule(pattern, interval, anchor, 2)
	if err != nil {
		return time.Time{}, err
	}
	all := r.All()
	if len(all) < 2 {
		return time.Time{}, fmt.Errorf("no occurrence after %s for %s/%d", anchor.Format(time.RFC3339), pattern, interval)
	}
	return all[1], nil
}

// Seed is the instant the next occurrence is counted from: the last
// generated occurrence, else the recurrence end date, else the template end.
func Seed(tmpl *event.Event) time.Time {
	if tmpl.Recurring.LastOccurrence != nil {
		return *tmpl.Recurring.LastOccurrence
	}
	if tmpl.Recurring.EndDate != nil {
		return *tmpl.Recurring.EndDate
	}
	return tmpl.End
}

// IsException reports whether t falls on a calendar date listed in the
// template's exceptions, compared in the template's own location.
func IsException(tmpl *event.Event, t time.Time) bool {
	loc := tmpl.Start.Location()
	y, m, d := t.In(loc).Date()
	for _, ex := range tmpl.Recurring.Exceptions {
		ey, em, ed := ex.In(loc).Date()
		if y == ey && m == em && d == ed {
			return true
		}
	}
	return false
}

// Occurrence copies the template into an independent, non-recurring event
// starting at start with the template's duration.
func Occurrence(tmpl *event.Event, start time.Time) *event.Event {
	occ := tmpl.Clone()
	templateID := tmpl.ID
	duration := tmpl.Duration()

	occ.ID = 0
	occ.Start = start
	occ.End = start.Add(duration)
	occ.TemplateID = &templateID
	occ.CreatedAt, occ.UpdatedAt = time.Time{}, time.Time{}
	occ.Recurring = event.Recurrence{Pattern: tmpl.Recurring.Pattern, Interval: tmpl.Recurring.Interval}
	occ.Reminders = make([]event.Reminder, 0, len(tmpl.Reminders))
	for _, r := range tmpl.Reminders {
		occ.Reminders = append(occ.Reminders, event.Reminder{Type: r.Type, Time: r.Time})
	}
	return occ
}

// Preview lists the instants the generator would produce within [from, to],
// exceptions excluded. Nothing is written.
func Preview(tmpl *event.Event, from, to time.Time) ([]time.Time, error) {
	seed := Seed(tmpl)
	r, err := newRule(tmpl.Recurring.Pattern, tmpl.Recurring.Interval, seed, 0)
	if err != nil {
		return nil, err
	}

	var set rrule.Set
	set.RRule(r)
	loc := seed.Location()
	for _, ex := range tmpl.Recurring.Exceptions {
		// Occurrences share the seed's wall clock time, so the excluded
		// instant is the exception date at that time.
		y, m, d := ex.In(tmpl.Start.Location()).Date()
		set.ExDate(time.Date(y, m, d, seed.Hour(), seed.Minute(), seed.Second(), 0, loc))
	}

	out := make([]time.Time, 0)
	for _, t := range set.Between(from, to, true) {
		if !t.After(seed) || IsException(tmpl, t) {
			continue
		}
		out = append(out, t)
		if len(out) == MaxPreview {
			break
		}
	}
	return out, nil
}

// RuleString renders the pattern as an RFC 5545 RRULE value such as
// "FREQ=WEEKLY;INTERVAL=2".
func RuleString(pattern string, interval int) (string, error) {
	freq, err := frequency(pattern)
	if err != nil {
		return "", err
	}
	if interval < 1 {
		interval = 1
	}
	opt := rrule.ROption{Freq: freq, Interval: interval}
	return opt.RRuleString(), nil
}
