package event

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
	maxLocationLen    = 200
)

var colorPattern = regexp.MustCompile(`(?i)^#[0-9A-F]{6}$`)

// normalize trims free text and collapses the tag list to a set.
func normalize(e *Event) {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Location = strings.TrimSpace(e.Location)

	if e.Tags != nil {
		seen := make(map[string]struct{}, len(e.Tags))
		tags := e.Tags[:0]
		for _, t := range e.Tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
		e.Tags = tags
	}
	for i := range e.Attendees {
		e.Attendees[i].Email = strings.TrimSpace(e.Attendees[i].Email)
	}
}

// validate checks a fully merged event. It is run on every write path so
// that a partial update cannot leave the record in an invalid state.
func validate(e *Event) error {
	v := &ValidationError{}

	switch n := utf8.RuneCountInString(e.Title); {
	case n == 0:
		v.Add("title", "title is required")
	case n > maxTitleLen:
		v.Add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if utf8.RuneCountInString(e.Description) > maxDescriptionLen {
		v.Add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLen))
	}
	if utf8.RuneCountInString(e.Location) > maxLocationLen {
		v.Add("location", fmt.Sprintf("location must be at most %d characters", maxLocationLen))
	}

	if e.Start.IsZero() {
		v.Add("start", "start is required")
	}
	if e.End.IsZero() {
		v.Add("end", "end is required")
	}
	if !e.Start.IsZero() && !e.End.IsZero() && !e.End.After(e.Start) {
		v.Add("end", "end must be after start")
	}

	if !contains(Categories, e.Category) {
		v.Add("category", "category must be one of "+strings.Join(Categories, ", "))
	}
	if !colorPattern.MatchString(e.Color) {
		v.Add("color", "color must be a hex value like #3788d8")
	}
	if !contains(Statuses, e.Status) {
		v.Add("status", "status must be one of "+strings.Join(Statuses, ", "))
	}

	for i, a := range e.Attendees {
		field := fmt.Sprintf("attendees[%d]", i)
		if a.Email == "" {
			v.Add(field+".email", "email is required")
		} else if _, err := mail.ParseAddress(a.Email); err != nil {
			v.Add(field+".email", "email is not a valid address")
		}
		if !contains(Responses, a.Response) {
			v.Add(field+".response", "response must be one of "+strings.Join(Responses, ", "))
		}
	}

	for i, r := range e.Reminders {
		field := fmt.Sprintf("reminders[%d]", i)
		if !contains(ReminderTypes, r.Type) {
			v.Add(field+".type", "type must be one of "+strings.Join(ReminderTypes, ", "))
		}
		if r.Time < 0 {
			v.Add(field+".time", "time must not be negative")
		}
	}

	if e.Recurring.Interval < 1 {
		v.Add("recurring.interval", "interval must be at least 1")
	}
	if !contains(Patterns, e.Recurring.Pattern) {
		v.Add("recurring.pattern", "pattern must be one of "+strings.Join(Patterns, ", "))
	}

	return v.Err()
}
