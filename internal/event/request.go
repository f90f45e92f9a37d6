package event

import (
	"time"

	"gorm.io/datatypes"
)

// ============================
// 🟡 Create Event Request
type CreateEventRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	AllDay      bool             `json:"all_day"`
	Location    string           `json:"location"`
	Category    string           `json:"category"`
	Color       string           `json:"color"`
	Status      string           `json:"status"`
	Attendees   []AttendeeInput  `json:"attendees"`
	Reminders   []ReminderInput  `json:"reminders"`
	Recurring   *RecurrenceInput `json:"recurring"`
	IsPublic    bool             `json:"is_public"`
	Notes       string           `json:"notes"`
	Tags        []string         `json:"tags"`
	Attachments []Attachment     `json:"attachments"`
}

// ============================
// 🟠 Update Event Request
// A nil field leaves the stored value untouched.
type UpdateEventRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Start       *time.Time       `json:"start"`
	End         *time.Time       `json:"end"`
	AllDay      *bool            `json:"all_day"`
	Location    *string          `json:"location"`
	Category    *string          `json:"category"`
	Color       *string          `json:"color"`
	Status      *string          `json:"status"`
	Attendees   *[]AttendeeInput `json:"attendees"`
	Reminders   *[]ReminderInput `json:"reminders"`
	Recurring   *RecurrenceInput `json:"recurring"`
	IsPublic    *bool            `json:"is_public"`
	Notes       *string          `json:"notes"`
	Tags        *[]string        `json:"tags"`
	Attachments *[]Attachment    `json:"attachments"`
}

type BulkUpdateRequest struct {
	EventIDs []uint             `json:"event_ids"`
	Updates  UpdateEventRequest `json:"updates"`
}

type AttendeeInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Response string `json:"response"`
}

type ReminderInput struct {
	Type string `json:"type"`
	Time *int   `json:"time"`
	Sent *bool  `json:"sent"`
}

type RecurrenceInput struct {
	IsRecurring *bool        `json:"is_recurring"`
	Pattern     *string      `json:"pattern"`
	Interval    *int         `json:"interval"`
	EndDate     *time.Time   `json:"end_date"`
	Exceptions  *[]time.Time `json:"exceptions"`
}

// toEvent builds a new event with every default applied.
func (r *CreateEventRequest) toEvent(ownerID uint, reminderMinutes int) *Event {
	e := &Event{
		OwnerID:     ownerID,
		Title:       r.Title,
		Description: r.Description,
		Start:       r.Start,
		End:         r.End,
		AllDay:      r.AllDay,
		Location:    r.Location,
		Category:    r.Category,
		Color:       r.Color,
		Status:      r.Status,
		IsPublic:    r.IsPublic,
		Notes:       r.Notes,
		Tags:        datatypes.JSONSlice[string](r.Tags),
		Attendees:   buildAttendees(r.Attendees),
		Attachments: datatypes.JSONSlice[Attachment](r.Attachments),
		Reminders:   buildReminders(r.Reminders, reminderMinutes),
		Recurring:   Recurrence{Pattern: PatternWeekly, Interval: 1},
	}
	if e.Category == "" {
		e.Category = CategoryOther
	}
	if e.Color == "" {
		e.Color = DefaultColor
	}
	if e.Status == "" {
		e.Status = StatusActive
	}
	if r.Recurring != nil {
		r.Recurring.applyTo(&e.Recurring)
	}
	return e
}

// IsEmpty reports whether the request would change nothing.
func (r *UpdateEventRequest) IsEmpty() bool {
	return r.Title == nil && r.Description == nil && r.Start == nil && r.End == nil &&
		r.AllDay == nil && r.Location == nil && r.Category == nil && r.Color == nil &&
		r.Status == nil && r.Attendees == nil && r.Reminders == nil && r.Recurring == nil &&
		r.IsPublic == nil && r.Notes == nil && r.Tags == nil && r.Attachments == nil
}

// apply merges the supplied fields into e. Validation happens afterwards
// on the merged result.
func (r *UpdateEventRequest) apply(e *Event, reminderMinutes int) {
	if r.Title != nil {
		e.Title = *r.Title
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Start != nil {
		e.Start = *r.Start
	}
	if r.End != nil {
		e.End = *r.End
	}
	if r.AllDay != nil {
		e.AllDay = *r.AllDay
	}
	if r.Location != nil {
		e.Location = *r.Location
	}
	if r.Category != nil {
		e.Category = *r.Category
	}
	if r.Color != nil {
		e.Color = *r.Color
	}
	if r.Status != nil {
		e.Status = *r.Status
	}
	if r.Attendees != nil {
		e.Attendees = buildAttendees(*r.Attendees)
	}
	if r.Reminders != nil {
		e.Reminders = buildReminders(*r.Reminders, reminderMinutes)
	}
	if r.Recurring != nil {
		r.Recurring.applyTo(&e.Recurring)
	}
	if r.IsPublic != nil {
		e.IsPublic = *r.IsPublic
	}
	if r.Notes != nil {
		e.Notes = *r.Notes
	}
	if r.Tags != nil {
		e.Tags = datatypes.JSONSlice[string](*r.Tags)
	}
	if r.Attachments != nil {
		e.Attachments = datatypes.JSONSlice[Attachment](*r.Attachments)
	}
}

func (r *RecurrenceInput) applyTo(rec *Recurrence) {
	if r.IsRecurring != nil {
		rec.IsRecurring = *r.IsRecurring
	}
	if r.Pattern != nil {
		rec.Pattern = *r.Pattern
	}
	if r.Interval != nil {
		rec.Interval = *r.Interval
	}
	if r.EndDate != nil {
		t := *r.EndDate
		rec.EndDate = &t
	}
	if r.Exceptions != nil {
		rec.Exceptions = datatypes.JSONSlice[time.Time](*r.Exceptions)
	}
	if rec.Pattern == "" {
		rec.Pattern = PatternWeekly
	}
}

func buildAttendees(in []AttendeeInput) datatypes.JSONSlice[Attendee] {
	if in == nil {
		return nil
	}
	out := make(datatypes.JSONSlice[Attendee], 0, len(in))
	for _, a := range in {
		resp := a.Response
		if resp == "" {
			resp = ResponsePending
		}
		out = append(out, Attendee{Email: a.Email, Name: a.Name, Response: resp})
	}
	return out
}

// buildReminders replaces the reminder list. Sent flags reset unless the
// caller echoes them back.
func buildReminders(in []ReminderInput, defaultMinutes int) []Reminder {
	if in == nil {
		return nil
	}
	if defaultMinutes < 0 {
		defaultMinutes = DefaultReminderMinutes
	}
	out := make([]Reminder, 0, len(in))
	for _, r := range in {
		rem := Reminder{Type: r.Type, Time: defaultMinutes}
		if rem.Type == "" {
			rem.Type = ReminderEmail
		}
		if r.Time != nil {
			rem.Time = *r.Time
		}
		if r.Sent != nil {
			rem.Sent = *r.Sent
		}
		out = append(out, rem)
	}
	return out
}
