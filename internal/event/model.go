package event

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	CategoryWork     = "work"
	CategoryPersonal = "personal"
	CategoryMeeting  = "meeting"
	CategoryBirthday = "birthday"
	CategoryHoliday  = "holiday"
	CategoryOther    = "other"

	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	// StatusAll is only meaningful as a query filter.
	StatusAll = "all"

	PatternDaily   = "daily"
	PatternWeekly  = "weekly"
	PatternMonthly = "monthly"
	PatternYearly  = "yearly"

	ReminderEmail = "email"
	ReminderPush  = "push"
	ReminderSMS   = "sms"

	ResponsePending  = "pending"
	ResponseAccepted = "accepted"
	ResponseDeclined = "declined"

	DefaultColor           = "#3788d8"
	DefaultReminderMinutes = 15
)

var (
	Categories    = []string{CategoryWork, CategoryPersonal, CategoryMeeting, CategoryBirthday, CategoryHoliday, CategoryOther}
	Statuses      = []string{StatusActive, StatusCancelled, StatusCompleted}
	Patterns      = []string{PatternDaily, PatternWeekly, PatternMonthly, PatternYearly}
	ReminderTypes = []string{ReminderEmail, ReminderPush, ReminderSMS}
	Responses     = []string{ResponsePending, ResponseAccepted, ResponseDeclined}
)

// ============================
// 🔷 GORM Event Model
type Event struct {
	ID          uint                            `gorm:"primaryKey" json:"id"`
	OwnerID     uint                            `gorm:"not null;index:idx_events_owner_start_end,priority:1" json:"owner_id"`
	Title       string                          `gorm:"type:varchar(100);not null" json:"title"`
	Description string                          `gorm:"type:varchar(500)" json:"description"`
	Start       time.Time                       `gorm:"column:start_at;not null;index:idx_events_owner_start_end,priority:2;index:idx_events_start_end,priority:1" json:"start"`
	End         time.Time                       `gorm:"column:end_at;not null;index:idx_events_owner_start_end,priority:3;index:idx_events_start_end,priority:2" json:"end"`
	AllDay      bool                            `gorm:"not null" json:"all_day"`
	Location    string                          `gorm:"type:varchar(200)" json:"location"`
	Category    string                          `gorm:"type:varchar(20);not null;index" json:"category"`
	Color       string                          `gorm:"type:varchar(7);not null" json:"color"`
	Status      string                          `gorm:"type:varchar(20);not null;index" json:"status"`
	IsPublic    bool                            `gorm:"not null" json:"is_public"`
	Notes       string                          `gorm:"type:text" json:"notes"`
	Tags        datatypes.JSONSlice[string]     `gorm:"type:jsonb" json:"tags"`
	Attendees   datatypes.JSONSlice[Attendee]   `gorm:"type:jsonb" json:"attendees"`
	Attachments datatypes.JSONSlice[Attachment] `gorm:"type:jsonb" json:"attachments"`
	Reminders   []Reminder                      `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"reminders"`
	Recurring   Recurrence                      `gorm:"embedded;embeddedPrefix:recurring_" json:"recurring"`
	TemplateID  *uint                           `gorm:"index" json:"template_id,omitempty"`
	CreatedAt   time.Time                       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Attendee struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Response string `json:"response"`
}

// Attachment is stored as given; nothing interprets it.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Reminder rows live in their own table so that the sent flag can be
// flipped with a single conditional UPDATE.
type Reminder struct {
	ID      uint       `gorm:"primaryKey" json:"id"`
	EventID uint       `gorm:"not null;index" json:"-"`
	Type    string     `gorm:"type:varchar(10);not null" json:"type"`
	Time    int        `gorm:"column:minutes_before;not null" json:"time"`
	Sent    bool       `gorm:"not null;index" json:"sent"`
	SentAt  *time.Time `json:"sent_at,omitempty"`
}

func (Reminder) TableName() string {
	return "event_reminders"
}

// DueAt is the instant the reminder should fire for an event starting at start.
func (r Reminder) DueAt(start time.Time) time.Time {
	return start.Add(-time.Duration(r.Time) * time.Minute)
}

type Recurrence struct {
	IsRecurring bool                           `gorm:"not null;index" json:"is_recurring"`
	Pattern     string                         `gorm:"type:varchar(10)" json:"pattern"`
	Interval    int                            `gorm:"not null" json:"interval"`
	EndDate     *time.Time                     `json:"end_date,omitempty"`
	Exceptions  datatypes.JSONSlice[time.Time] `gorm:"type:jsonb" json:"exceptions"`
	// LastOccurrence is the start of the most recently generated occurrence.
	// Only the recurrence generator writes it.
	LastOccurrence *time.Time `json:"last_occurrence,omitempty"`
}

// Duration is end minus start.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// IsHappeningNow reports whether now falls within [start, end].
func (e *Event) IsHappeningNow(now time.Time) bool {
	return !now.Before(e.Start) && !now.After(e.End)
}

func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		DurationMS int64 `json:"duration_ms"`
	}{plain(e), e.Duration().Milliseconds()})
}

// Clone returns a deep copy; slices are not shared with the receiver.
func (e *Event) Clone() *Event {
	c := *e
	c.Tags = append(datatypes.JSONSlice[string](nil), e.Tags...)
	c.Attendees = append(datatypes.JSONSlice[Attendee](nil), e.Attendees...)
	c.Attachments = append(datatypes.JSONSlice[Attachment](nil), e.Attachments...)
	c.Reminders = append([]Reminder(nil), e.Reminders...)
	c.Recurring.Exceptions = append(datatypes.JSONSlice[time.Time](nil), e.Recurring.Exceptions...)
	if e.Recurring.EndDate != nil {
		t := *e.Recurring.EndDate
		c.Recurring.EndDate = &t
	}
	if e.Recurring.LastOccurrence != nil {
		t := *e.Recurring.LastOccurrence
		c.Recurring.LastOccurrence = &t
	}
	if e.TemplateID != nil {
		id := *e.TemplateID
		c.TemplateID = &id
	}
	return &c
}

// UnsentReminders returns the reminders that have not been delivered yet.
func (e *Event) UnsentReminders() []Reminder {
	var out []Reminder
	for _, r := range e.Reminders {
		if !r.Sent {
			out = append(out, r)
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ValidCategory reports whether c is one of Categories.
func ValidCategory(c string) bool {
	return contains(Categories, c)
}
