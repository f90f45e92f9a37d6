package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/xuri/excelize/v2"
	"gorm.io/datatypes"
)

var now = time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

func sampleEvents() []event.Event {
	start := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)
	return []event.Event{
		{
			ID:       1,
			Title:    "Standup",
			Start:    start,
			End:      start.Add(15 * time.Minute),
			Category: event.CategoryMeeting,
			Color:    event.DefaultColor,
			Status:   event.StatusActive,
			Attendees: datatypes.JSONSlice[event.Attendee]{
				{Email: "ann@example.com", Name: "Ann", Response: event.ResponseAccepted},
			},
			Reminders: []event.Reminder{{Type: event.ReminderEmail, Time: 15}},
			Recurring: event.Recurrence{
				IsRecurring: true,
				Pattern:     event.PatternWeekly,
				Interval:    2,
				Exceptions:  datatypes.JSONSlice[time.Time]{time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC)},
			},
		},
		{
			ID:       2,
			Title:    "Holiday",
			Start:    time.Date(2024, time.March, 29, 0, 0, 0, 0, time.UTC),
			End:      time.Date(2024, time.March, 30, 0, 0, 0, 0, time.UTC),
			AllDay:   true,
			Category: event.CategoryHoliday,
			Color:    "#ff0000",
			Status:   event.StatusCancelled,
			Tags:     datatypes.JSONSlice[string]{"family", "travel"},
			Location: "Lisbon",
		},
	}
}

func TestICS(t *testing.T) {
	data, err := ICS(sampleEvents(), now)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"BEGIN:VCALENDAR",
		"METHOD:PUBLISH",
		"UID:event-1@calendar-backend",
		"SUMMARY:Standup",
		"CATEGORIES:MEETING",
		"RRULE:FREQ=WEEKLY;INTERVAL=2",
		"EXDATE:20240325T090000Z",
		"BEGIN:VALARM",
		"TRIGGER:-PT15M",
		"mailto:ann@example.com",
		"PARTSTAT=ACCEPTED",
		"UID:event-2@calendar-backend",
		"STATUS:CANCELLED",
		"LOCATION:Lisbon",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if n := strings.Count(out, "BEGIN:VEVENT"); n != 2 {
		t.Errorf("VEVENT count = %d", n)
	}
	if strings.Count(out, "RRULE:") != 1 {
		t.Error("non-recurring event exported with a rule")
	}
}

func TestExcel(t *testing.T) {
	data, err := Excel(sampleEvents(), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Events")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][1] != "Title" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "Standup" || rows[1][4] != "2024-03-11 09:00" || rows[1][10] != "every 2 x weekly" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[2][9] != "family, travel" {
		t.Errorf("tags cell = %q", rows[2][9])
	}
}

func TestPDF(t *testing.T) {
	data, err := PDF(sampleEvents(), time.UTC, now)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("not a PDF: %q", data[:8])
	}
}

func TestExport(t *testing.T) {
	tests := []struct {
		format      string
		filename    string
		contentType string
	}{
		{FormatICS, "events_20240314_120000.ics", "text/calendar; charset=utf-8"},
		{"XLSX", "events_20240314_120000.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{FormatPDF, "events_20240314_120000.pdf", "application/pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := Export(tt.format, sampleEvents(), nil, now)
			if err != nil {
				t.Fatal(err)
			}
			if f.Filename != tt.filename || f.ContentType != tt.contentType || len(f.Data) == 0 {
				t.Fatalf("file = %s %s (%d bytes)", f.Filename, f.ContentType, len(f.Data))
			}
		})
	}

	if _, err := Export("csv", nil, time.UTC, now); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("Überlange Überschrift", 6); got != "Überl…" {
		t.Errorf("truncate = %q", got)
	}
}
