// Package export renders event lists as iCalendar, Excel or PDF files.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/jung-kurt/gofpdf"
	"github.com/sharath018/calendar-backend/internal/event"
	"github.com/sharath018/calendar-backend/internal/recurrence"
	"github.com/xuri/excelize/v2"
)

const (
	FormatICS   = "ics"
	FormatExcel = "xlsx"
	FormatPDF   = "pdf"
)

var Formats = []string{FormatICS, FormatExcel, FormatPDF}

// ProductID identifies this service in exported calendars.
const ProductID = "-//calendar-backend//events//EN"

// File is a rendered export ready to be served.
type File struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Export renders events in format. Times are written in loc.
func Export(format string, events []event.Event, loc *time.Location, now time.Time) (*File, error) {
	if loc == nil {
		loc = time.UTC
	}
	stamp := now.Format("20060102_150405")

	switch strings.ToLower(format) {
	case FormatICS:
		data, err := ICS(events, now)
		if err != nil {
			return nil, err
		}
		return &File{data, fmt.Sprintf("events_%s.ics", stamp), "text/calendar; charset=utf-8"}, nil
	case FormatExcel:
		data, err := Excel(events, loc)
		if err != nil {
			return nil, err
		}
		return &File{data, fmt.Sprintf("events_%s.xlsx", stamp), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}, nil
	case FormatPDF:
		data, err := PDF(events, loc, now)
		if err != nil {
			return nil, err
		}
		return &File{data, fmt.Sprintf("events_%s.pdf", stamp), "application/pdf"}, nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

//// ============================
/// iCALENDAR
//// ============================

func uid(e *event.Event) string {
	return "event-" + strconv.FormatUint(uint64(e.ID), 10) + "@calendar-backend"
}

func participation(response string) ical.ParticipationStatus {
	switch response {
	case event.ResponseAccepted:
		return ical.ParticipationStatusAccepted
	case event.ResponseDeclined:
		return ical.ParticipationStatusDeclined
	}
	return ical.ParticipationStatusNeedsAction
}

// ICS builds a VCALENDAR with one VEVENT per event. Recurring templates
// carry their RRULE and EXDATEs.
func ICS(events []event.Event, now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for i := range events {
		e := &events[i]
		ve := cal.AddEvent(uid(e))
		ve.SetDtStampTime(now.UTC())
		ve.SetCreatedTime(e.CreatedAt.UTC())
		ve.SetModifiedAt(e.UpdatedAt.UTC())
		if e.AllDay {
			ve.SetAllDayStartAt(e.Start)
			ve.SetAllDayEndAt(e.End)
		} else {
			ve.SetStartAt(e.Start.UTC())
			ve.SetEndAt(e.End.UTC())
		}
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		ve.AddProperty(ical.ComponentPropertyCategories, strings.ToUpper(e.Category))
		ve.AddProperty(ical.ComponentProperty("COLOR"), e.Color)
		if e.IsPublic {
			ve.SetClass(ical.ClassificationPublic)
		} else {
			ve.SetClass(ical.ClassificationPrivate)
		}
		switch e.Status {
		case event.StatusCancelled:
			ve.SetStatus(ical.ObjectStatusCancelled)
		default:
			ve.SetStatus(ical.ObjectStatusConfirmed)
		}

		for _, a := range e.Attendees {
			params := []ical.PropertyParameter{participation(a.Response)}
			if a.Name != "" {
				params = append(params, ical.WithCN(a.Name))
			}
			ve.AddAttendee("mailto:"+a.Email, params...)
		}

		for _, r := range e.Reminders {
			alarm := ve.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", r.Time))
			alarm.SetProperty(ical.ComponentPropertyDescription, e.Title)
		}

		if e.Recurring.IsRecurring {
			rule, err := recurrence.RuleString(e.Recurring.Pattern, e.Recurring.Interval)
			if err != nil {
				return nil, fmt.Errorf("event %d: %w", e.ID, err)
			}
			ve.AddRrule(rule)
			for _, ex := range e.Recurring.Exceptions {
				y, m, d := ex.In(e.Start.Location()).Date()
				at := time.Date(y, m, d, e.Start.Hour(), e.Start.Minute(), e.Start.Second(), 0, e.Start.Location())
				ve.AddExdate(at.UTC().Format("20060102T150405Z"))
			}
		}
	}

	return []byte(cal.Serialize()), nil
}

//// ============================
/// EXCEL
//// ============================

var columns = []string{"ID", "Title", "Category", "Status", "Start", "End", "All Day", "Location", "Attendees", "Tags", "Recurring", "Description"}

func attendeeList(e *event.Event) string {
	parts := make([]string, 0, len(e.Attendees))
	for _, a := range e.Attendees {
		parts = append(parts, a.Email+" ("+a.Response+")")
	}
	return strings.Join(parts, ", ")
}

func recurringLabel(e *event.Event) string {
	if !e.Recurring.IsRecurring {
		return ""
	}
	if e.Recurring.Interval > 1 {
		return fmt.Sprintf("every %d x %s", e.Recurring.Interval, e.Recurring.Pattern)
	}
	return e.Recurring.Pattern
}

func Excel(events []event.Event, loc *time.Location) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Events"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	for i, header := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		f.SetCellStyle(sheetName, "A1", last, style)
	}

	for i := range events {
		e := &events[i]
		row := []interface{}{
			e.ID,
			e.Title,
			e.Category,
			e.Status,
			e.Start.In(loc).Format("2006-01-02 15:04"),
			e.End.In(loc).Format("2006-01-02 15:04"),
			e.AllDay,
			e.Location,
			attendeeList(e),
			strings.Join(e.Tags, ", "),
			recurringLabel(e),
			e.Description,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

//// ============================
/// PDF
//// ============================

func PDF(events []event.Event, loc *time.Location, now time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Events")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 8, fmt.Sprintf("Generated %s, %d events", now.In(loc).Format("2006-01-02 15:04 MST"), len(events)))
	pdf.Ln(12)

	widths := []float64{60, 25, 22, 35, 35, 50, 50}
	headers := []string{"Title", "Category", "Status", "Start", "End", "Location", "Recurring"}
	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for i := range events {
		e := &events[i]
		cells := []string{
			truncate(e.Title, 40),
			e.Category,
			e.Status,
			e.Start.In(loc).Format("2006-01-02 15:04"),
			e.End.In(loc).Format("2006-01-02 15:04"),
			truncate(e.Location, 32),
			recurringLabel(e),
		}
		for j, text := range cells {
			pdf.CellFormat(widths[j], 6, tr(text), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
