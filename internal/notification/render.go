package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
)

var emailTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2 style="border-left: 6px solid {{.Color}}; padding-left: 8px;">{{.Title}}</h2>
  <p>{{.Lead}}</p>
  <table cellpadding="4">
    <tr><td><b>When</b></td><td>{{.When}}</td></tr>
    {{if .Location}}<tr><td><b>Where</b></td><td>{{.Location}}</td></tr>{{end}}
    <tr><td><b>Category</b></td><td>{{.Category}}</td></tr>
  </table>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
</body>
</html>`))

type message struct {
	Subject string
	HTML    string
	Text    string
}

type emailView struct {
	Title       string
	Lead        string
	When        string
	Location    string
	Category    string
	Color       string
	Description string
}

// lead describes how far away the event is, e.g. "starts in 15 minutes".
func lead(minutes int) string {
	switch {
	case minutes <= 0:
		return "starts now"
	case minutes == 1:
		return "starts in 1 minute"
	case minutes < 60:
		return fmt.Sprintf("starts in %d minutes", minutes)
	case minutes%(24*60) == 0:
		days := minutes / (24 * 60)
		if days == 1 {
			return "starts in 1 day"
		}
		return fmt.Sprintf("starts in %d days", days)
	case minutes%60 == 0:
		hours := minutes / 60
		if hours == 1 {
			return "starts in 1 hour"
		}
		return fmt.Sprintf("starts in %d hours", hours)
	}
	return fmt.Sprintf("starts in %dh%02dm", minutes/60, minutes%60)
}

// render builds the reminder text in the owner's timezone.
func render(e *event.Event, r event.Reminder, loc *time.Location) (message, error) {
	if loc == nil {
		loc = time.UTC
	}
	when := e.Start.In(loc).Format("Mon, 02 Jan 2006 15:04 MST")
	subject := fmt.Sprintf("Reminder: %s %s", headerValue(e.Title), lead(r.Time))

	var html bytes.Buffer
	err := emailTemplate.Execute(&html, emailView{
		Title:       e.Title,
		Lead:        "Your event " + lead(r.Time) + ".",
		When:        when,
		Location:    e.Location,
		Category:    e.Category,
		Color:       e.Color,
		Description: e.Description,
	})
	if err != nil {
		return message{}, fmt.Errorf("render reminder email: %w", err)
	}

	text := e.Title + " " + lead(r.Time) + " (" + when + ")"
	if e.Location != "" {
		text += " at " + e.Location
	}
	return message{Subject: subject, HTML: html.String(), Text: text}, nil
}
