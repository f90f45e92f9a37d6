package notification

import (
	"strings"
	"testing"
	"time"

	"github.com/sharath018/calendar-backend/internal/event"
)

func TestLead(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "starts now"},
		{1, "starts in 1 minute"},
		{15, "starts in 15 minutes"},
		{60, "starts in 1 hour"},
		{120, "starts in 2 hours"},
		{90, "starts in 1h30m"},
		{1440, "starts in 1 day"},
		{2 * 1440, "starts in 2 days"},
	}
	for _, tt := range tests {
		if got := lead(tt.minutes); got != tt.want {
			t.Errorf("lead(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestRender(t *testing.T) {
	e := &event.Event{
		Title:    "Review <draft>",
		Start:    time.Date(2024, time.March, 14, 14, 0, 0, 0, time.UTC),
		Location: "Room 4",
		Category: event.CategoryWork,
		Color:    event.DefaultColor,
	}
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	msg, err := render(e, event.Reminder{Type: event.ReminderEmail, Time: 15}, ny)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != "Reminder: Review <draft> starts in 15 minutes" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Review &lt;draft&gt;") {
		t.Error("title not escaped in HTML body")
	}
	if !strings.Contains(msg.HTML, "10:00 EDT") || !strings.Contains(msg.Text, "10:00 EDT") {
		t.Errorf("start not rendered in owner's timezone: %s", msg.Text)
	}
	if !strings.HasSuffix(msg.Text, "at Room 4") {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	s := &EmailSender{FromName: "Calendar", FromAddr: "noreply@example.com"}
	raw := string(s.buildMessage([]string{"a@example.com", "b@example.com"}, "Reminder: Standup", "<p>hi</p>"))

	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	if !ok {
		t.Fatal("no header/body separator")
	}
	for _, want := range []string{
		`From: "Calendar" <noreply@example.com>`,
		"To: a@example.com, b@example.com",
		"Subject: Reminder: Standup",
		`Content-Type: text/html; charset="UTF-8"`,
	} {
		if !strings.Contains(head, want) {
			t.Errorf("missing header %q in\n%s", want, head)
		}
	}
	if body != "<p>hi</p>" {
		t.Errorf("body = %q", body)
	}
}

func TestBuildMessageKeepsTitleInSubject(t *testing.T) {
	s := &EmailSender{FromName: "Calendar", FromAddr: "noreply@example.com"}
	e := &event.Event{
		Title:    "Standup\r\nBcc: attacker@evil.test\r\n\r\n<p>spoofed</p>",
		Category: event.CategoryMeeting,
		Color:    event.DefaultColor,
		Start:    time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 18, 9, 15, 0, 0, time.UTC),
	}
	msg, err := render(e, event.Reminder{Type: event.ReminderEmail, Time: 15}, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(msg.Subject, "\r\n") {
		t.Fatalf("subject keeps line breaks: %q", msg.Subject)
	}

	raw := string(s.buildMessage([]string{"a@example.com"}, msg.Subject, "<p>hi</p>"))
	head, body, _ := strings.Cut(raw, "\r\n\r\n")
	for _, line := range strings.Split(head, "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "bcc:") {
			t.Fatalf("title added a header line %q", line)
		}
	}
	if !strings.Contains(head, "Subject: Reminder: Standup Bcc: attacker@evil.test <p>spoofed</p> starts in 15 minutes") {
		t.Errorf("subject header missing in\n%s", head)
	}
	if body != "<p>hi</p>" {
		t.Errorf("body = %q", body)
	}
}

func TestBuildMessageEncodesHeaders(t *testing.T) {
	s := &EmailSender{FromName: "Équipe Agenda", FromAddr: "noreply@example.com"}
	raw := string(s.buildMessage([]string{"a@example.com"}, "Reminder: Café planning", "x"))
	head, _, _ := strings.Cut(raw, "\r\n\r\n")

	for _, line := range strings.Split(head, "\r\n") {
		for _, r := range line {
			if r > '~' {
				t.Fatalf("raw non-ASCII in header line %q", line)
			}
		}
	}
	if !strings.Contains(head, "Subject: =?utf-8?q?") {
		t.Errorf("subject not encoded:\n%s", head)
	}
	if !strings.Contains(head, "<noreply@example.com>") {
		t.Errorf("from address missing:\n%s", head)
	}
}

func TestMulticast(t *testing.T) {
	m := multicast([]string{"tok-1", "tok-2"}, "Reminder", "Standup starts now")
	if len(m.Tokens) != 2 || m.Notification.Title != "Reminder" {
		t.Fatalf("message = %+v", m)
	}
	if m.APNS.Payload.Aps.Badge == nil || *m.APNS.Payload.Aps.Badge != 1 {
		t.Error("badge not set")
	}
}
