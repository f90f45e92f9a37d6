package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/sharath018/calendar-backend/config"
)

// EmailSender implements Channel over SMTP with STARTTLS
type EmailSender struct {
	Host     string
	Port     string
	Username string
	Password string
	FromName string
	FromAddr string
	Timeout  time.Duration
}

func NewEmailSender(cfg *config.Config) *EmailSender {
	return &EmailSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
		FromAddr: cfg.SMTPFromEmail,
		Timeout:  30 * time.Second,
	}
}

func (e *EmailSender) configured() bool {
	return e.Host != "" && e.FromAddr != ""
}

// Send delivers an HTML body to every recipient in one transaction.
func (e *EmailSender) Send(ctx context.Context, to []string, subject, body string) error {
	if !e.configured() || len(to) == 0 {
		return ErrChannelUnavailable
	}
	msg := e.buildMessage(to, subject, body)
	if err := e.deliver(ctx, to, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (e *EmailSender) buildMessage(to []string, subject, body string) []byte {
	from := (&mail.Address{Name: headerValue(e.FromName), Address: headerValue(e.FromAddr)}).String()
	headers := [][2]string{
		{"From", from},
		{"To", headerValue(strings.Join(to, ", "))},
		{"Subject", mime.QEncoding.Encode("utf-8", headerValue(subject))},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/html; charset="UTF-8"`},
	}
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// headerValue folds CR, LF and other control characters into single spaces
// so user text cannot start a new header line.
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool {
		return r < ' ' || r == 0x7f || r == ' '
	}), " ")
}

func (e *EmailSender) deliver(ctx context.Context, to []string, message []byte) error {
	addr := net.JoinHostPort(e.Host, e.Port)
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial SMTP server: %w", err)
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, e.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open SMTP session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err = client.StartTLS(&tls.Config{ServerName: e.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}
	if e.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err = client.Auth(smtp.PlainAuth("", e.Username, e.Password, e.Host)); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
		}
	}
	if err = client.Mail(e.FromAddr); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", recipient, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = writer.Write(message); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return client.Quit()
}
