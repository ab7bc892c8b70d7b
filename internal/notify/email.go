package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EmailConfig holds SMTP connection details.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// EmailChannel notifies assignees over SMTP.
type EmailChannel struct {
	cfg EmailConfig
}

// NewEmailChannel creates an EmailChannel from config.
func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{cfg: cfg}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, n *Notification) error {
	ctx, span := otel.Tracer("notifier").Start(ctx, "notify.email")
	defer span.End()
	span.SetAttributes(
		attribute.String("email.to", n.Recipient),
		attribute.String("task.id", n.TaskID),
	)

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	subject := fmt.Sprintf("New task due %s: %s", n.DueDate.Format("02 Jan 2006"), n.Title)
	body := fmt.Sprintf("A recurring task was created for you.\r\n\r\nTask: %s\r\nDue: %s\r\n",
		n.Title, n.DueDate.Format("Monday, 02 Jan 2006"))
	msg := buildMIME(c.cfg.From, n.Recipient, subject, body)

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	// smtp.SendMail blocks without ctx support; run it aside so cancellation
	// is honored.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, c.cfg.From, []string{n.Recipient}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "smtp send failed")
			return fmt.Errorf("send email to %s: %w", n.Recipient, err)
		}
		return nil
	case <-ctx.Done():
		span.SetStatus(codes.Error, "cancelled")
		return fmt.Errorf("email to %s: %w", n.Recipient, ctx.Err())
	}
}

func buildMIME(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
