package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// SMTPSender sends plain-text email through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates an SMTPSender. Port 465 uses implicit TLS; other
// ports upgrade with STARTTLS when the server offers it.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = port == 465
	return &SMTPSender{dialer: d, from: from}
}

// Send delivers a plain-text email. The context is checked before dialing;
// gomail itself does not take one.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
