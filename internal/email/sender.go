package email

import "context"

// EmailSender delivers transactional email. It is the only notification
// channel the service uses.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}
