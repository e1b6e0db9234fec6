// Package smtp implements the notification transport over SMTP.
package smtp

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/tomhaynes/dragnet/internal/notify"
)

// Config holds the SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Transport implements notify.Transport over SMTP.
type Transport struct {
	dialer *gomail.Dialer
	from   string
}

// New creates an SMTP transport.
func New(config Config) *Transport {
	return &Transport{
		dialer: gomail.NewDialer(config.Host, config.Port, config.Username, config.Password),
		from:   config.From,
	}
}

// Send delivers the message to its recipients. The context is honored only
// between messages; gomail does not support per-dial cancellation.
func (t *Transport) Send(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.Recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := t.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
