// Package smtp delivers attendee notifications by mail.
package smtp

import (
	"context"
	"net"
	"net/smtp"

	"github.com/cockroachdb/errors"
	"github.com/domodwyer/mailyak/v3"

	"github.com/robertarktes/venue-ticketing/internal/config"
)

type Mailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewMailer(cfg config.SMTPConfig) (*Mailer, error) {
	if cfg.Addr == "" {
		return nil, errors.New("smtp address is required")
	}
	m := &Mailer{addr: cfg.Addr, from: cfg.From}
	if cfg.Username != "" {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			return nil, errors.Wrap(err, "smtp address")
		}
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return m, nil
}

// Send mails a plain text message to one recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mail := mailyak.New(m.addr, m.auth)
	mail.To(to)
	mail.From(m.from)
	mail.Subject(subject)
	mail.Plain().Set(body)
	return errors.Wrapf(mail.Send(), "send mail to %s", to)
}
