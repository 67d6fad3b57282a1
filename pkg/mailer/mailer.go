// Package mailer delivers request copies to the support inbox over SMTP.
package mailer

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

// Config holds SMTP connection settings and the fixed recipient list.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	Recipients []string
}

// Message is one outgoing mail: an HTML body plus optional local file attachments.
// Attachment file names survive non-ASCII characters (RFC 2047 encoding is
// handled by the MIME writer).
type Message struct {
	Subject     string
	HTMLBody    string
	Attachments []string
}

type sendFunc func(m ...*gomail.Message) error

// Mailer sends messages through a single configured SMTP account.
type Mailer struct {
	cfg  Config
	send sendFunc
}

func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mailer: host is empty")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("mailer: port is zero")
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("mailer: recipient list is empty")
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &Mailer{
		cfg:  cfg,
		send: dialer.DialAndSend,
	}, nil
}

// Send delivers one message to every configured recipient.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.cfg.User)
	gm.SetHeader("To", m.cfg.Recipients...)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTMLBody)
	for _, path := range msg.Attachments {
		gm.Attach(path)
	}

	if err := m.send(gm); err != nil {
		return fmt.Errorf("failed to send mail to %v: %w", m.cfg.Recipients, err)
	}
	log.Printf("[mailer] Mail sent to %d recipients (attachments: %d)", len(m.cfg.Recipients), len(msg.Attachments))
	return nil
}
