// Package mailer renders and delivers form-submission notifications to
// project owners. Delivery is fire-and-forget from the request path: the
// Notifier queues messages and a background worker sends them.
package mailer

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/marketprobe/marketprobe/internal/config"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(to []string, subject, html, text string) error
}

// SMTPSender sends through a plain-auth SMTP relay.
type SMTPSender struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

// NewSender picks an implementation from config: SMTP when a host is
// configured, otherwise a logger that records what would have been sent.
func NewSender(cfg *config.Config) Sender {
	if cfg.SMTPHost == "" {
		log.Println("mailer: no SMTP host configured, notifications will be logged only")
		return &LogSender{}
	}
	return &SMTPSender{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.MailFrom,
	}
}

func (s *SMTPSender) Send(to []string, subject, html, text string) error {
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	var body strings.Builder
	mw := multipart.NewWriter(&body)

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		s.from, strings.Join(to, ", "), subject, mw.Boundary())

	textPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}})
	if err != nil {
		return fmt.Errorf("create text part: %w", err)
	}
	fmt.Fprint(textPart, text)

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}})
	if err != nil {
		return fmt.Errorf("create html part: %w", err)
	}
	fmt.Fprint(htmlPart, html)

	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	addr := s.host + ":" + s.port
	msg := []byte(headers + body.String())

	if err := smtp.SendMail(addr, auth, s.from, to, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender is the fallback when no SMTP relay is configured.
type LogSender struct{}

func (s *LogSender) Send(to []string, subject, html, text string) error {
	log.Printf("mailer: would send %q to %v", subject, to)
	return nil
}
