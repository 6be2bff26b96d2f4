package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/gorkemoa/todobus/pkg/config"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single message. The worker uses the SMTP
// implementation; tests substitute a recorder.
type Sender interface {
	Send(msg Message) error
}

type SMTPSender struct {
	cfg config.SMTPConfig
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(msg Message) error {
	body := []byte("Subject: " + msg.Subject + "\r\n" +
		"From: " + s.cfg.From + "\r\n" +
		"To: " + msg.To + "\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n" +
		msg.HTML + "\r\n")

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(s.cfg.Addr(), auth, s.cfg.From, []string{msg.To}, body); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}

	return nil
}

var _ Sender = (*SMTPSender)(nil)
