// Package mailer sends outbound email over SMTP.
package mailer

import (
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/jonnyallum/blmotorcyclesltd/internal/errs"
)

// Sender is the delivery surface the drop-ship service depends on.
type Sender interface {
	Send(to, cc, subject, body string) error
}

// Config holds SMTP connection and sender settings.
type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

// SMTPSender delivers plain-text email through an SMTP relay with
// STARTTLS.
type SMTPSender struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *zap.Logger
}

// NewSMTPSender builds a sender for the given relay.
func NewSMTPSender(cfg Config, log *zap.Logger) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password)
	return &SMTPSender{cfg: cfg, dialer: dialer, log: log}
}

// Send delivers one message. Failures come back as DeliveryError so
// callers can route them through the email retry preset.
func (s *SMTPSender) Send(to, cc, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	if cc != "" {
		m.SetHeader("Cc", cc)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return errs.NewDeliveryError(err)
	}

	s.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
