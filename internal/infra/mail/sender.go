package mail

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers through an SMTP relay. The relay has no verification
// API, so the sending domains are whatever the operator configured.
type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	Domains  []string

	dialer dialer
}

func NewEmailSender(host string, port int, user, password string, domains []string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		Domains:  domains,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Err(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("send SMTP email: %w", err)
	}
	log.Printf("[SMTP] ✉️ sent to %s via %s", msg.To, s.Host)
	return "", nil
}

func (s *EmailSender) ListVerifiedDomains(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.Domains))
	for _, d := range s.Domains {
		d = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(d)), "@")
		if d != "" {
			out = append(out, d)
		}
	}
	return out, nil
}
