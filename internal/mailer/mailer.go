// Package mailer defines the outbound email contract and its two terminal
// implementations: direct SMTP delivery and a logging no-op for environments
// with no relay configured. Delivery failures are logged by callers, never
// retried into the primary request flow.
package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mail is one outbound message. Bodies are HTML.
type Mail struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// Mailer sends one mail. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// SMTPMailer delivers over a plain SMTP relay using AUTH when credentials are
// configured.
type SMTPMailer struct {
	Host   string
	Port   string
	User   string
	Pass   string
	Sender string
}

func NewSMTPMailer(host, port, user, pass, sender string) *SMTPMailer {
	return &SMTPMailer{Host: host, Port: port, User: user, Pass: pass, Sender: sender}
}

// Send composes a MIME message and hands it to the relay. The context is
// accepted for interface symmetry; net/smtp does not support cancellation
// mid-transaction.
func (s *SMTPMailer) Send(_ context.Context, m Mail) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTMLBody)

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	addr := s.Host + ":" + s.Port
	if err := smtp.SendMail(addr, auth, s.Sender, []string{m.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

// LogMailer writes the mail to the process log instead of sending it. Used
// when neither a broker nor an SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, m Mail) error {
	log.Printf("mailer: (not delivered) to=%s subject=%q", m.To, m.Subject)
	return nil
}
