package infra

import (
	"fmt"
	"net/smtp"

	"restorant/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends operator alerts (dead-lettered settlements) over SMTP.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	to       string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       cfg.AlertEmail,
	}
}

// Enabled reports whether both an SMTP host and an alert recipient are set.
func (m *Mailer) Enabled() bool {
	return m.host != "" && m.to != ""
}

// SendAlerta mails a plain-text alert to ALERT_EMAIL, attaching the ticket
// PDF when pdfPath is non-empty.
func (m *Mailer) SendAlerta(subject, body, pdfPath string) error {
	if !m.Enabled() {
		return fmt.Errorf("mailer: SMTP_HOST/ALERT_EMAIL no configurados")
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{m.to}
	e.Subject = subject
	e.Text = []byte(body)

	if pdfPath != "" {
		if _, err := e.AttachFile(pdfPath); err != nil {
			return fmt.Errorf("mailer: attach PDF: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
