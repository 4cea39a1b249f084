package smtp

import (
	"fmt"
	"net/smtp"

	"github.com/verify-bot/internal/config"
)

// Mailer dispatches verification-code emails.
type Mailer interface {
	SendVerificationCode(to, code string) error
}

type mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.SMTPFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
	}
}

const bodyTemplate = `<div style="font-family: Arial, sans-serif; text-align: center; max-width: 600px; margin: auto; padding: 20px; border: 1px solid #ddd; border-radius: 10px;">
  <h2>Account Verification</h2>
  <p>Hello, <b>%s</b></p>
  <p>To continue setting up your account, please verify it with the code below:</p>
  <p style="font-size:20px; font-weight:bold;">%s</p>
  <p>This code will expire in 10 minutes. Please do not share it with anyone.</p>
  <p>If you did not make this request, please ignore this email.</p>
</div>`

func (m *mailer) SendVerificationCode(to, code string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		m.from, to, "Email Verification Code", fmt.Sprintf(bodyTemplate, to, code),
	)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
