package utils

import (
	"context"
	"fmt"
	"html"
	"net/smtp"

	"debatehub/config"

	"github.com/sirupsen/logrus"
)

// SMTPMailer delivers account emails through an SMTP relay
type SMTPMailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) deliver(to, subject, body string) error {
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
			"\r\n"+
			"%s\r\n",
		to, m.cfg.SenderName, m.cfg.SenderEmail, subject, body))

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.SenderEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send %q email: %w", subject, err)
	}
	return nil
}

// SendPasswordResetEmail sends the reset link to a user
func (m *SMTPMailer) SendPasswordResetEmail(_ context.Context, to, resetURL, name string) error {
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>Use the link below to choose a new password. It expires in one hour.</p>"+
			"<p><a href=\"%s\">Reset your password</a></p>",
		html.EscapeString(name), html.EscapeString(resetURL))
	return m.deliver(to, "Reset your DebateHub password", body)
}

// SendWelcomeEmail greets a newly registered user
func (m *SMTPMailer) SendWelcomeEmail(_ context.Context, to, name string) error {
	body := fmt.Sprintf("<p>Welcome to DebateHub, %s!</p><p>Start a debate or join an open one.</p>",
		html.EscapeString(name))
	return m.deliver(to, "Welcome to DebateHub", body)
}

// LogMailer only logs; used when no SMTP host is configured.
type LogMailer struct {
	Log logrus.FieldLogger
}

func (m LogMailer) SendPasswordResetEmail(_ context.Context, to, resetURL, _ string) error {
	m.Log.WithFields(logrus.Fields{"to": to, "url": resetURL}).Info("password reset email (not delivered)")
	return nil
}

func (m LogMailer) SendWelcomeEmail(_ context.Context, to, _ string) error {
	m.Log.WithField("to", to).Info("welcome email (not delivered)")
	return nil
}
