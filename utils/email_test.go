package utils

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"debatehub/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer(t *testing.T) {
	cfg := config.SMTPConfig{
		Host:        "smtp.example.com",
		Port:        587,
		SenderEmail: "noreply@example.com",
		SenderName:  "DebateHub",
	}

	t.Run("reset email", func(t *testing.T) {
		var (
			gotAddr string
			gotTo   []string
			gotMsg  string
		)
		m := NewSMTPMailer(cfg)
		m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, string(msg)
			assert.Equal(t, "noreply@example.com", from)
			return nil
		}

		err := m.SendPasswordResetEmail(context.Background(), "alex@example.com", "https://x.test/reset-password?token=a&b", "<Alex>")
		require.NoError(t, err)
		assert.Equal(t, "smtp.example.com:587", gotAddr)
		assert.Equal(t, []string{"alex@example.com"}, gotTo)
		assert.Contains(t, gotMsg, "Subject: Reset your DebateHub password")
		assert.Contains(t, gotMsg, "token=a&amp;b")
		assert.Contains(t, gotMsg, "&lt;Alex&gt;")
	})

	t.Run("delivery failure", func(t *testing.T) {
		m := NewSMTPMailer(cfg)
		m.send = func(string, smtp.Auth, string, []string, []byte) error {
			return errors.New("connection refused")
		}
		err := m.SendWelcomeEmail(context.Background(), "alex@example.com", "Alex")
		assert.ErrorContains(t, err, "connection refused")
	})
}
