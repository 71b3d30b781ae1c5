package services

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/resetlink/backend/internal/config"
	"github.com/resetlink/backend/internal/logger"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrSMTPNotConfigured is returned when SMTP_HOST or FROM_EMAIL is absent.
var ErrSMTPNotConfigured = errors.New("smtp is not configured")

const resetEmailSubject = "Password reset request"

const resetEmailBody = `Hello,

A password reset was requested for this account. If you requested it, open the link below to reset your password:

{{.ResetURL}}

If you didn't request this, ignore this email.
This link expires in {{.ExpiryMinutes}} minutes.
`

var resetEmailTmpl = template.Must(template.New("reset_email").Parse(resetEmailBody))

type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendResetLink composes the reset email for the given recipient and token
// and transmits it synchronously. There is no retry; a transport or auth
// failure is reported once to the caller.
func (s *EmailService) SendResetLink(to, token string) error {
	if s.cfg.SMTPHost == "" || s.cfg.FromEmail == "" {
		return ErrSMTPNotConfigured
	}

	var body bytes.Buffer
	err := resetEmailTmpl.Execute(&body, map[string]interface{}{
		"ResetURL":      s.cfg.ResetURL(token),
		"ExpiryMinutes": int(s.cfg.ResetExpiry / time.Minute),
	})
	if err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.FromEmail); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(resetEmailSubject)
	msg.SetBodyString(mail.TypeTextPlain, body.String())

	client, err := s.newClient()
	if err != nil {
		return err
	}

	if err := client.DialAndSend(msg); err != nil {
		logger.Log.Error("reset email delivery failed",
			zap.String("to", to), zap.Error(err))
		return fmt.Errorf("send reset email: %w", err)
	}

	logger.Log.Info("reset email sent", zap.String("to", to))
	return nil
}

func (s *EmailService) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithTimeout(30 * time.Second),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if s.cfg.SMTPUser != "" && s.cfg.SMTPPassword != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.SMTPUser),
			mail.WithPassword(s.cfg.SMTPPassword),
		)
	}

	// Port 465 speaks TLS from the first byte instead of STARTTLS.
	if s.cfg.SMTPPort == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	}

	client, err := mail.NewClient(s.cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return client, nil
}
