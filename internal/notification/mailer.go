package notification

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/zenithmed/registry-api/pkg/logger"
)

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// Mailer delivers the operational summary to the clinic admin address. With
// no host configured it is disabled and every send is a logged no-op.
type Mailer struct {
	cfg    SMTPConfig
	logger *logger.Logger
}

func NewMailer(cfg SMTPConfig, log *logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: log}
}

func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && m.cfg.To != ""
}

func (m *Mailer) SendSummary(summary string) error {
	if !m.Enabled() {
		m.logger.Debug("summary mailer disabled, skipping send")
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To)
	msg.SetHeader("Subject", "Clinic operational summary")
	msg.SetBody("text/plain", summary)

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.User, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send summary email: %w", err)
	}

	m.logger.Info("summary email sent", "to", m.cfg.To)
	return nil
}
