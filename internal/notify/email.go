package notify

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// EmailConfig holds the SMTP delivery settings.
type EmailConfig struct {
	SMTPServer  string
	SMTPPort    int
	Username    string
	Password    string
	FromAddress string
	ToAddress   string
	ToName      string
}

// Email delivers alerts as a plain-text message over authenticated SMTP.
type Email struct {
	cfg EmailConfig
	log *logrus.Entry
}

// NewEmail creates the email channel.
func NewEmail(cfg EmailConfig, log *logrus.Entry) *Email {
	return &Email{cfg: cfg, log: log}
}

// Send implements Notifier.
func (e *Email) Send(_ context.Context, alerts []model.Alert) error {
	e.log.WithField("count", len(alerts)).Info("sending alert email")

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(e.cfg.FromAddress, "Sensor Collector"))
	m.SetHeader("To", m.FormatAddress(e.cfg.ToAddress, e.cfg.ToName))
	m.SetHeader("Subject", alertSubject)
	m.SetBody("text/plain", renderBody(alerts))

	d := gomail.NewDialer(e.cfg.SMTPServer, e.cfg.SMTPPort, e.cfg.Username, e.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return errors.Wrap(err, "sending alert email")
	}
	return nil
}
