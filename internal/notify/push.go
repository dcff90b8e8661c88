package notify

import (
	"context"

	"github.com/gregdel/pushover"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

// Push delivers alerts over the Pushover service.
type Push struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	log       *logrus.Entry
}

// NewPush creates the push channel for the given application token and user
// key.
func NewPush(token, userKey string, log *logrus.Entry) *Push {
	return &Push{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(userKey),
		log:       log,
	}
}

// Send implements Notifier.
func (p *Push) Send(_ context.Context, alerts []model.Alert) error {
	p.log.WithField("count", len(alerts)).Info("sending push notification")

	message := pushover.NewMessageWithTitle(renderBody(alerts), alertSubject)
	if _, err := p.app.SendMessage(message, p.recipient); err != nil {
		return errors.Wrap(err, "sending push notification")
	}
	return nil
}
