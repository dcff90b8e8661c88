package notify

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/homelab-sensors/sensor-collector/internal/model"
)

const alertSubject = "Sensor device alerts"

// Notifier delivers a run's alerts over one outbound channel.
type Notifier interface {
	Send(ctx context.Context, alerts []model.Alert) error
}

// Fanout delivers alerts to every configured channel. Channel failures are
// logged and swallowed; notification never affects the ingestion outcome.
type Fanout struct {
	channels []Notifier
	log      *logrus.Entry
}

// NewFanout creates a fanout over the given channels.
func NewFanout(log *logrus.Entry, channels ...Notifier) *Fanout {
	return &Fanout{channels: channels, log: log}
}

// Send implements Notifier.
func (f *Fanout) Send(ctx context.Context, alerts []model.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	f.log.WithField("count", len(alerts)).Info("sending alerts")

	for _, ch := range f.channels {
		if err := ch.Send(ctx, alerts); err != nil {
			f.log.WithError(err).Error("alert delivery failed")
		}
	}
	return nil
}

// renderBody formats alerts as a plain-text report, ordered by subject.
func renderBody(alerts []model.Alert) string {
	sorted := make([]model.Alert, len(alerts))
	copy(sorted, alerts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SubjectName < sorted[j].SubjectName })

	var b strings.Builder
	b.WriteString("Warnings / notifications for devices:\n")
	for _, alert := range sorted {
		b.WriteString(" - ")
		b.WriteString(alert.SubjectName)
		b.WriteString(": ")
		b.WriteString(alert.Text)
		b.WriteString("\n")
	}
	return b.String()
}
