// Package probe holds the three resource anomaly probes. Each one is an
// independent polling loop with its own rolling state; they share nothing but
// the event channel, and a threshold breach never stops a probe. Only
// context cancellation ends a loop, and a probe finishes its current sleep
// before noticing it.
package probe

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/alert"
)

func emit(events chan<- alert.Event, log *logrus.Logger, kind alert.Kind, sev alert.Severity, msg string) {
	ev := alert.Event{
		Kind:      kind,
		Severity:  sev,
		Message:   msg,
		Timestamp: time.Now(),
	}
	select {
	case events <- ev:
	default:
		log.WithField("kind", kind.String()).Debug("Event buffer full, dropping probe event")
	}
}
