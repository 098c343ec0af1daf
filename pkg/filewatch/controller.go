// Package filewatch turns raw filesystem notifications into baseline updates
// and anomaly events. The Controller holds the full transition table for the
// event vocabulary; the Watcher adapts fsnotify into that vocabulary.
package filewatch

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/alert"
	"github.com/jmorillo42/iron-dome/pkg/baseline"
)

// DefaultEntropyLimit is the minimum entropy increase, on the [0,1] scale,
// that raises a warning.
const DefaultEntropyLimit = 0.01

// Controller applies filesystem events to the baseline store and emits
// anomaly events. It must be driven from a single goroutine: it is the sole
// owner of the store.
type Controller struct {
	store        *baseline.Store
	prober       baseline.Prober
	events       chan<- alert.Event
	log          *logrus.Logger
	entropyLimit float64
}

// NewController creates a Controller over store. entropyLimit <= 0 selects
// DefaultEntropyLimit.
func NewController(store *baseline.Store, prober baseline.Prober, events chan<- alert.Event, log *logrus.Logger, entropyLimit float64) *Controller {
	if entropyLimit <= 0 {
		entropyLimit = DefaultEntropyLimit
	}
	return &Controller{
		store:        store,
		prober:       prober,
		events:       events,
		log:          log,
		entropyLimit: entropyLimit,
	}
}

// Handle applies one event. All five operations dispatch through this single
// switch so the whole transition table reads as one unit.
func (c *Controller) Handle(ev Event) {
	switch ev.Op {
	case OpCreated:
		c.emit(alert.KindFileCreated, alert.SeverityInfo, ev.Path, fmt.Sprintf("%q created", ev.Path))
		if b, ok := c.prober.Probe(ev.Path); ok {
			c.store.Set(ev.Path, b)
		}

	case OpClosed:
		// Advisory only: a file may still be written after close on some
		// filesystems, so close carries no state change.
		c.emit(alert.KindFileClosed, alert.SeverityInfo, ev.Path, fmt.Sprintf("%q closed", ev.Path))

	case OpDeleted:
		c.emit(alert.KindFileDeleted, alert.SeverityInfo, ev.Path, fmt.Sprintf("%q deleted", ev.Path))
		if _, ok := c.store.Get(ev.Path); ok {
			c.store.Remove(ev.Path)
		}

	case OpModified:
		c.emit(alert.KindFileModified, alert.SeverityInfo, ev.Path, fmt.Sprintf("%q modified", ev.Path))
		c.refresh(ev.Path)

	case OpMoved:
		c.emit(alert.KindFileMoved, alert.SeverityInfo, ev.Path, fmt.Sprintf("%q moved to %q", ev.OldPath, ev.Path))
		old, ok := c.store.Get(ev.OldPath)
		if !ok {
			// Moved in from outside the tracked set: same as a create.
			if b, probed := c.prober.Probe(ev.Path); probed {
				c.store.Set(ev.Path, b)
			}
			return
		}
		c.store.Set(ev.Path, old)
		c.store.Remove(ev.OldPath)
		c.refresh(ev.Path)
	}
}

// refresh re-probes a tracked path, compares against its recorded baseline
// and replaces it. An untracked path is ignored; a path that can no longer
// be probed is treated as deleted.
func (c *Controller) refresh(path string) {
	old, ok := c.store.Get(path)
	if !ok {
		return
	}
	next, ok := c.prober.Probe(path)
	if !ok {
		c.store.Remove(path)
		return
	}

	if delta := next.Entropy - old.Entropy; delta > c.entropyLimit {
		c.emit(alert.KindEntropyJump, alert.SeverityWarning, path,
			fmt.Sprintf("%q has increased its entropy by %.2f%%", path, delta*100))
	}
	if next.Type != old.Type {
		c.emit(alert.KindTypeChange, alert.SeverityWarning, path,
			fmt.Sprintf("%q has changed its type: %s -> %s", path, old.Type, next.Type))
	}

	// The store always reflects the latest observed state, warning or not.
	c.store.Set(path, next)
}

func (c *Controller) emit(kind alert.Kind, sev alert.Severity, path, msg string) {
	ev := alert.Event{
		Kind:      kind,
		Severity:  sev,
		Message:   msg,
		Path:      path,
		Timestamp: time.Now(),
	}
	select {
	case c.events <- ev:
	default:
		c.log.WithField("path", path).Debug("Event buffer full, dropping file event")
	}
}
