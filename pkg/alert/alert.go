// Package alert defines the anomaly event taxonomy and the shared collector
// that funnels every event, from the file watch and the resource probes alike,
// into the single append-only log sink.
package alert

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Severity of an anomaly event, mapped onto log levels by the Collector.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

// String returns the log-facing label for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Kind identifies what an event reports.
type Kind int

const (
	KindUnknown Kind = iota
	KindFileCreated
	KindFileClosed
	KindFileDeleted
	KindFileModified
	KindFileMoved
	KindEntropyJump
	KindTypeChange
	KindCPUPressure
	KindMemoryLimit
	KindDiskPressure
)

// String returns the metric-facing label for the kind.
func (k Kind) String() string {
	switch k {
	case KindFileCreated:
		return "file_created"
	case KindFileClosed:
		return "file_closed"
	case KindFileDeleted:
		return "file_deleted"
	case KindFileModified:
		return "file_modified"
	case KindFileMoved:
		return "file_moved"
	case KindEntropyJump:
		return "entropy_jump"
	case KindTypeChange:
		return "type_change"
	case KindCPUPressure:
		return "cpu_pressure"
	case KindMemoryLimit:
		return "memory_limit"
	case KindDiskPressure:
		return "disk_pressure"
	default:
		return "unknown"
	}
}

// Event is one anomaly or informational observation.
type Event struct {
	Kind      Kind
	Severity  Severity
	Message   string
	Path      string
	Timestamp time.Time
}

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irondome_events_total",
		Help: "Events observed, by kind.",
	}, []string{"kind"})
	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irondome_anomalies_total",
		Help: "Anomaly signals emitted, by severity.",
	}, []string{"severity"})
)

// Config for the event collector.
type Config struct {
	BufferSize int
}

// Collector consumes events from a buffered channel and writes each one to
// the shared log sink. It is the only component several goroutines touch;
// producers never block on it.
type Collector struct {
	cfg Config
	log *logrus.Logger

	eventChan chan Event
	dropped   int64
}

// New creates a Collector. The consumer loop starts with Start.
func New(cfg Config, log *logrus.Logger) *Collector {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 1024
	}
	return &Collector{
		cfg:       cfg,
		log:       log,
		eventChan: make(chan Event, cfg.BufferSize),
	}
}

// EventChannel returns the channel producers send events on.
func (c *Collector) EventChannel() chan<- Event {
	return c.eventChan
}

// Publish sends an event without blocking; full buffer drops the event.
func (c *Collector) Publish(ev Event) {
	select {
	case c.eventChan <- ev:
	default:
		c.dropped++
		c.log.WithField("kind", ev.Kind.String()).Debug("Event buffer full, dropping event")
	}
}

// Start consumes events until ctx is done, then drains whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-c.eventChan:
					c.record(ev)
				default:
					return
				}
			}
		case ev := <-c.eventChan:
			c.record(ev)
		}
	}
}

func (c *Collector) record(ev Event) {
	eventsTotal.WithLabelValues(ev.Kind.String()).Inc()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	entry := c.log.WithTime(ev.Timestamp)
	switch ev.Severity {
	case SeverityError:
		anomaliesTotal.WithLabelValues(ev.Severity.String()).Inc()
		entry.Error(ev.Message)
	case SeverityWarning:
		anomaliesTotal.WithLabelValues(ev.Severity.String()).Inc()
		entry.Warn(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}
