package probe

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/alert"
)

// MemoryConfig for the self-monitoring memory probe.
type MemoryConfig struct {
	Interval time.Duration
	// LimitBytes is the resident-set ceiling for this process.
	LimitBytes uint64
	Events     chan<- alert.Event

	// Sample overrides the RSS reading; tests use this.
	Sample func() (uint64, error)
}

// MemoryProbe watches the sentinel's own resident memory. It guards against
// the monitor itself leaking, so a breach is an error, not a warning.
type MemoryProbe struct {
	cfg MemoryConfig
	log *logrus.Logger
}

// NewMemory creates a memory probe with defaults for any zero Config field.
func NewMemory(cfg MemoryConfig, log *logrus.Logger) *MemoryProbe {
	if cfg.Interval == 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.LimitBytes == 0 {
		cfg.LimitBytes = 100 * 1024 * 1024
	}
	if cfg.Sample == nil {
		cfg.Sample = sampleRSS
	}
	return &MemoryProbe{cfg: cfg, log: log}
}

func sampleRSS() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// Start runs the sampling loop until ctx is done.
func (p *MemoryProbe) Start(ctx context.Context) {
	p.log.Info("Starting memory probe")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		rss, err := p.cfg.Sample()
		if err != nil {
			p.log.WithError(err).Debug("RSS sample failed")
		} else if rss > p.cfg.LimitBytes {
			emit(p.cfg.Events, p.log, alert.KindMemoryLimit, alert.SeverityError,
				fmt.Sprintf("memory exceed the %dMB limit", p.cfg.LimitBytes/(1024*1024)))
		}
		select {
		case <-ctx.Done():
			p.log.Info("Memory probe stopping")
			return
		case <-ticker.C:
		}
	}
}
