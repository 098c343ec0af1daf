package probe

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/alert"
)

// CPUConfig for the CPU probe.
type CPUConfig struct {
	// Window is the blocking sampling window per reading.
	Window time.Duration
	// Threshold is the aggregate utilization percentage that raises a warning.
	Threshold float64
	// Cooldown is how long the probe sleeps after a warning so a sustained
	// spike does not become a warning storm.
	Cooldown time.Duration
	Events   chan<- alert.Event

	// Sample overrides the utilization reading; tests use this.
	Sample func(ctx context.Context, window time.Duration) (float64, error)
}

// CPUProbe warns on sustained compute pressure, the signature of bulk
// cryptographic activity.
type CPUProbe struct {
	cfg CPUConfig
	log *logrus.Logger
}

// NewCPU creates a CPU probe with defaults for any zero Config field.
func NewCPU(cfg CPUConfig, log *logrus.Logger) *CPUProbe {
	if cfg.Window == 0 {
		cfg.Window = time.Second
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 10.0
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if cfg.Sample == nil {
		cfg.Sample = sampleCPU
	}
	return &CPUProbe{cfg: cfg, log: log}
}

func sampleCPU(ctx context.Context, window time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

// Start runs the sampling loop until ctx is done.
func (p *CPUProbe) Start(ctx context.Context) {
	p.log.Info("Starting CPU probe")

	for {
		if ctx.Err() != nil {
			p.log.Info("CPU probe stopping")
			return
		}
		usage, err := p.cfg.Sample(ctx, p.cfg.Window)
		if err != nil {
			p.log.WithError(err).Debug("CPU sample failed")
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.Window):
			}
			continue
		}
		if usage > p.cfg.Threshold {
			emit(p.cfg.Events, p.log, alert.KindCPUPressure, alert.SeverityWarning,
				"intensive use of cpu (cryptography activity)")
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.Cooldown):
			}
		}
	}
}
