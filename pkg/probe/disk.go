package probe

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/procfs/blockdevice"
	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/alert"
)

// DiskConfig for the disk read-pressure probe.
type DiskConfig struct {
	Interval time.Duration
	// Factor scales the interval (in seconds) into the maximum tolerated
	// growth of the read-time counter (milliseconds) per poll.
	Factor float64
	Events chan<- alert.Event

	// ReadTicks overrides the counter reading; tests use this. The counter
	// must be monotonically increasing milliseconds spent on reads.
	ReadTicks func() (uint64, error)
}

// DiskProbe watches the block-device read-time counter. A delta far above
// the poll interval means the device spent most of the window servicing
// reads, the I/O signature of a bulk scan.
type DiskProbe struct {
	cfg DiskConfig
	log *logrus.Logger

	// last holds the previous counter reading between polls.
	last   uint64
	primed bool
}

// NewDisk creates a disk probe with defaults for any zero Config field.
func NewDisk(cfg DiskConfig, log *logrus.Logger) *DiskProbe {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Factor == 0 {
		cfg.Factor = 100
	}
	if cfg.ReadTicks == nil {
		cfg.ReadTicks = readTicks
	}
	return &DiskProbe{cfg: cfg, log: log}
}

// readTicks returns the milliseconds spent reading on the first block device.
func readTicks() (uint64, error) {
	fs, err := blockdevice.NewFS("/proc", "/sys")
	if err != nil {
		return 0, err
	}
	stats, err := fs.ProcDiskstats()
	if err != nil {
		return 0, err
	}
	if len(stats) == 0 {
		return 0, errors.New("no block devices in diskstats")
	}
	return stats[0].ReadTicks, nil
}

// Exceeds reports whether a counter delta over one poll breaches the policy.
func (p *DiskProbe) Exceeds(delta uint64) bool {
	return float64(delta) > p.cfg.Interval.Seconds()*p.cfg.Factor
}

// Poll takes one counter reading and warns on a breach. The first successful
// reading only primes the rolling state.
func (p *DiskProbe) Poll() {
	ticks, err := p.cfg.ReadTicks()
	if err != nil {
		p.log.WithError(err).Debug("Disk sample failed")
		return
	}
	if p.primed && ticks >= p.last && p.Exceeds(ticks-p.last) {
		emit(p.cfg.Events, p.log, alert.KindDiskPressure, alert.SeverityWarning,
			"intensive disk read")
	}
	p.last = ticks
	p.primed = true
}

// Start runs the sampling loop until ctx is done.
func (p *DiskProbe) Start(ctx context.Context) {
	p.log.Info("Starting disk probe")

	p.Poll()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Disk probe stopping")
			return
		case <-ticker.C:
			p.Poll()
		}
	}
}
