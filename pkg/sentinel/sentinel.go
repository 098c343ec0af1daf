// Package sentinel wires the baseline scan, the filesystem watch, the
// resource probes and the shared alert sink into one long-running monitor.
package sentinel

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/internal/config"
	"github.com/jmorillo42/iron-dome/internal/server"
	"github.com/jmorillo42/iron-dome/pkg/alert"
	"github.com/jmorillo42/iron-dome/pkg/baseline"
	"github.com/jmorillo42/iron-dome/pkg/filewatch"
	"github.com/jmorillo42/iron-dome/pkg/probe"
	"github.com/jmorillo42/iron-dome/pkg/sniff"
)

// Config for a Sentinel.
type Config struct {
	// Route is the file or directory to watch.
	Route string
	// Extensions filter watched files by extension, no leading dot. Empty
	// means every file.
	Extensions []string
	// IdleTick is the foreground loop's wake cadence (the --interval flag).
	IdleTick time.Duration

	Tunables config.SentinelConfig
}

// Sentinel owns every monitoring component and their lifecycles.
type Sentinel struct {
	cfg Config
	log *logrus.Logger

	root      string
	patterns  []string
	recursive bool

	store      *baseline.Store
	collector  *alert.Collector
	controller *filewatch.Controller
	prober     baseline.Prober

	cpu  *probe.CPUProbe
	mem  *probe.MemoryProbe
	disk *probe.DiskProbe
	srv  *server.Server

	wg sync.WaitGroup
}

// ResolveTarget normalizes route and derives the watch root, glob pattern
// set and recursive flag. A single-file route watches its parent directory
// with one exact-name pattern; extension filters become *.ext globs, or *
// when none are given.
func ResolveTarget(route string, extensions []string) (root string, patterns []string, recursive bool, err error) {
	if strings.HasPrefix(route, "~") {
		home, herr := os.UserHomeDir()
		if herr == nil {
			route = filepath.Join(home, strings.TrimPrefix(route, "~"))
		}
	}
	root, err = filepath.Abs(route)
	if err != nil {
		return "", nil, false, fmt.Errorf("resolve route: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", nil, false, fmt.Errorf("stat route: %w", err)
	}

	for _, ext := range extensions {
		patterns = append(patterns, "*."+strings.TrimPrefix(ext, "."))
	}
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	if info.IsDir() {
		return root, patterns, true, nil
	}
	root, name := filepath.Split(root)
	return filepath.Clean(root), []string{name}, false, nil
}

// New creates a Sentinel. The initial baseline scan happens in Run.
func New(cfg Config, log *logrus.Logger) (*Sentinel, error) {
	root, patterns, recursive, err := ResolveTarget(cfg.Route, cfg.Extensions)
	if err != nil {
		return nil, err
	}
	if cfg.IdleTick <= 0 {
		cfg.IdleTick = 5 * time.Second
	}

	s := &Sentinel{
		cfg:       cfg,
		log:       log,
		root:      root,
		patterns:  patterns,
		recursive: recursive,
		store:     baseline.NewStore(),
		prober:    baseline.FileProber{Sniffer: sniff.Magic{}},
	}

	t := cfg.Tunables
	s.collector = alert.New(alert.Config{BufferSize: t.EventBufferSize}, log)
	events := s.collector.EventChannel()

	s.controller = filewatch.NewController(s.store, s.prober, events, log, t.EntropyLimit)
	s.cpu = probe.NewCPU(probe.CPUConfig{
		Window:    t.CPUWindow,
		Threshold: t.CPUThreshold,
		Cooldown:  t.CPUCooldown,
		Events:    events,
	}, log)
	s.mem = probe.NewMemory(probe.MemoryConfig{
		Interval:   t.MemoryInterval,
		LimitBytes: t.MemoryLimitBytes,
		Events:     events,
	}, log)
	s.disk = probe.NewDisk(probe.DiskConfig{
		Interval: t.DiskInterval,
		Factor:   t.DiskFactor,
		Events:   events,
	}, log)

	if t.MetricsAddr != "" {
		s.srv = server.New(t.MetricsAddr, log)
	}
	return s, nil
}

// Run seeds the baseline store, starts every loop and blocks until ctx is
// cancelled, then drains and waits for the loops to stop.
func (s *Sentinel) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"root":      s.root,
		"patterns":  strings.Join(s.patterns, ","),
		"recursive": s.recursive,
	}).Info("Seeding baselines")

	// The scan completes before the watch starts: no live event can race
	// the seed.
	s.store.ScanInitial(s.root, s.patterns, s.recursive, s.prober)
	s.log.WithField("tracked", s.store.Len()).Info("Baseline scan complete")

	watcher, err := filewatch.NewWatcher(filewatch.Config{
		Root:      s.root,
		Patterns:  s.patterns,
		Recursive: s.recursive,
	}, s.log)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	s.start(func() { s.collector.Start(ctx) })
	s.start(func() { s.cpu.Start(ctx) })
	s.start(func() { s.mem.Start(ctx) })
	s.start(func() { s.disk.Start(ctx) })
	s.start(func() { watcher.Start(ctx, s.controller) })
	if s.srv != nil {
		s.start(func() {
			if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.log.WithError(err).Error("Metrics server error")
			}
		})
	}
	s.log.Info("All monitors started")

	ticker := time.NewTicker(s.cfg.IdleTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
		}
	}
}

func (s *Sentinel) start(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Sentinel) shutdown() error {
	s.log.Info("Shutting down monitors")

	timeout := s.cfg.Tunables.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.srv != nil {
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Warn("Metrics server shutdown error")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("All monitors stopped")
	case <-shutdownCtx.Done():
		s.log.Warn("Shutdown timeout, some monitors may not have stopped cleanly")
	}
	return nil
}

// Tracked returns the number of currently tracked paths. Meaningful only
// before Run starts or after it returns; the store belongs to the watch
// goroutine in between.
func (s *Sentinel) Tracked() int {
	return s.store.Len()
}
