package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/internal/config"
	"github.com/jmorillo42/iron-dome/internal/logging"
	"github.com/jmorillo42/iron-dome/internal/version"
	"github.com/jmorillo42/iron-dome/pkg/sentinel"
)

// daemonEnv marks the detached child so it runs the monitor instead of
// forking again.
const daemonEnv = "IRONDOME_DAEMON"

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(),
		"Usage: %s [-i INTERVAL] ROUTE [FILE_EXTENSION ...]\n\n"+
			"This program will monitor a critical zone in perpetuity.\n\n"+
			"  ROUTE            directory or file to watch\n"+
			"  FILE_EXTENSION   extension filters, no leading dot (default: all files)\n",
		os.Args[0])
	flag.PrintDefaults()
}

func main() {
	if os.Geteuid() != 0 {
		fmt.Println("Warning: User is not root")
		os.Exit(1)
	}

	var interval int
	flag.IntVar(&interval, "interval", 1, "idle loop wake cadence in seconds")
	flag.IntVar(&interval, "i", 1, "shorthand for -interval")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	if interval <= 0 {
		fmt.Fprintln(os.Stderr, "interval must be positive")
		os.Exit(2)
	}
	route, extensions := args[0], args[1:]

	if os.Getenv(daemonEnv) != "1" {
		detach()
		return
	}
	run(route, extensions, interval)
}

// detach re-execs the process in a new session and reports the daemon's PID
// on stdout before the foreground parent exits.
func detach() {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot locate executable: %v\n", err)
		os.Exit(1)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), daemonEnv+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot start daemon: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("PID:%d\n", cmd.Process.Pid)
}

func run(route string, extensions []string, interval int) {
	cfg := config.DefaultSentinelConfig()
	log, err := logging.NewFileLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open log sink: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"version": version.Version,
		"route":   route,
	}).Info("Starting Iron Dome sentinel")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
		cancel()
	}()

	s, err := sentinel.New(sentinel.Config{
		Route:      route,
		Extensions: extensions,
		IdleTick:   time.Duration(interval) * time.Second,
		Tunables:   cfg,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create sentinel")
	}
	if err := s.Run(ctx); err != nil {
		log.WithError(err).Fatal("Sentinel error")
	}
	log.Info("Sentinel shutdown complete")
}
