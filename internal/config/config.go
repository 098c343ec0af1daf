// Package config provides configuration loading from environment and
// defaults for the sentinel. The command line supplies what to watch; the
// environment tunes how aggressively.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key from the environment, or defaultValue if unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvDuration returns the duration for key, or defaultValue if unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// GetEnvInt returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvFloat returns the float for key, or defaultValue if unset/invalid.
func GetEnvFloat(key string, defaultValue float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// SentinelConfig holds all tunables for the sentinel process.
type SentinelConfig struct {
	LogPath     string
	MetricsAddr string

	EntropyLimit    float64
	EventBufferSize int

	CPUWindow    time.Duration
	CPUThreshold float64
	CPUCooldown  time.Duration

	MemoryInterval   time.Duration
	MemoryLimitBytes uint64

	DiskInterval time.Duration
	DiskFactor   float64

	ShutdownTimeout time.Duration
}

// DefaultSentinelConfig returns sentinel config from environment with defaults.
func DefaultSentinelConfig() SentinelConfig {
	return SentinelConfig{
		LogPath:          GetEnv("IRONDOME_LOG_PATH", "/var/log/irondome/irondome.log"),
		MetricsAddr:      GetEnv("IRONDOME_METRICS_ADDR", "127.0.0.1:9307"),
		EntropyLimit:     GetEnvFloat("IRONDOME_ENTROPY_LIMIT", 0.01),
		EventBufferSize:  GetEnvInt("IRONDOME_EVENT_BUFFER", 1024),
		CPUWindow:        GetEnvDuration("IRONDOME_CPU_WINDOW", time.Second),
		CPUThreshold:     GetEnvFloat("IRONDOME_CPU_THRESHOLD", 10.0),
		CPUCooldown:      GetEnvDuration("IRONDOME_CPU_COOLDOWN", 10*time.Second),
		MemoryInterval:   GetEnvDuration("IRONDOME_MEM_INTERVAL", 10*time.Second),
		MemoryLimitBytes: uint64(GetEnvInt("IRONDOME_MEM_LIMIT_MB", 100)) * 1024 * 1024,
		DiskInterval:     GetEnvDuration("IRONDOME_DISK_INTERVAL", time.Second),
		DiskFactor:       GetEnvFloat("IRONDOME_DISK_FACTOR", 100),
		ShutdownTimeout:  GetEnvDuration("IRONDOME_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}
