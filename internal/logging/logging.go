// Package logging builds the shared log sink. The sink is constructed once
// at startup and handed to every component; nothing reads a global logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LineFormatter renders one event per line:
//
//	2006-01-02 15:04:05 - WARNING: message
//
// Lines interleave safely at line granularity, which is all the concurrent
// appenders need.
type LineFormatter struct{}

// Format implements logrus.Formatter.
func (LineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s - %s: %s\n",
		entry.Time.Format("2006-01-02 15:04:05"),
		levelLabel(entry.Level),
		entry.Message)
	return buf.Bytes(), nil
}

func levelLabel(level logrus.Level) string {
	switch level {
	case logrus.WarnLevel:
		return "WARNING"
	default:
		return strings.ToUpper(level.String())
	}
}

// NewFileLogger returns a logger appending to path, creating the parent
// directory as needed. The file is the sole persisted artifact of the
// sentinel; rotation is the operator's business.
func NewFileLogger(path string) (*logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return NewLogger(f), nil
}

// NewLogger returns a logger writing formatted lines to out.
func NewLogger(out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(LineFormatter{})
	log.SetLevel(logrus.InfoLevel)
	return log
}
