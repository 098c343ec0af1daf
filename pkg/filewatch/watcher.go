package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/jmorillo42/iron-dome/pkg/baseline"
)

// renameWindow is how long a rename waits for its companion create before it
// degrades into a delete.
const renameWindow = 250 * time.Millisecond

// Handler consumes translated filesystem events.
type Handler interface {
	Handle(Event)
}

// Config for the filesystem watcher.
type Config struct {
	Root      string
	Patterns  []string
	Recursive bool
}

// Watcher reads raw fsnotify notifications and delivers Events to a Handler
// from a single goroutine. That single delivery path is what lets the
// controller own the baseline store without locks.
type Watcher struct {
	cfg     Config
	log     *logrus.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher creates a Watcher over cfg.Root. With Recursive set, every
// existing subdirectory is watched; directories created later are added as
// their create events arrive.
func NewWatcher(cfg Config, log *logrus.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{cfg: cfg, log: log, watcher: fsw}

	if cfg.Recursive {
		filepath.Walk(cfg.Root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.IsDir() {
				if err := fsw.Add(path); err != nil {
					log.WithError(err).WithField("path", path).Debug("Failed to add watch")
				}
			}
			return nil
		})
	} else {
		if err := fsw.Add(cfg.Root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Start delivers events to h until ctx is done. It never returns because of
// a single path's error; watcher errors are logged and the loop continues.
func (w *Watcher) Start(ctx context.Context, h Handler) {
	w.log.WithField("root", w.cfg.Root).Info("Starting filesystem watch")

	var pendingRename string
	expiry := time.NewTimer(renameWindow)
	if !expiry.Stop() {
		<-expiry.C
	}
	flushPending := func() {
		if pendingRename != "" {
			h.Handle(Event{Op: OpDeleted, Path: pendingRename})
			pendingRename = ""
		}
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			w.watcher.Close()
			w.log.Info("Filesystem watch stopping")
			return

		case <-expiry.C:
			flushPending()

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				flushPending()
				return
			}
			w.translate(fsEvent, h, &pendingRename, expiry)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Error("Watcher error")
		}
	}
}

// translate maps one fsnotify notification onto the controller's event
// vocabulary, pairing a rename with the create that follows it.
func (w *Watcher) translate(fsEvent fsnotify.Event, h Handler, pendingRename *string, expiry *time.Timer) {
	path := fsEvent.Name
	name := filepath.Base(path)

	switch {
	case fsEvent.Op&fsnotify.Create != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.cfg.Recursive {
				w.watcher.Add(path)
			}
			return
		}
		if *pendingRename != "" {
			expiry.Stop()
			src := *pendingRename
			*pendingRename = ""
			if baseline.MatchesAny(name, w.cfg.Patterns) {
				h.Handle(Event{Op: OpMoved, Path: path, OldPath: src})
			} else {
				// Renamed outside the watched pattern set.
				h.Handle(Event{Op: OpDeleted, Path: src})
			}
			return
		}
		if baseline.MatchesAny(name, w.cfg.Patterns) {
			h.Handle(Event{Op: OpCreated, Path: path})
		}

	case fsEvent.Op&fsnotify.Write != 0:
		if baseline.MatchesAny(name, w.cfg.Patterns) {
			h.Handle(Event{Op: OpModified, Path: path})
		}

	case fsEvent.Op&fsnotify.Remove != 0:
		if baseline.MatchesAny(name, w.cfg.Patterns) {
			h.Handle(Event{Op: OpDeleted, Path: path})
		}

	case fsEvent.Op&fsnotify.Rename != 0:
		if !baseline.MatchesAny(name, w.cfg.Patterns) {
			return
		}
		// The destination arrives as a separate create; hold this side
		// until it does or the window closes.
		if *pendingRename != "" {
			h.Handle(Event{Op: OpDeleted, Path: *pendingRename})
		}
		*pendingRename = path
		expiry.Reset(renameWindow)
	}
}
