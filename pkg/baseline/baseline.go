// Package baseline keeps the last known (entropy, content type) pair for
// every tracked file. Baselines are values: an update replaces the entry,
// it never mutates one in place.
package baseline

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jmorillo42/iron-dome/pkg/entropy"
	"github.com/jmorillo42/iron-dome/pkg/sniff"
)

// Baseline is the recorded state of one tracked file at a point in time.
type Baseline struct {
	Entropy float64
	Type    string
}

// Prober computes a fresh Baseline for a path. ok is false when the file no
// longer exists or cannot be probed; callers treat that as deletion.
type Prober interface {
	Probe(path string) (b Baseline, ok bool)
}

// FileProber is the production Prober: entropy meter plus content sniffer.
type FileProber struct {
	Sniffer sniff.Sniffer
}

// Probe measures path. A vanished or unreadable file reports ok=false.
func (fp FileProber) Probe(path string) (Baseline, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Baseline{}, false
	}
	return Baseline{
		Entropy: entropy.Measure(path),
		Type:    fp.Sniffer.Sniff(path),
	}, true
}

// Store maps absolute, normalized paths to their current Baseline.
//
// The store is exclusively owned by the file watch controller's delivery
// goroutine: single writer, single reader, so it carries no lock. Sharing it
// across goroutines is a caller bug.
type Store struct {
	entries map[string]Baseline
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Baseline)}
}

// Get returns the baseline for path, if tracked.
func (s *Store) Get(path string) (Baseline, bool) {
	b, ok := s.entries[path]
	return b, ok
}

// Set inserts or replaces the baseline for path.
func (s *Store) Set(path string, b Baseline) {
	s.entries[path] = b
}

// Remove drops path from the store; a no-op if untracked.
func (s *Store) Remove(path string) {
	delete(s.entries, path)
}

// Len returns the number of tracked paths.
func (s *Store) Len() int {
	return len(s.entries)
}

// MatchesAny reports whether name matches at least one glob pattern.
// Patterns apply to base names only.
func MatchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ScanInitial seeds the store with a baseline for every file under root whose
// base name matches a pattern. It runs to completion before the live watch
// starts, so there is no race between the seed and the first event. Walk
// errors on individual entries are skipped; the scan itself never fails.
func (s *Store) ScanInitial(root string, patterns []string, recursive bool, prober Prober) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !MatchesAny(d.Name(), patterns) {
			return nil
		}
		if b, ok := prober.Probe(path); ok {
			s.entries[path] = b
		}
		return nil
	})
}
