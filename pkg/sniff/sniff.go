// Package sniff identifies a file's content type from its leading magic
// bytes, never from its name or extension.
package sniff

import (
	"github.com/h2non/filetype"
)

// Unknown is the sentinel label for files with no recognizable signature.
const Unknown = "<unknown>"

// Sniffer returns a best-effort content-type label for a file.
type Sniffer interface {
	Sniff(path string) string
}

// Magic is the default Sniffer, backed by signature matching on the file's
// header bytes.
type Magic struct{}

// Sniff returns the MIME label for path, or Unknown when no signature matches
// or the file cannot be read.
func (Magic) Sniff(path string) string {
	t, err := filetype.MatchFile(path)
	if err != nil || t == filetype.Unknown {
		return Unknown
	}
	return t.MIME.Value
}
