// Package mlog implements the directory-and-file-naming half of the
// relay's per-connection qlog/mlog diagnostics: given a connection id it
// opens (or serves back) the file a QUIC/MoQ event encoder would write
// to. It does not encode qlog or mlog events itself — original_source's
// moq-native-ietf/moq-relay-ietf wire those into quinn/moq-transport
// directly, a dependency this repo has no equivalent for, so the sink
// side stays a plain file handle any future encoder can write into.
package mlog

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a validated directory that per-connection event logs are
// written to, one file per connection per log kind ("qlog", "mlog").
type Dir struct {
	path string
}

// Open validates that path exists and is a directory, following
// moq-native-ietf's quic.rs / relay.rs validation of --qlog-dir and
// --mlog-dir at startup.
func Open(path string) (*Dir, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mlog: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mlog: %s is not a directory", path)
	}
	return &Dir{path: path}, nil
}

// fileName builds the "<connID>_server.<kind>" name relay.rs uses for
// both qlog and mlog files.
func fileName(connID, kind string) string {
	return fmt.Sprintf("%s_server.%s", connID, kind)
}

// Create opens (creating if necessary) the log file for connID of the
// given kind ("qlog" or "mlog"). The caller owns the returned file and
// is responsible for closing it when the connection ends.
func (d *Dir) Create(connID, kind string) (*os.File, error) {
	path := filepath.Join(d.path, fileName(connID, kind))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("mlog: create %s: %w", path, err)
	}
	return f, nil
}

// Path returns the path to connID's log file of the given kind, without
// opening it.
func (d *Dir) Path(connID, kind string) string {
	return filepath.Join(d.path, fileName(connID, kind))
}

// Handler serves a Dir's files over HTTP at "/<kind>/<connID>", the
// shape original_source's --qlog-serve/--mlog-serve dev endpoints use.
// Registered only when the corresponding *Serve flag is set; a nil Dir
// (no directory configured) serves 404 for every request.
type Handler struct {
	Dir  *Dir
	Kind string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Dir == nil {
		http.NotFound(w, r)
		return
	}
	connID := strings.TrimPrefix(r.URL.Path, "/"+h.Kind+"/")
	if connID == "" || strings.ContainsAny(connID, "/\\") {
		http.Error(w, "invalid connection id", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, h.Dir.Path(connID, h.Kind))
}
