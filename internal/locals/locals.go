// Package locals registers the namespaces this relay instance serves
// directly, so that a subscriber's request can be matched to a local
// producer without involving the coordinator or remotes manager.
package locals

import (
	"errors"
	"sync"

	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/track"
	"github.com/puzpuzpuz/xsync/v4"
)

// ErrDuplicate is returned by Register when the namespace is already
// registered locally.
var ErrDuplicate = errors.New("locals: namespace already registered")

// Locals is a registry of namespace to TracksReader mappings for tracks
// published directly to this relay instance. Safe for concurrent use.
// Every SUBSCRIBE and PUBLISH_NAMESPACE that lands on this relay reads
// or writes it, so the lookup itself is a lock-free xsync.Map rather
// than a mutex-guarded plain map.
type Locals struct {
	lookup *xsync.Map[string, entry]
}

type entry struct {
	namespace namespace.Namespace
	tracks    *track.TracksReader
}

// New returns an empty registry.
func New() *Locals {
	return &Locals{lookup: xsync.NewMap[string, entry]()}
}

// Registration is returned by Register. Closing it removes the
// namespace from the registry; safe to call more than once.
type Registration struct {
	locals *Locals
	key    string
	once   sync.Once
}

// Close deregisters the namespace.
func (r *Registration) Close() {
	r.once.Do(func() {
		r.locals.lookup.Delete(r.key)
	})
}

// Register adds tracks to the registry under its namespace. Returns
// ErrDuplicate if the namespace is already registered.
func (l *Locals) Register(tracks *track.TracksReader) (*Registration, error) {
	key := tracks.Namespace().Key()

	e := entry{namespace: tracks.Namespace(), tracks: tracks}
	if _, loaded := l.lookup.LoadOrStore(key, e); loaded {
		return nil, ErrDuplicate
	}

	return &Registration{locals: l, key: key}, nil
}

// Retrieve returns the TracksReader registered under the longest
// namespace prefix matching ns, or nil if nothing matches.
func (l *Locals) Retrieve(ns namespace.Namespace) *track.TracksReader {
	var best *track.TracksReader
	bestLen := -1
	l.lookup.Range(func(_ string, e entry) bool {
		if ns.HasPrefix(e.namespace) && e.namespace.Len() > bestLen {
			best = e.tracks
			bestLen = e.namespace.Len()
		}
		return true
	})
	return best
}
