// Package remotes routes subscribe requests for namespaces this relay
// doesn't serve locally to whichever relay the coordinator says does,
// dialing that origin at most once and sharing the resulting session
// across every subscriber asking for it.
package remotes

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/moqtransport/relaycore/internal/coordinator"
	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/track"
	"github.com/puzpuzpuz/xsync/v4"
)

// Session is a live subscriber connection to an origin relay. Remotes
// does not know how MoQ sessions are dialed or run; that is supplied by
// the Dialer so this package stays free of the QUIC/WebTransport
// transport layer.
type Session interface {
	// Subscribe forwards a SUBSCRIBE for (namespace, name) upstream and
	// copies arriving objects into w until the track ends, the session
	// closes, or ctx is cancelled.
	Subscribe(ctx context.Context, w *track.TrackWriter) error
	// Close tears down the session.
	Close() error
}

// Dialer establishes a Session to an origin relay URL.
type Dialer interface {
	Dial(ctx context.Context, target *url.URL) (Session, error)
}

// Remotes is the top-level manager: one per relay process. Every
// subscribe that misses locals.Retrieve routes through byURL, so lookups
// and the dedup get-or-create both happen off a lock-free map.
type Remotes struct {
	coordinator coordinator.Coordinator
	dialer      Dialer

	byURL *xsync.Map[string, *remote]
}

// New returns a Remotes manager that looks up origins via coordinator
// and dials them via dialer.
func New(coord coordinator.Coordinator, dialer Dialer) *Remotes {
	return &Remotes{coordinator: coord, dialer: dialer, byURL: xsync.NewMap[string, *remote]()}
}

// Route resolves ns via the coordinator and returns the RemoteConsumer
// for its origin, dialing a new session the first time any namespace at
// that origin is requested and reusing it for every subsequent route to
// the same origin.
func (r *Remotes) Route(ctx context.Context, ns namespace.Namespace) (*RemoteConsumer, error) {
	origin, err := r.coordinator.Lookup(ctx, ns)
	if err != nil {
		return nil, err
	}

	key := origin.URL.String()

	rem, loaded := r.byURL.LoadOrStore(key, newRemote(origin.URL, r.dialer, r))
	if !loaded {
		go rem.run(context.Background())
	}

	return rem.consumer, nil
}

func (r *Remotes) forget(key string) {
	r.byURL.Delete(key)
}

type trackEntry struct {
	writer   *track.TrackWriter
	refCount int
}

// remote is one deduplicated origin session plus the set of tracks
// requested from it so far.
type remote struct {
	url     *url.URL
	dialer  Dialer
	manager *Remotes

	mu        sync.Mutex
	tracks    map[string]*trackEntry
	requested chan *track.TrackWriter
	closed    bool

	consumer *RemoteConsumer
}

func newRemote(target *url.URL, dialer Dialer, manager *Remotes) *remote {
	rem := &remote{
		url:       target,
		dialer:    dialer,
		manager:   manager,
		tracks:    make(map[string]*trackEntry),
		requested: make(chan *track.TrackWriter, 256),
	}
	rem.consumer = &RemoteConsumer{remote: rem}
	return rem
}

func trackKey(ns namespace.Namespace, name string) string { return ns.Key() + "\x00" + name }

func (rem *remote) run(ctx context.Context) {
	defer rem.manager.forget(rem.url.String())

	session, err := rem.dialer.Dial(ctx, rem.url)
	if err != nil {
		slog.Warn("remote dial failed", "url", rem.url, "error", err)
		rem.failAll()
		return
	}
	defer session.Close()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case w, ok := <-rem.requested:
			if !ok {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(w *track.TrackWriter) {
				defer wg.Done()
				if err := session.Subscribe(ctx, w); err != nil {
					slog.Warn("remote subscribe failed", "url", rem.url,
						"namespace", w.Namespace().Path(), "track", w.Name(), "error", err)
				}
			}(w)
		}
	}
}

func (rem *remote) failAll() {
	rem.mu.Lock()
	rem.closed = true
	close(rem.requested)
	rem.mu.Unlock()
}

// RemoteConsumer is handed to code resolving subscribe requests against
// a single deduplicated origin session.
type RemoteConsumer struct {
	remote *remote
}

// Subscribe returns a reader for (ns, name) on this origin, requesting
// the upstream session serve it the first time any local caller asks,
// and fanning the same upstream data out to every subsequent caller.
func (c *RemoteConsumer) Subscribe(ns namespace.Namespace, name string) (*track.TrackReader, error) {
	rem := c.remote
	key := trackKey(ns, name)

	rem.mu.Lock()
	if entry, ok := rem.tracks[key]; ok {
		entry.refCount++
		rem.mu.Unlock()
		return entry.writer.NewReader(), nil
	}
	if rem.closed {
		rem.mu.Unlock()
		return nil, fmt.Errorf("remotes: origin %s is no longer reachable", rem.url)
	}

	writer, reader := track.NewTrack(ns, name)
	rem.tracks[key] = &trackEntry{writer: writer, refCount: 1}
	rem.mu.Unlock()

	select {
	case rem.requested <- writer:
	default:
		return nil, fmt.Errorf("remotes: too many outstanding requests to origin %s", rem.url)
	}
	return reader, nil
}

// Release drops one reference to (ns, name) acquired via Subscribe,
// removing the track's bookkeeping entry once nothing local references
// it anymore. The underlying upstream subscription is left running;
// unused-object delivery simply stops mattering once there are no local
// readers left.
func (c *RemoteConsumer) Release(ns namespace.Namespace, name string) {
	rem := c.remote
	key := trackKey(ns, name)

	rem.mu.Lock()
	defer rem.mu.Unlock()
	entry, ok := rem.tracks[key]
	if !ok {
		return
	}
	entry.refCount--
	if entry.refCount <= 0 {
		delete(rem.tracks, key)
	}
}
