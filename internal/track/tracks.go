package track

import (
	"errors"
	"sync"

	"github.com/moqtransport/relaycore/internal/namespace"
)

// ErrTrackNotAvailable is returned by TracksReader.Subscribe when the
// producer side has stopped accepting new track requests.
var ErrTrackNotAvailable = errors.New("track: producer is no longer accepting requests")

// requestBuffer bounds how many not-yet-served track requests a
// producer can have outstanding before further Subscribe calls fail
// loudly instead of blocking the caller indefinitely.
const requestBuffer = 256

// tracksState is the state shared by a TracksWriter/TracksReader pair
// produced together by NewTracks.
type tracksState struct {
	namespace namespace.Namespace

	mu     sync.Mutex
	tracks map[string]*Track
	closed bool

	requested chan *TrackWriter
}

// NewTracks creates the producer/consumer pair representing one
// announced namespace's set of tracks. The writer is handed to the code
// serving the actual publishing session; the reader is handed to
// whatever serves subscribers for this namespace (locally or via
// forwarding).
func NewTracks(ns namespace.Namespace) (*TracksWriter, *TracksReader) {
	state := &tracksState{
		namespace: ns,
		tracks:    make(map[string]*Track),
		requested: make(chan *TrackWriter, requestBuffer),
	}
	return &TracksWriter{state: state}, &TracksReader{state: state}
}

// TracksWriter is held by the code responsible for actually producing
// track content — typically the session handling an inbound publisher.
type TracksWriter struct {
	state *tracksState
}

// Namespace reports the announced namespace.
func (w *TracksWriter) Namespace() namespace.Namespace { return w.state.namespace }

// Requested yields each TrackWriter as a subscriber requests that track
// name for the first time. The receiving code is expected to start
// producing content for it (e.g. forward a SUBSCRIBE to the actual
// publisher and copy arriving objects into the TrackWriter).
func (w *TracksWriter) Requested() <-chan *TrackWriter { return w.state.requested }

// Close marks the namespace as no longer accepting new track requests
// and ends every track currently being served.
func (w *TracksWriter) Close(statusCode uint64, reason string) {
	w.state.mu.Lock()
	if w.state.closed {
		w.state.mu.Unlock()
		return
	}
	w.state.closed = true
	tracks := make([]*Track, 0, len(w.state.tracks))
	for _, t := range w.state.tracks {
		tracks = append(tracks, t)
	}
	w.state.mu.Unlock()

	close(w.state.requested)
	for _, t := range tracks {
		t.close(statusCode, reason)
	}
}

// TracksReader is held by the code serving subscribers for this
// namespace: it looks up or creates a Track by name and hands back a
// fresh reader onto it.
type TracksReader struct {
	state *tracksState
}

// Namespace reports the announced namespace.
func (r *TracksReader) Namespace() namespace.Namespace { return r.state.namespace }

// Subscribe returns a reader onto the named track, creating it (and
// requesting the producer serve it) on first use. Subsequent calls for
// the same name share the same underlying Track, each getting an
// independently-paced reader.
func (r *TracksReader) Subscribe(name string) (*TrackReader, error) {
	r.state.mu.Lock()
	if t, ok := r.state.tracks[name]; ok {
		r.state.mu.Unlock()
		return t.newReader(), nil
	}
	if r.state.closed {
		r.state.mu.Unlock()
		return nil, ErrTrackNotAvailable
	}

	t := newTrack(r.state.namespace, name)
	r.state.tracks[name] = t
	r.state.mu.Unlock()

	select {
	case r.state.requested <- &TrackWriter{track: t}:
	default:
		return nil, ErrTrackNotAvailable
	}
	return t.newReader(), nil
}
