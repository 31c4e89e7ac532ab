// Package track implements the in-memory fan-out primitives a relay
// uses to move objects from one publishing session to any number of
// subscribing sessions, independent of the wire transport carrying
// them in either direction.
package track

import (
	"sync"
	"sync/atomic"

	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/observability"
)

// readerBuffer is how many pending objects a single reader tolerates
// before new objects are dropped for it. Matches the bursty-producer,
// slow-consumer assumption of a live relay: a reader that falls behind
// loses objects rather than stalling the publisher.
const readerBuffer = 64

// Object is one payload-bearing unit of a track: either live media data
// or a status record (end-of-group, end-of-track) carrying no payload.
type Object struct {
	GroupID    uint64
	SubgroupID uint64
	ObjectID   uint64
	Status     uint64
	Payload    []byte
}

// Track is the shared fan-out hub for a single named track: one
// publisher writes objects in, any number of subscribers read them out
// independently.
type Track struct {
	namespace namespace.Namespace
	name      string

	mu           sync.Mutex
	readers      map[uint64]chan Object
	nextReaderID uint64
	closed       bool
	closeStatus  uint64
	closeReason  string
	largestGroup uint64
	largestObj   uint64

	delivered atomic.Int64
	dropped   atomic.Int64

	rec *observability.Recorder
}

func newTrack(ns namespace.Namespace, name string) *Track {
	observability.IncTracks()
	return &Track{
		namespace: ns,
		name:      name,
		readers:   make(map[uint64]chan Object),
		rec:       observability.NewRecorder(ns.Path() + "/" + name),
	}
}

// Namespace reports the namespace the track belongs to.
func (t *Track) Namespace() namespace.Namespace { return t.namespace }

// Name reports the track's name within its namespace.
func (t *Track) Name() string { return t.name }

// Stats reports delivery counters for diagnostics.
func (t *Track) Stats() (delivered, dropped int64) {
	return t.delivered.Load(), t.dropped.Load()
}

func (t *Track) writeObject(o Object) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if o.GroupID > t.largestGroup || (o.GroupID == t.largestGroup && o.ObjectID > t.largestObj) {
		if o.GroupID > t.largestGroup {
			t.rec.GroupReceived()
		}
		t.largestGroup, t.largestObj = o.GroupID, o.ObjectID
	}
	readers := make([]chan Object, 0, len(t.readers))
	for _, ch := range t.readers {
		readers = append(readers, ch)
	}
	t.mu.Unlock()

	for _, ch := range readers {
		select {
		case ch <- o:
			t.delivered.Add(1)
		default:
			t.dropped.Add(1)
		}
	}
}

func (t *Track) close(status uint64, reason string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	observability.DecTracks()
	t.closeStatus = status
	t.closeReason = reason
	readers := make([]chan Object, 0, len(t.readers))
	for _, ch := range t.readers {
		readers = append(readers, ch)
	}
	t.readers = make(map[uint64]chan Object)
	t.mu.Unlock()

	for _, ch := range readers {
		close(ch)
	}
}

// largest reports the highest group/object ID seen so far, for
// SUBSCRIBE_OK responses.
func (t *Track) largest() (group, object uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.largestGroup, t.largestObj
}

func (t *Track) newReader() *TrackReader {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextReaderID
	t.nextReaderID++
	ch := make(chan Object, readerBuffer)
	if t.closed {
		close(ch)
	} else {
		t.readers[id] = ch
		t.rec.IncSubscribers()
	}
	return &TrackReader{track: t, id: id, ch: ch}
}

func (t *Track) removeReader(id uint64) {
	t.mu.Lock()
	ch, ok := t.readers[id]
	if ok {
		delete(t.readers, id)
	}
	t.mu.Unlock()
	if ok {
		t.rec.DecSubscribers()
		close(ch)
	}
}

// NewTrack creates a standalone Track outside of a Tracks registry, for
// code that dedups tracks by its own key space (the remotes manager
// keys tracks by namespace+name across many namespaces at once).
func NewTrack(ns namespace.Namespace, name string) (*TrackWriter, *TrackReader) {
	t := newTrack(ns, name)
	return &TrackWriter{track: t}, t.newReader()
}

// TrackWriter is the producer handle for a Track: the only side allowed
// to push objects in or end the track.
type TrackWriter struct {
	track *Track
}

// NewReader registers another independent reader against the same
// track, for fanning one upstream subscription out to several local
// subscribers.
func (w *TrackWriter) NewReader() *TrackReader { return w.track.newReader() }

// Namespace reports the namespace the track belongs to.
func (w *TrackWriter) Namespace() namespace.Namespace { return w.track.Namespace() }

// Name reports the track's name.
func (w *TrackWriter) Name() string { return w.track.Name() }

// WriteObject fans o out to every currently subscribed reader. Readers
// that can't keep up silently drop the object rather than blocking the
// publisher.
func (w *TrackWriter) WriteObject(o Object) { w.track.writeObject(o) }

// Close ends the track, delivering statusCode/reason semantics
// equivalent to PUBLISH_DONE to every subscribed reader by closing
// their object channel.
func (w *TrackWriter) Close(statusCode uint64, reason string) { w.track.close(statusCode, reason) }

// TrackReader is a single subscriber's handle onto a Track.
type TrackReader struct {
	track *Track
	id    uint64
	ch    chan Object
}

// Namespace reports the namespace the track belongs to.
func (r *TrackReader) Namespace() namespace.Namespace { return r.track.Namespace() }

// Name reports the track's name.
func (r *TrackReader) Name() string { return r.track.Name() }

// Objects returns the channel objects arrive on. The channel is closed
// when the track ends or the reader is closed.
func (r *TrackReader) Objects() <-chan Object { return r.ch }

// Largest reports the highest group/object ID observed on the track.
func (r *TrackReader) Largest() (group, object uint64) { return r.track.largest() }

// Close unsubscribes the reader from the track's fan-out.
func (r *TrackReader) Close() { r.track.removeReader(r.id) }
