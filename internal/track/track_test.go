package track

import (
	"testing"
	"time"

	"github.com/moqtransport/relaycore/internal/namespace"
)

func TestTracksSubscribeCreatesAndRequestsTrack(t *testing.T) {
	ns, _ := namespace.New("org", "channel")
	writer, reader := NewTracks(ns)

	readerHandle, err := reader.Subscribe("video")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case tw := <-writer.Requested():
		if tw.Name() != "video" {
			t.Errorf("requested track name = %q, want %q", tw.Name(), "video")
		}
		tw.WriteObject(Object{GroupID: 1, ObjectID: 0, Payload: []byte("frame")})
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for requested track")
	}

	select {
	case obj := <-readerHandle.Objects():
		if string(obj.Payload) != "frame" {
			t.Errorf("payload = %q, want %q", obj.Payload, "frame")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for object")
	}
}

func TestTracksSubscribeDedupesByName(t *testing.T) {
	ns, _ := namespace.New("org")
	writer, reader := NewTracks(ns)

	r1, err := reader.Subscribe("audio")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	tw := <-writer.Requested()

	r2, err := reader.Subscribe("audio")
	if err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	select {
	case <-writer.Requested():
		t.Fatal("second Subscribe should not request the track again")
	case <-time.After(50 * time.Millisecond):
	}

	tw.WriteObject(Object{GroupID: 0, ObjectID: 1, Payload: []byte("x")})

	for _, r := range []*TrackReader{r1, r2} {
		select {
		case obj := <-r.Objects():
			if string(obj.Payload) != "x" {
				t.Errorf("payload = %q, want %q", obj.Payload, "x")
			}
		case <-time.After(time.Second):
			t.Fatal("reader did not receive fanned-out object")
		}
	}
}

func TestTrackWriterCloseClosesReaders(t *testing.T) {
	ns, _ := namespace.New("org")
	_, reader := NewTracks(ns)
	r, err := reader.Subscribe("video")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	r.track.close(0x04, "end of track")

	select {
	case _, ok := <-r.Objects():
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestReaderCloseRemovesFromFanout(t *testing.T) {
	ns, _ := namespace.New("org")
	writer, reader := NewTracks(ns)
	r, err := reader.Subscribe("video")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	tw := <-writer.Requested()

	r.Close()
	tw.WriteObject(Object{GroupID: 0, ObjectID: 0, Payload: []byte("after-close")})

	if _, ok := <-r.Objects(); ok {
		t.Error("expected reader channel to be closed after Close")
	}
}
