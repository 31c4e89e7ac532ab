package relay

import (
	"context"
	"testing"
	"time"

	"github.com/moqtransport/relaycore/internal/locals"
	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/session"
	"github.com/moqtransport/relaycore/internal/track"
)

func TestProducerServesLocalTrack(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	defer clientSess.Close()
	defer serverSess.Close()

	ns, _ := namespace.New("org", "live")

	l := locals.New()
	tracksWriter, tracksReader := track.NewTracks(ns)
	go func() {
		for tw := range tracksWriter.Requested() {
			tw.WriteObject(track.Object{GroupID: 0, ObjectID: 0, Payload: []byte("hello")})
		}
	}()
	reg, err := l.Register(tracksReader)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()

	producer := &Producer{Locals: l}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		sub := <-serverSess.Publisher().Subscribed()
		producer.Serve(ctx, serverSess.Publisher(), sub)
	}()

	clientWriter, clientReader := track.NewTrack(ns, "video")
	go func() {
		if err := clientSess.Subscriber().Subscribe(ctx, clientWriter); err != nil {
			t.Logf("Subscribe ended: %v", err)
		}
	}()

	select {
	case obj := <-clientReader.Objects():
		if string(obj.Payload) != "hello" {
			t.Errorf("payload = %q, want %q", obj.Payload, "hello")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for subscribed object")
	}
}

func TestProducerRejectsUnknownTrack(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	defer clientSess.Close()
	defer serverSess.Close()

	producer := &Producer{Locals: locals.New()}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		sub := <-serverSess.Publisher().Subscribed()
		producer.Serve(ctx, serverSess.Publisher(), sub)
	}()

	ns, _ := namespace.New("org", "missing")
	w, _ := track.NewTrack(ns, "video")

	err := clientSess.Subscriber().Subscribe(ctx, w)
	if err == nil {
		t.Fatal("expected Subscribe to fail for an unregistered namespace")
	}
}

func TestProducerTrackStatus(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	defer clientSess.Close()
	defer serverSess.Close()

	ns, _ := namespace.New("org", "live")
	l := locals.New()
	_, tracksReader := track.NewTracks(ns)
	reg, err := l.Register(tracksReader)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer reg.Close()

	producer := &Producer{Locals: l}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		ts := <-serverSess.Publisher().TrackStatusRequested()
		producer.ServeTrackStatus(ts)
		close(done)
	}()

	if err := clientSess.Subscriber().RequestTrackStatus(ctx, ns, "video"); err != nil {
		t.Fatalf("RequestTrackStatus: %v", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for track status to be served")
	}
}

func TestProducerTrackStatusMiss(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	defer clientSess.Close()
	defer serverSess.Close()

	ns, _ := namespace.New("org", "missing")
	producer := &Producer{Locals: locals.New()}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		ts := <-serverSess.Publisher().TrackStatusRequested()
		// Must answer with a TRACK_STATUS_OK carrying TrackStatusNotFound
		// rather than leaving the request unanswered.
		producer.ServeTrackStatus(ts)
		close(done)
	}()

	if err := clientSess.Subscriber().RequestTrackStatus(ctx, ns, "video"); err != nil {
		t.Fatalf("RequestTrackStatus: %v", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("timed out waiting for track status miss to be answered")
	}
}

func TestProducerResolveWithoutRemotesNotFound(t *testing.T) {
	// With no Locals match and Remotes nil, resolve must surface
	// errTrackNotFound rather than panic.
	producer := &Producer{Locals: locals.New()}
	ns, _ := namespace.New("org", "missing")
	_, _, err := producer.resolve(context.Background(), ns, "video")
	if err != errTrackNotFound {
		t.Errorf("resolve error = %v, want errTrackNotFound", err)
	}
}
