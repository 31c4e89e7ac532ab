package remotes

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moqtransport/relaycore/internal/coordinator"
	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/track"
)

type fakeCoordinator struct {
	origin coordinator.Origin
	err    error
}

func (f *fakeCoordinator) RegisterNamespace(context.Context, namespace.Namespace) (coordinator.Registration, error) {
	return nil, nil
}
func (f *fakeCoordinator) UnregisterNamespace(context.Context, namespace.Namespace) error { return nil }
func (f *fakeCoordinator) Lookup(context.Context, namespace.Namespace) (coordinator.Origin, error) {
	return f.origin, f.err
}
func (f *fakeCoordinator) Shutdown(context.Context) error { return nil }

type fakeSession struct {
	dialCount *int32
}

func (s *fakeSession) Subscribe(ctx context.Context, w *track.TrackWriter) error {
	w.WriteObject(track.Object{GroupID: 0, ObjectID: 0, Payload: []byte("upstream-object")})
	<-ctx.Done()
	return nil
}
func (s *fakeSession) Close() error { return nil }

type fakeDialer struct {
	mu        sync.Mutex
	dialCount int32
}

func (d *fakeDialer) Dial(ctx context.Context, target *url.URL) (Session, error) {
	atomic.AddInt32(&d.dialCount, 1)
	return &fakeSession{}, nil
}

func TestRouteDedupesDialsByOrigin(t *testing.T) {
	originURL, _ := url.Parse("https://origin.example:4443")
	coord := &fakeCoordinator{origin: coordinator.Origin{URL: originURL}}
	dialer := &fakeDialer{}
	r := New(coord, dialer)

	ns1, _ := namespace.New("org", "a")
	ns2, _ := namespace.New("org", "b")

	c1, err := r.Route(context.Background(), ns1)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	c2, err := r.Route(context.Background(), ns2)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if c1 != c2 {
		t.Error("expected same RemoteConsumer for the same origin URL")
	}

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&dialer.dialCount); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

func TestSubscribeDedupesByNamespaceAndName(t *testing.T) {
	originURL, _ := url.Parse("https://origin.example:4443")
	coord := &fakeCoordinator{origin: coordinator.Origin{URL: originURL}}
	dialer := &fakeDialer{}
	r := New(coord, dialer)

	ns, _ := namespace.New("org")
	consumer, err := r.Route(context.Background(), ns)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}

	r1, err := consumer.Subscribe(ns, "video")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	r2, err := consumer.Subscribe(ns, "video")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for _, r := range []*track.TrackReader{r1, r2} {
		select {
		case obj := <-r.Objects():
			if string(obj.Payload) != "upstream-object" {
				t.Errorf("payload = %q", obj.Payload)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for upstream object")
		}
	}
}

func TestRouteLookupFailure(t *testing.T) {
	coord := &fakeCoordinator{err: coordinator.ErrNamespaceNotFound}
	r := New(coord, &fakeDialer{})

	ns, _ := namespace.New("missing")
	if _, err := r.Route(context.Background(), ns); err != coordinator.ErrNamespaceNotFound {
		t.Errorf("Route error = %v, want ErrNamespaceNotFound", err)
	}
}
