package locals

import (
	"testing"

	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/track"
)

func TestRegisterAndRetrieve(t *testing.T) {
	ns, _ := namespace.New("org", "channel")
	_, reader := track.NewTracks(ns)

	l := New()
	reg, err := l.Register(reader)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got := l.Retrieve(ns)
	if got != reader {
		t.Error("Retrieve did not return the registered TracksReader")
	}

	reg.Close()
	if l.Retrieve(ns) != nil {
		t.Error("expected nil after deregistration")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ns, _ := namespace.New("org")
	_, r1 := track.NewTracks(ns)
	_, r2 := track.NewTracks(ns)

	l := New()
	if _, err := l.Register(r1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := l.Register(r2); err != ErrDuplicate {
		t.Errorf("got %v, want ErrDuplicate", err)
	}
}

func TestRetrieveLongestPrefix(t *testing.T) {
	parentNS, _ := namespace.New("org")
	childNS, _ := namespace.New("org", "channel")
	_, parentReader := track.NewTracks(parentNS)
	_, childReader := track.NewTracks(childNS)

	l := New()
	if _, err := l.Register(parentReader); err != nil {
		t.Fatalf("Register parent: %v", err)
	}
	if _, err := l.Register(childReader); err != nil {
		t.Fatalf("Register child: %v", err)
	}

	requestNS, _ := namespace.New("org", "channel", "video")
	got := l.Retrieve(requestNS)
	if got != childReader {
		t.Error("expected longest-prefix match to return the child registration")
	}
}

func TestRetrieveNoMatch(t *testing.T) {
	l := New()
	ns, _ := namespace.New("nothing")
	if l.Retrieve(ns) != nil {
		t.Error("expected nil when nothing is registered")
	}
}
