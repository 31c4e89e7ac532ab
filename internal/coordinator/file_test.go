package coordinator

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/moqtransport/relaycore/internal/namespace"
)

func TestFileCoordinatorRegisterAndLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.json")
	relayURL, _ := url.Parse("https://relay-a.example:4443")
	c := NewFileCoordinator(path, relayURL)

	ns, _ := namespace.New("org", "channel")
	reg, err := c.RegisterNamespace(context.Background(), ns)
	if err != nil {
		t.Fatalf("RegisterNamespace: %v", err)
	}

	origin, err := c.Lookup(context.Background(), ns)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if origin.URL.String() != relayURL.String() {
		t.Errorf("origin URL = %s, want %s", origin.URL, relayURL)
	}

	if err := reg.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.Lookup(context.Background(), ns); err != ErrNamespaceNotFound {
		t.Errorf("Lookup after unregister = %v, want ErrNamespaceNotFound", err)
	}
}

func TestFileCoordinatorPrefixLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.json")
	relayURL, _ := url.Parse("https://relay-b.example:4443")
	c := NewFileCoordinator(path, relayURL)

	parent, _ := namespace.New("org", "channel")
	if _, err := c.RegisterNamespace(context.Background(), parent); err != nil {
		t.Fatalf("RegisterNamespace: %v", err)
	}

	child, _ := namespace.New("org", "channel", "video")
	origin, err := c.Lookup(context.Background(), child)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !origin.Namespace.Equal(parent) {
		t.Errorf("matched namespace = %v, want %v", origin.Namespace, parent)
	}
}

func TestFileCoordinatorNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.json")
	relayURL, _ := url.Parse("https://relay-c.example:4443")
	c := NewFileCoordinator(path, relayURL)

	ns, _ := namespace.New("nothing", "here")
	if _, err := c.Lookup(context.Background(), ns); err != ErrNamespaceNotFound {
		t.Errorf("Lookup = %v, want ErrNamespaceNotFound", err)
	}
}
