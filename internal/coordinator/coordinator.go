// Package coordinator tracks which relay instance serves which track
// namespace, so a subscriber connected to one relay can be routed to
// the origin actually publishing a namespace it doesn't serve locally.
// Registrations are pluggable: a single-process deployment needs
// nothing, a small cluster can share a JSON file, and a larger
// deployment points every relay at a shared HTTP registry.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/moqtransport/relaycore/internal/namespace"
)

// Sentinel errors returned by Coordinator implementations.
var (
	// ErrNamespaceNotFound is returned by Lookup when no relay is known
	// to serve the requested namespace or any prefix of it.
	ErrNamespaceNotFound = errors.New("coordinator: namespace not found")
	// ErrNamespaceAlreadyRegistered is returned by RegisterNamespace when
	// the namespace is already registered to a different origin.
	ErrNamespaceAlreadyRegistered = errors.New("coordinator: namespace already registered")
)

// OtherError wraps a coordinator-backend-specific failure (file I/O,
// HTTP transport, JSON decode) that doesn't fit a sentinel.
type OtherError struct {
	Op  string
	Err error
}

func (e *OtherError) Error() string { return fmt.Sprintf("coordinator: %s: %v", e.Op, e.Err) }
func (e *OtherError) Unwrap() error { return e.Err }

// Origin is the result of a namespace lookup: which namespace matched
// (possibly a registered prefix, not the full requested namespace) and
// the URL of the relay serving it.
type Origin struct {
	Namespace namespace.Namespace
	URL       *url.URL
}

// Registration is returned by RegisterNamespace. Closing it unregisters
// the namespace; it is safe to call Close more than once.
type Registration interface {
	Close(ctx context.Context) error
}

// Coordinator registers locally-served namespaces and looks up which
// relay serves a namespace this instance doesn't serve locally.
// Implementations must be safe for concurrent use.
type Coordinator interface {
	// RegisterNamespace records namespace as served by this relay.
	// Called when a publisher's PUBLISH_NAMESPACE is accepted.
	RegisterNamespace(ctx context.Context, ns namespace.Namespace) (Registration, error)

	// UnregisterNamespace removes namespace from the registry. Called
	// explicitly on PUBLISH_NAMESPACE_DONE; idempotent, since the
	// Registration returned by RegisterNamespace may also be closed
	// independently when the publisher's handle is dropped.
	UnregisterNamespace(ctx context.Context, ns namespace.Namespace) error

	// Lookup resolves namespace to the relay serving it (or a registered
	// prefix of it). Returns ErrNamespaceNotFound if nothing matches.
	Lookup(ctx context.Context, ns namespace.Namespace) (Origin, error)

	// Shutdown releases any resources held by the coordinator: background
	// refresh goroutines, open file handles, HTTP connections.
	Shutdown(ctx context.Context) error
}

// noopRegistration satisfies Registration for coordinators that need no
// per-registration cleanup.
type noopRegistration struct{}

func (noopRegistration) Close(context.Context) error { return nil }

// NoopCoordinator is the Coordinator for a standalone relay with no
// cross-instance namespace lookup: every namespace it doesn't serve
// locally resolves as not found, and registration is a no-op. Used when
// no coordinator backend is configured.
type NoopCoordinator struct{}

func (NoopCoordinator) RegisterNamespace(context.Context, namespace.Namespace) (Registration, error) {
	return noopRegistration{}, nil
}

func (NoopCoordinator) UnregisterNamespace(context.Context, namespace.Namespace) error { return nil }

func (NoopCoordinator) Lookup(context.Context, namespace.Namespace) (Origin, error) {
	return Origin{}, ErrNamespaceNotFound
}

func (NoopCoordinator) Shutdown(context.Context) error { return nil }
