package coordinator

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moqtransport/relaycore/internal/namespace"
)

// DefaultRegistrationTTL is the lifetime moq-api-style registries hold a
// namespace→origin entry before it expires without a refresh.
const DefaultRegistrationTTL = 10 * time.Minute

// APICoordinatorConfig configures an HTTP-backed coordinator.
type APICoordinatorConfig struct {
	// APIURL is the base URL of the shared registry (e.g. "https://registry:8080").
	APIURL *url.URL
	// RelayURL is advertised as the origin of namespaces this instance registers.
	RelayURL *url.URL
	// RegistrationTTL is the lifetime the registry holds a registration for.
	RegistrationTTL time.Duration
	// RefreshInterval is how often a live registration is re-PATCHed. Defaults
	// to half of RegistrationTTL.
	RefreshInterval time.Duration
	// TLSConfig configures the HTTP client's transport, for mTLS deployments.
	TLSConfig *tls.Config
}

func (cfg *APICoordinatorConfig) setDefaults() {
	if cfg.RegistrationTTL <= 0 {
		cfg.RegistrationTTL = DefaultRegistrationTTL
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = cfg.RegistrationTTL / 2
	}
}

// APICoordinator coordinates namespace registration through a shared
// HTTP registry, so that any number of relay processes (not just
// processes sharing a filesystem) can discover each other's namespaces.
// Registrations are refreshed on a timer and expire in the registry if
// a relay goes away without explicitly unregistering.
type APICoordinator struct {
	cfg    APICoordinatorConfig
	client *http.Client
}

// NewAPICoordinator returns a coordinator backed by cfg.APIURL.
func NewAPICoordinator(cfg APICoordinatorConfig) *APICoordinator {
	cfg.setDefaults()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSConfig != nil {
		transport.TLSClientConfig = cfg.TLSConfig
	}
	return &APICoordinator{
		cfg:    cfg,
		client: &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

type originDoc struct {
	URL string `json:"url"`
}

func (c *APICoordinator) originURL(ns namespace.Namespace) string {
	return fmt.Sprintf("%s/origins%s", c.cfg.APIURL.String(), ns.Path())
}

type apiRegistration struct {
	cancel context.CancelFunc
	done   chan struct{}
	coord  *APICoordinator
	ns     namespace.Namespace
}

func (r *apiRegistration) Close(ctx context.Context) error {
	r.cancel()
	<-r.done
	return r.coord.UnregisterNamespace(ctx, r.ns)
}

// RegisterNamespace implements Coordinator: PUTs the origin document,
// then starts a background goroutine that PATCHes it on RefreshInterval
// until the returned Registration is closed.
func (c *APICoordinator) RegisterNamespace(ctx context.Context, ns namespace.Namespace) (Registration, error) {
	body, _ := json.Marshal(originDoc{URL: c.cfg.RelayURL.String()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.originURL(ns), bytes.NewReader(body))
	if err != nil {
		return nil, &OtherError{Op: "register_namespace", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &OtherError{Op: "register_namespace", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return nil, ErrNamespaceAlreadyRegistered
	}
	if resp.StatusCode >= 400 {
		return nil, &OtherError{Op: "register_namespace", Err: fmt.Errorf("PUT %s: status %d", req.URL, resp.StatusCode)}
	}

	refreshCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go c.refreshLoop(refreshCtx, done, ns)

	return &apiRegistration{cancel: cancel, done: done, coord: c, ns: ns}, nil
}

func (c *APICoordinator) refreshLoop(ctx context.Context, done chan struct{}, ns namespace.Namespace) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refresh(ctx, ns); err != nil {
				slog.Warn("coordinator registration refresh failed", "namespace", ns.Path(), "error", err)
			}
		}
	}
}

func (c *APICoordinator) refresh(ctx context.Context, ns namespace.Namespace) error {
	op := func() error {
		body, _ := json.Marshal(originDoc{URL: c.cfg.RelayURL.String()})
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.originURL(ns), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("PATCH %s: status %d", req.URL, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("PATCH %s: status %d", req.URL, resp.StatusCode))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, bo)
}

// UnregisterNamespace implements Coordinator.
func (c *APICoordinator) UnregisterNamespace(ctx context.Context, ns namespace.Namespace) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.originURL(ns), nil)
	if err != nil {
		return &OtherError{Op: "unregister_namespace", Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return &OtherError{Op: "unregister_namespace", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return &OtherError{Op: "unregister_namespace", Err: fmt.Errorf("DELETE %s: status %d", req.URL, resp.StatusCode)}
	}
	return nil
}

// Lookup implements Coordinator by GETting the exact namespace; the
// registry is not searched for a registered prefix of it.
func (c *APICoordinator) Lookup(ctx context.Context, ns namespace.Namespace) (Origin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.originURL(ns), nil)
	if err != nil {
		return Origin{}, &OtherError{Op: "lookup", Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Origin{}, &OtherError{Op: "lookup", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Origin{}, ErrNamespaceNotFound
	}
	if resp.StatusCode >= 400 {
		return Origin{}, &OtherError{Op: "lookup", Err: fmt.Errorf("GET %s: status %d", req.URL, resp.StatusCode)}
	}

	var doc originDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Origin{}, &OtherError{Op: "lookup", Err: fmt.Errorf("decode origin response: %w", err)}
	}
	u, err := url.Parse(doc.URL)
	if err != nil {
		return Origin{}, &OtherError{Op: "lookup", Err: fmt.Errorf("parse origin url: %w", err)}
	}
	return Origin{Namespace: ns, URL: u}, nil
}

// Shutdown implements Coordinator. The HTTP client's idle connections
// are reclaimed by the transport; nothing further needs releasing here.
func (c *APICoordinator) Shutdown(context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}
