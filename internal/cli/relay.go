// Package cli assembles the relay's config, TLS, observability, and
// server layers into the RunE body of a cobra command, following
// mpisat-qumo's internal/cli/relay.go RunRelay shape.
package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/moqtransport/relaycore/internal/config"
	"github.com/moqtransport/relaycore/internal/coordinator"
	"github.com/moqtransport/relaycore/internal/observability"
	"github.com/moqtransport/relaycore/internal/relay"
	"github.com/moqtransport/relaycore/internal/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunRelay loads configFile, wires a relay.Server, and blocks until
// signaled.
func RunRelay(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := observability.Setup(ctx, observability.Config{
		Service:   "moq-relay",
		TraceAddr: cfg.Observability.TraceAddr,
		LogAddr:   cfg.Observability.LogAddr,
		Metrics:   cfg.Observability.Metrics,
	}); err != nil {
		return fmt.Errorf("cli: setup observability: %w", err)
	}
	defer func() {
		if err := observability.Shutdown(context.Background()); err != nil {
			slog.Error("observability shutdown failed", "error", err)
		}
	}()

	tlsConfig, err := setupTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
	if err != nil {
		return fmt.Errorf("cli: setup tls: %w", err)
	}

	coord, err := buildCoordinator(cfg)
	if err != nil {
		return fmt.Errorf("cli: build coordinator: %w", err)
	}

	relayServer := &relay.Server{
		Addr:      cfg.Server.Address,
		TLSConfig: tlsConfig,
		Config: relay.Config{
			NodeID:      cfg.Relay.NodeID,
			AnnounceURL: cfg.Relay.AnnounceURL,
			QLogDir:     cfg.Relay.QLogDir,
			MLogDir:     cfg.Relay.MLogDir,
			IdleTimeout: cfg.Relay.IdleTimeout,
			KeepAlive:   cfg.Relay.KeepAlive,
			Dev:         cfg.Relay.Dev,
			QLogServe:   cfg.Relay.QLogServe,
			MLogServe:   cfg.Relay.MLogServe,
		},
		Coordinator:     coord,
		CheckHTTPOrigin: func(*http.Request) bool { return true },
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := relayServer.HandleWebTransport(w, r); err != nil {
			slog.Error("webtransport handler failed", "error", err)
		}
	})

	adminAddr := cfg.Server.MetricsAddr
	if adminAddr == "" {
		adminAddr = cfg.Server.HealthAddr
	}
	mux := http.NewServeMux()
	mux.Handle("/healthz", &healthHandler{statusFunc: relayServer.Status})
	mux.Handle("/metrics", promhttp.Handler())
	if devMux := relayServer.DevMux(); devMux != nil {
		mux.Handle("/qlog/", devMux)
		mux.Handle("/mlog/", devMux)
	}
	adminServer := &http.Server{Addr: adminAddr, Handler: mux}

	serveComponents(ctx, relayServer, adminServer, 10*time.Second)
	return nil
}

// serverRunner is implemented by both *relay.Server and *http.Server, so
// the run/shutdown sequence below can be unit-tested with fakes.
type serverRunner interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serveComponents starts relaySrv and httpSrv and blocks until ctx is
// cancelled, then shuts both down within shutdownTimeout. Mirrors
// mpisat-qumo's serveComponents testable helper.
func serveComponents(ctx context.Context, relaySrv serverRunner, httpSrv serverRunner, shutdownTimeout time.Duration) {
	go func() {
		if err := relaySrv.ListenAndServe(); err != nil {
			log.Printf("relay server error: %v", err)
		}
	}()
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin server error: %v", err)
		}
	}()

	slog.Info("moq-relay started",
		"native_addr", "quic", "webtransport", "https")

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := relaySrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("relay shutdown error: %v", err)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin shutdown error: %v", err)
	}
	slog.Info("shutdown complete")
}

func setupTLS(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{transport.NativeALPN, transport.WebTransportALPN},
	}, nil
}

func buildCoordinator(cfg *config.Config) (coordinator.Coordinator, error) {
	nodeURL, err := cfg.NodeURL()
	if err != nil {
		return nil, err
	}

	switch cfg.Coordinator.Backend {
	case "", "none":
		return coordinator.NoopCoordinator{}, nil
	case "file":
		return coordinator.NewFileCoordinator(cfg.Coordinator.File.Path, nodeURL), nil
	case "api":
		apiURL, err := url.Parse(cfg.Coordinator.API.URL)
		if err != nil {
			return nil, fmt.Errorf("coordinator.api.url: %w", err)
		}
		return coordinator.NewAPICoordinator(coordinator.APICoordinatorConfig{
			APIURL:          apiURL,
			RelayURL:        nodeURL,
			RegistrationTTL: cfg.Coordinator.API.RegistrationTTL,
			RefreshInterval: cfg.Coordinator.API.RefreshInterval,
		}), nil
	default:
		return nil, fmt.Errorf("unknown coordinator backend %q", cfg.Coordinator.Backend)
	}
}
