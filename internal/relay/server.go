package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moqtransport/relaycore/internal/coordinator"
	"github.com/moqtransport/relaycore/internal/locals"
	"github.com/moqtransport/relaycore/internal/mlog"
	"github.com/moqtransport/relaycore/internal/remotes"
	"github.com/moqtransport/relaycore/internal/session"
	"github.com/moqtransport/relaycore/internal/track"
	"github.com/moqtransport/relaycore/internal/transport"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// Server is the relay orchestrator (spec.md §4.7): it accepts connections
// on both the native QUIC and WebTransport ALPNs, runs the MoQ session
// handshake on each, and wires the resulting Publisher/Subscriber halves
// to a shared Locals/Remotes/Coordinator so every connection can resolve
// subscribes and announces against the whole cluster. Grounded on
// original_source's relay.rs accept loop and mpisat-qumo's Server type.
type Server struct {
	Addr       string
	TLSConfig  *tls.Config
	QUICConfig *quic.Config
	Config     Config

	Coordinator     coordinator.Coordinator
	CheckHTTPOrigin func(*http.Request) bool

	Locals  *locals.Locals
	remotes *remotes.Remotes

	peers  *peerRegistry
	status *statusHandler

	qlogDir *mlog.Dir
	mlogDir *mlog.Dir

	quicListener *quic.Listener
	wtServer     *webtransport.Server

	forwardMu        sync.Mutex
	forwardPublisher *session.Publisher

	initOnce sync.Once
	closeMu  sync.Mutex
	closed   bool
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		if s.Locals == nil {
			s.Locals = locals.New()
		}
		if s.QUICConfig == nil {
			s.QUICConfig = &quic.Config{
				MaxIdleTimeout:  s.Config.idleTimeout(),
				KeepAlivePeriod: s.Config.keepAlive(),
				EnableDatagrams: true,
			}
		}
		dialer := &Dialer{TLSConfig: s.TLSConfig, QUICConfig: s.QUICConfig}
		s.remotes = remotes.New(s.Coordinator, dialer)
		s.peers = newPeerRegistry()
		s.status = newStatusHandler(s.Config.AnnounceURL != "")

		if s.Config.QLogDir != "" {
			dir, err := mlog.Open(s.Config.QLogDir)
			if err != nil {
				slog.Warn("qlog directory unavailable, disabling qlog", "error", err)
			} else {
				s.qlogDir = dir
			}
		}
		if s.Config.MLogDir != "" {
			dir, err := mlog.Open(s.Config.MLogDir)
			if err != nil {
				slog.Warn("mlog directory unavailable, disabling mlog", "error", err)
			} else {
				s.mlogDir = dir
			}
		}
	})
}

// DevMux returns the original's --dev web server surface: qlog/mlog
// files served by connection id when the corresponding *Serve flag is
// set, nil when Config.Dev is off. It serves no certificate fingerprint;
// cli.RunRelay mounts it on the admin mux.
func (s *Server) DevMux() *http.ServeMux {
	s.init()
	if !s.Config.Dev {
		return nil
	}
	mux := http.NewServeMux()
	if s.Config.QLogServe {
		mux.Handle("/qlog/", &mlog.Handler{Dir: s.qlogDir, Kind: "qlog"})
	}
	if s.Config.MLogServe {
		mux.Handle("/mlog/", &mlog.Handler{Dir: s.mlogDir, Kind: "mlog"})
	}
	return mux
}

// Status reports current health for the /healthz endpoint.
func (s *Server) Status() Status {
	s.init()
	return s.status.snapshot()
}

// StatusHandler exposes the /healthz http.Handler.
func (s *Server) StatusHandler() http.Handler {
	s.init()
	return s.status
}

// ListenAndServe starts the native QUIC listener and, if an announce
// forwarder is configured, the reconnecting forwarder session. It blocks
// until the listener errors or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.init()

	tlsConf := s.TLSConfig.Clone()
	tlsConf.NextProtos = []string{transport.NativeALPN, transport.WebTransportALPN}

	ln, err := quic.ListenAddr(s.Addr, tlsConf, s.QUICConfig)
	if err != nil {
		return fmt.Errorf("relay: listen %s: %w", s.Addr, err)
	}
	s.quicListener = ln

	if s.Config.AnnounceURL != "" {
		go s.runForwarder(context.Background())
	}

	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			s.closeMu.Lock()
			shuttingDown := s.closed
			s.closeMu.Unlock()
			if shuttingDown {
				return nil
			}
			return fmt.Errorf("relay: accept: %w", err)
		}
		go s.serve(context.Background(), transport.NewQUICConnection(conn), conn.RemoteAddr().String())
	}
}

// HandleWebTransport upgrades r to a WebTransport session and serves it.
// Registered on the HTTP/3 mux alongside the status/metrics endpoints.
func (s *Server) HandleWebTransport(w http.ResponseWriter, r *http.Request) error {
	s.init()
	if s.wtServer == nil {
		s.wtServer = &webtransport.Server{
			H3:          nil,
			CheckOrigin: s.CheckHTTPOrigin,
		}
	}
	sess, err := s.wtServer.Upgrade(w, r)
	if err != nil {
		return fmt.Errorf("relay: webtransport upgrade: %w", err)
	}
	go s.serve(r.Context(), transport.NewWebTransportConnection(sess), r.RemoteAddr)
	return nil
}

// serve completes the MoQ handshake on conn and runs the session until
// it ends, registering it with the peer registry and wiring its
// Publisher/Subscriber halves to Producer/Consumer for the duration.
func (s *Server) serve(ctx context.Context, conn session.Connection, remoteAddr string) {
	sess, err := session.Accept(ctx, conn)
	if err != nil {
		slog.Warn("moq handshake failed", "remote", remoteAddr, "error", err)
		return
	}

	id := s.peers.register(sess, remoteAddr)
	s.status.connected()
	defer func() {
		s.peers.deregister(id)
		s.status.disconnected()
	}()

	if s.qlogDir != nil {
		if f, err := s.qlogDir.Create(id, "qlog"); err != nil {
			slog.Warn("qlog create failed", "conn", id, "error", err)
		} else {
			defer f.Close()
		}
	}
	if s.mlogDir != nil {
		if f, err := s.mlogDir.Create(id, "mlog"); err != nil {
			slog.Warn("mlog create failed", "conn", id, "error", err)
		} else {
			defer f.Close()
		}
	}

	producer := &Producer{Locals: s.Locals, Remotes: s.remotes}
	consumer := &Consumer{Locals: s.Locals, Coordinator: s.Coordinator, Forward: s.forwardAnnounce}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.runProducer(sessCtx, sess.Publisher(), producer)
	go s.runConsumer(sessCtx, sess.Subscriber(), consumer)

	if err := sess.Run(sessCtx); err != nil {
		slog.Debug("session ended", "remote", remoteAddr, "error", err)
	}
}

func (s *Server) runProducer(ctx context.Context, pub *session.Publisher, p *Producer) {
	for {
		select {
		case <-ctx.Done():
			return
		case sub, ok := <-pub.Subscribed():
			if !ok {
				return
			}
			go p.Serve(ctx, pub, sub)
		case ts, ok := <-pub.TrackStatusRequested():
			if !ok {
				return
			}
			go p.ServeTrackStatus(ts)
		}
	}
}

func (s *Server) runConsumer(ctx context.Context, sub *session.Subscriber, c *Consumer) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-sub.Announced():
			if !ok {
				return
			}
			go c.Handle(ctx, sub, a)
		}
	}
}

// forwardAnnounce relays a locally-admitted announce to the upstream
// announce-forwarder, if one is connected.
func (s *Server) forwardAnnounce(tracks *track.TracksReader) {
	s.forwardMu.Lock()
	pub := s.forwardPublisher
	s.forwardMu.Unlock()
	if pub == nil {
		return
	}
	go func() {
		if err := pub.Announce(context.Background(), tracks); err != nil {
			slog.Warn("forward announce failed", "namespace", tracks.Namespace().Path(), "error", err)
		}
	}()
}

// runForwarder keeps a single outbound session to Config.AnnounceURL
// alive, reconnecting with backoff on failure, following relay.rs's
// forward-producer lifecycle.
func (s *Server) runForwarder(ctx context.Context) {
	target, err := url.Parse(s.Config.AnnounceURL)
	if err != nil {
		slog.Error("invalid announce url", "url", s.Config.AnnounceURL, "error", err)
		return
	}
	dialer := &Dialer{TLSConfig: s.TLSConfig, QUICConfig: s.QUICConfig}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sess, err := dialer.connectSession(ctx, target)
		if err != nil {
			slog.Warn("announce forwarder dial failed", "url", target, "error", err)
			wait := bo.NextBackOff()
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		s.status.setForwarderUp(true)

		s.forwardMu.Lock()
		s.forwardPublisher = sess.Publisher()
		s.forwardMu.Unlock()

		if err := sess.Run(ctx); err != nil {
			slog.Warn("announce forwarder session ended", "url", target, "error", err)
		}

		s.forwardMu.Lock()
		s.forwardPublisher = nil
		s.forwardMu.Unlock()
		s.status.setForwarderUp(false)
	}
}

// Shutdown stops accepting new connections and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()
	if s.quicListener != nil {
		return s.quicListener.Close()
	}
	return nil
}
