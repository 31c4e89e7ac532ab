package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/moqtransport/relaycore/internal/locals"
	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/remotes"
	"github.com/moqtransport/relaycore/internal/session"
	"github.com/moqtransport/relaycore/internal/track"
	"github.com/moqtransport/relaycore/internal/wire"
)

// errTrackNotFound is returned by resolve when neither Locals nor Remotes
// can serve the requested (namespace, name).
var errTrackNotFound = errors.New("relay: track not found")

// Producer answers a connection's inbound SUBSCRIBE and TRACK_STATUS
// requests, consulting Locals before Remotes, mirroring producer.rs's
// lookup order.
type Producer struct {
	Locals *locals.Locals
	// Remotes is nil on a relay configured without cluster fan-out; a
	// local miss then falls straight to NotFound.
	Remotes *remotes.Remotes
}

// Serve answers one SUBSCRIBE delivered on pub.Subscribed(), streaming
// the resolved track until it ends or ctx is cancelled.
func (p *Producer) Serve(ctx context.Context, pub *session.Publisher, s *session.Subscribed) {
	reader, release, err := p.resolve(ctx, s.Namespace, s.TrackName)
	if err != nil {
		slog.Warn("subscribe resolution failed",
			"namespace", s.Namespace.Path(), "track", s.TrackName, "error", err)
		if rejErr := pub.RejectSubscribe(s, wire.SubscribeErrorTrackNotFound, "track not found"); rejErr != nil {
			slog.Warn("reject subscribe failed", "error", rejErr)
		}
		return
	}
	defer release()

	if err := pub.ServeSubscribe(ctx, s, reader); err != nil {
		slog.Debug("serve subscribe ended",
			"namespace", s.Namespace.Path(), "track", s.TrackName, "error", err)
	}
}

// ServeTrackStatus answers one TRACK_STATUS request against Locals only;
// remote track status is not implemented (relay spec §4.5).
func (p *Producer) ServeTrackStatus(t *session.TrackStatusRequested) {
	tracks := p.Locals.Retrieve(t.Namespace)
	if tracks == nil {
		slog.Debug("track status miss", "namespace", t.Namespace.Path(), "track", t.TrackName)
		if err := t.RespondNotFound(); err != nil {
			slog.Warn("track status not-found reply failed", "error", err)
		}
		return
	}
	reader, err := tracks.Subscribe(t.TrackName)
	if err != nil {
		if err := t.RespondNotFound(); err != nil {
			slog.Warn("track status not-found reply failed", "error", err)
		}
		return
	}
	reader.Close()
	if err := t.RespondOK(wire.TrackStatusInProgress); err != nil {
		slog.Warn("track status reply failed", "error", err)
	}
}

// resolve finds a reader for (ns, name), trying the local registry first
// and falling back to a remote origin. The returned release func must be
// called once the caller is done with reader.
func (p *Producer) resolve(ctx context.Context, ns namespace.Namespace, name string) (*track.TrackReader, func(), error) {
	if tracks := p.Locals.Retrieve(ns); tracks != nil {
		reader, err := tracks.Subscribe(name)
		if err != nil {
			return nil, nil, err
		}
		return reader, reader.Close, nil
	}

	if p.Remotes == nil {
		return nil, nil, errTrackNotFound
	}

	consumer, err := p.Remotes.Route(ctx, ns)
	if err != nil {
		return nil, nil, err
	}
	reader, err := consumer.Subscribe(ns, name)
	if err != nil {
		return nil, nil, err
	}
	return reader, func() {
		consumer.Release(ns, name)
		reader.Close()
	}, nil
}
