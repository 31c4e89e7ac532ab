package relay

import (
	"context"
	"log/slog"

	"github.com/moqtransport/relaycore/internal/coordinator"
	"github.com/moqtransport/relaycore/internal/locals"
	"github.com/moqtransport/relaycore/internal/session"
	"github.com/moqtransport/relaycore/internal/track"
)

// Consumer handles inbound PUBLISH_NAMESPACE from a connected publisher:
// it registers the namespace with the Coordinator and Locals, admits the
// announce, and forwards every track a local or remote subscriber asks
// for back to the originating publisher. Mirrors consumer.rs.
type Consumer struct {
	Locals      *locals.Locals
	Coordinator coordinator.Coordinator
	// Forward, when non-nil, is sent every announce this consumer
	// admits so it can be relayed to an upstream announce-forwarder.
	Forward func(ns *track.TracksReader)
}

// Handle processes one announce delivered on sub.Announced(). It blocks
// until the announce ends (PUBLISH_NAMESPACE_DONE or session close),
// releasing the Coordinator and Locals registrations on return.
func (c *Consumer) Handle(ctx context.Context, sub *session.Subscriber, a *session.Announced) {
	log := slog.With("namespace", a.Namespace.Path())

	coordReg, err := c.Coordinator.RegisterNamespace(ctx, a.Namespace)
	if err != nil {
		log.Warn("coordinator registration failed", "error", err)
		_ = a.Reject(0, "namespace already registered")
		return
	}

	tracksWriter, tracksReader := track.NewTracks(a.Namespace)

	localsReg, err := c.Locals.Register(tracksReader)
	if err != nil {
		log.Warn("locals registration failed", "error", err)
		_ = a.Reject(0, "namespace already registered")
		_ = coordReg.Close(ctx)
		return
	}

	if err := a.Accept(); err != nil {
		log.Warn("accept announce failed", "error", err)
		localsReg.Close()
		_ = coordReg.Close(ctx)
		return
	}
	log.Info("announce accepted")

	if c.Forward != nil {
		c.Forward(tracksReader)
	}

	forwardCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.forwardRequests(forwardCtx, sub, tracksWriter)

	select {
	case <-a.Done():
	case <-ctx.Done():
	}

	log.Info("announce ended")
	localsReg.Close()
	if err := coordReg.Close(context.Background()); err != nil {
		log.Warn("coordinator unregister failed", "error", err)
	}
	tracksWriter.Close(0, "announce ended")
}

// forwardRequests relays every locally/remotely requested track name
// back to the publisher that announced this namespace, via a genuine
// SUBSCRIBE on the same session.
func (c *Consumer) forwardRequests(ctx context.Context, sub *session.Subscriber, w *track.TracksWriter) {
	for trackWriter := range w.Requested() {
		go func(tw *track.TrackWriter) {
			if err := sub.Subscribe(ctx, tw); err != nil {
				slog.Debug("forward subscribe ended",
					"namespace", tw.Namespace().Path(), "track", tw.Name(), "error", err)
			}
		}(trackWriter)
	}
}
