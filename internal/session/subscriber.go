package session

import (
	"context"
	"fmt"

	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/track"
	"github.com/moqtransport/relaycore/internal/wire"
)

// Subscriber is the half of a session that receives the peer's announced
// namespaces and sends SUBSCRIBE for the tracks it wants.
type Subscriber struct {
	session *Session

	announced chan *Announced
}

// Announced delivers every PUBLISH_NAMESPACE the peer sends.
func (s *Subscriber) Announced() <-chan *Announced { return s.announced }

// Subscribe sends SUBSCRIBE for (w.Namespace(), w.Name()) and, once the
// peer confirms it, copies every object the peer streams or sends as
// datagrams into w until the track ends, the peer rejects or ends the
// subscription, or ctx is cancelled. It satisfies the remotes.Session
// interface, letting a *Subscriber serve as the upstream half of a
// dialed origin connection.
func (s *Subscriber) Subscribe(ctx context.Context, w *track.TrackWriter) error {
	sess := s.session
	reqID := sess.allocateRequestID()

	ch := make(chan subscribeResult, 1)
	sess.pendingMu.Lock()
	sess.pendingSubscribe[reqID] = ch
	sess.pendingMu.Unlock()

	msg := wire.Subscribe{
		RequestID: reqID, Namespace: w.Namespace(), TrackName: w.Name(),
		Priority: 128, GroupOrder: wire.GroupOrderDefault, FilterType: wire.FilterNextGroupStart,
	}
	if err := sess.sendControl(wire.MsgSubscribe, wire.SerializeSubscribe(msg)); err != nil {
		sess.pendingMu.Lock()
		delete(sess.pendingSubscribe, reqID)
		sess.pendingMu.Unlock()
		return err
	}

	var result subscribeResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-sess.closed:
		return ErrClosed
	case result = <-ch:
	}
	if result.err != nil {
		return fmt.Errorf("session: subscribe rejected: code=%d reason=%q", result.err.ErrorCode, result.err.ReasonPhrase)
	}

	done := sess.registerAlias(result.ok.TrackAlias, reqID, w)
	defer sess.unregisterAlias(result.ok.TrackAlias)

	select {
	case <-ctx.Done():
		_ = sess.sendControl(wire.MsgUnsubscribe, wire.SerializeUnsubscribe(wire.Unsubscribe{RequestID: reqID}))
		return ctx.Err()
	case <-sess.closed:
		return ErrClosed
	case <-done:
		return nil
	}
}

// Close tears down the underlying session. Present so *Subscriber
// satisfies the remotes.Session interface on its own.
func (s *Subscriber) Close() error { return s.session.Close() }

// RequestTrackStatus sends TRACK_STATUS for (ns, name) without
// subscribing, for callers that only need to know whether a track
// currently exists.
func (s *Subscriber) RequestTrackStatus(ctx context.Context, ns namespace.Namespace, name string) error {
	reqID := s.session.allocateRequestID()
	msg := wire.TrackStatus{RequestID: reqID, Namespace: ns, TrackName: name}
	return s.session.sendControl(wire.MsgTrackStatus, wire.SerializeTrackStatus(msg))
}
