package session

import (
	"context"
	"fmt"

	"github.com/moqtransport/relaycore/internal/track"
	"github.com/moqtransport/relaycore/internal/wire"
)

// Publisher is the half of a session that announces namespaces to the
// peer and serves the SUBSCRIBE and TRACK_STATUS requests that follow.
type Publisher struct {
	session *Session

	subscribed  chan *Subscribed
	trackStatus chan *TrackStatusRequested
}

// Subscribed delivers every SUBSCRIBE the peer sends for a namespace
// this session has announced (or that the caller otherwise chooses to
// serve).
func (p *Publisher) Subscribed() <-chan *Subscribed { return p.subscribed }

// TrackStatusRequested delivers every TRACK_STATUS query the peer sends.
func (p *Publisher) TrackStatusRequested() <-chan *TrackStatusRequested {
	return p.trackStatus
}

// Announce sends PUBLISH_NAMESPACE for tracks' namespace and blocks
// until the peer acknowledges or rejects it.
func (p *Publisher) Announce(ctx context.Context, tracks *track.TracksReader) error {
	reqID := p.session.allocateRequestID()
	ch := make(chan announceResult, 1)
	p.session.pendingMu.Lock()
	p.session.pendingAnnounce[reqID] = ch
	p.session.pendingMu.Unlock()

	msg := wire.PublishNamespace{RequestID: reqID, Namespace: tracks.Namespace()}
	if err := p.session.sendControl(wire.MsgPublishNamespace, wire.SerializePublishNamespace(msg)); err != nil {
		p.session.pendingMu.Lock()
		delete(p.session.pendingAnnounce, reqID)
		p.session.pendingMu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.session.closed:
		return ErrClosed
	case result := <-ch:
		if result.err != nil {
			return fmt.Errorf("session: announce rejected: code=%d reason=%q", result.err.ErrorCode, result.err.ReasonPhrase)
		}
		return nil
	}
}

// ServeSubscribe answers s with SUBSCRIBE_OK and streams reader's
// objects to the peer as subgroup streams, one stream per group, until
// reader's channel closes or ctx is cancelled.
func (p *Publisher) ServeSubscribe(ctx context.Context, s *Subscribed, reader *track.TrackReader) error {
	alias := p.session.nextAlias.Add(1)

	ok := wire.SubscribeOk{RequestID: s.RequestID, TrackAlias: alias, Expires: 0, GroupOrder: s.GroupOrder}
	if err := p.session.sendControl(wire.MsgSubscribeOk, wire.SerializeSubscribeOk(ok)); err != nil {
		return err
	}

	var curStream SendStream
	var curGroup uint64
	var haveStream bool
	var prevObjectID uint64

	closeStream := func() {
		if haveStream {
			curStream.Close()
			haveStream = false
		}
	}
	defer closeStream()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obj, streamOpen := <-reader.Objects():
			if !streamOpen {
				return p.session.sendControl(wire.MsgPublishDone, wire.SerializePublishDone(wire.PublishDone{
					RequestID: s.RequestID, StatusCode: wire.ObjectStatusEndOfTrack, ReasonPhrase: "track ended",
				}))
			}
			if !haveStream || obj.GroupID != curGroup {
				closeStream()
				stream, err := p.session.conn.OpenUniStreamSync(ctx)
				if err != nil {
					return fmt.Errorf("session: open subgroup stream: %w", err)
				}
				if err := wire.WriteStreamHeaderSubgroup(stream, wire.StreamHeaderSubgroupMsg{
					TrackAlias: alias, GroupID: obj.GroupID, SubgroupID: obj.SubgroupID, Priority: s.Priority,
				}); err != nil {
					return fmt.Errorf("session: write subgroup header: %w", err)
				}
				curStream, curGroup, haveStream = stream, obj.GroupID, true
				prevObjectID = 0
			}
			if err := wire.WriteSubgroupObject(curStream, false, wire.SubgroupObject{
				ObjectID: obj.ObjectID, Status: obj.Status, Payload: obj.Payload,
			}, prevObjectID); err != nil {
				return fmt.Errorf("session: write object: %w", err)
			}
			prevObjectID = obj.ObjectID
		}
	}
}

// RejectSubscribe answers s with SUBSCRIBE_ERROR.
func (p *Publisher) RejectSubscribe(s *Subscribed, code uint64, reason string) error {
	return p.session.sendControl(wire.MsgSubscribeError, wire.SerializeSubscribeError(wire.SubscribeError{
		RequestID: s.RequestID, ErrorCode: code, ReasonPhrase: reason,
	}))
}
