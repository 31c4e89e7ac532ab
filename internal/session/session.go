// Package session implements the MoQ Transport session engine: the
// SETUP handshake, the control-message dispatch loop, and the
// unidirectional-stream and datagram object delivery paths that run
// concurrently for the lifetime of one QUIC or WebTransport connection.
package session

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moqtransport/relaycore/internal/track"
	"github.com/moqtransport/relaycore/internal/wire"
	"github.com/quic-go/quic-go/quicvarint"
	"golang.org/x/sync/errgroup"
)

const outgoingBuffer = 256

// DefaultAliasWaitTime bounds how long an incoming subgroup stream or
// datagram waits for its track_alias to appear in the alias map before
// SUBSCRIBE_OK on the control stream has had a chance to register it.
const DefaultAliasWaitTime = 1000 * time.Millisecond

type controlMsg struct {
	typ     uint64
	payload []byte
}

type subscribeResult struct {
	ok  wire.SubscribeOk
	err *wire.SubscribeError
}

type announceResult struct {
	err *wire.PublishNamespaceError
}

// Session drives one MoQ Transport connection: it owns the control
// stream, dispatches incoming messages to whichever role (Publisher,
// Subscriber, or both) the connection was established with, and routes
// unidirectional-stream and datagram objects to the track each was
// subscribed for.
type Session struct {
	conn          Connection
	control       Stream
	controlReader *bufio.Reader
	outgoing      chan controlMsg

	nextRequestID atomic.Uint64
	maxRequestID  uint64

	publisher  *Publisher
	subscriber *Subscriber

	pendingMu        sync.Mutex
	pendingSubscribe map[uint64]chan subscribeResult
	pendingAnnounce  map[uint64]chan announceResult
	announceDone     map[uint64]chan struct{}

	aliasMu          sync.Mutex
	aliasToWriter    map[uint64]aliasEntry
	requestIDToAlias map[uint64]uint64
	aliasWaiters     map[uint64][]chan aliasEntry
	nextAlias        atomic.Uint64

	goAway chan string

	closeOnce sync.Once
	closed    chan struct{}

	log *slog.Logger
}

type aliasEntry struct {
	writer    *track.TrackWriter
	requestID uint64
	done      chan struct{}
}

// Publisher returns the half of the session that serves SUBSCRIBE and
// TRACK_STATUS requests from the peer and sends PUBLISH_NAMESPACE to it.
func (s *Session) Publisher() *Publisher { return s.publisher }

// Subscriber returns the half of the session that receives
// PUBLISH_NAMESPACE from the peer and sends SUBSCRIBE to it.
func (s *Session) Subscriber() *Subscriber { return s.subscriber }

// GoAway signals a peer-initiated or self-initiated graceful shutdown,
// carrying the optional redirect URI (empty when none was given).
func (s *Session) GoAway() <-chan string { return s.goAway }

func newSession(conn Connection, control Stream, firstRequestID, maxRequestID uint64) *Session {
	s := &Session{
		conn:             conn,
		control:          control,
		controlReader:    bufio.NewReader(control),
		outgoing:         make(chan controlMsg, outgoingBuffer),
		maxRequestID:     maxRequestID,
		pendingSubscribe: make(map[uint64]chan subscribeResult),
		pendingAnnounce:  make(map[uint64]chan announceResult),
		announceDone:     make(map[uint64]chan struct{}),
		aliasToWriter:    make(map[uint64]aliasEntry),
		requestIDToAlias: make(map[uint64]uint64),
		aliasWaiters:     make(map[uint64][]chan aliasEntry),
		goAway:           make(chan string, 1),
		closed:           make(chan struct{}),
		log:              slog.With("component", "moq-session"),
	}
	s.nextRequestID.Store(firstRequestID)
	s.publisher = &Publisher{session: s, subscribed: make(chan *Subscribed, 32), trackStatus: make(chan *TrackStatusRequested, 32)}
	s.subscriber = &Subscriber{session: s, announced: make(chan *Announced, 32)}
	return s
}

func (s *Session) allocateRequestID() uint64 {
	return s.nextRequestID.Add(2) - 2
}

// Connect dials the client half of the handshake: it opens the control
// stream, sends CLIENT_SETUP, and waits for SERVER_SETUP. path is sent
// as the WebTransport/HTTP path setup parameter when non-empty.
func Connect(ctx context.Context, conn Connection, path string) (*Session, error) {
	control, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: open control stream: %w", err)
	}

	cs := wire.ClientSetup{
		Versions:     []uint64{wire.Version},
		MaxRequestID: 100,
		Path:         path,
		HasPath:      path != "",
	}
	if err := wire.WriteControlMsg(control, wire.MsgClientSetup, wire.SerializeClientSetup(cs)); err != nil {
		return nil, fmt.Errorf("session: send CLIENT_SETUP: %w", err)
	}

	typ, payload, err := wire.ReadControlMsg(control)
	if err != nil {
		return nil, fmt.Errorf("session: read SERVER_SETUP: %w", err)
	}
	if typ != wire.MsgServerSetup {
		return nil, fmt.Errorf("session: expected SERVER_SETUP, got message type %#x", typ)
	}
	ss, err := wire.ParseServerSetup(payload)
	if err != nil {
		return nil, err
	}
	if ss.SelectedVersion != wire.Version {
		return nil, &VersionError{ClientVersions: cs.Versions, ServerVersions: []uint64{ss.SelectedVersion}}
	}

	return newSession(conn, control, 0, ss.MaxRequestID), nil
}

// Accept dials the server half of the handshake: it accepts the control
// stream, reads CLIENT_SETUP, and replies with SERVER_SETUP if a
// mutually supported version exists.
func Accept(ctx context.Context, conn Connection) (*Session, error) {
	control, err := conn.AcceptStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: accept control stream: %w", err)
	}

	typ, payload, err := wire.ReadControlMsg(control)
	if err != nil {
		return nil, fmt.Errorf("session: read CLIENT_SETUP: %w", err)
	}
	if typ != wire.MsgClientSetup {
		return nil, fmt.Errorf("session: expected CLIENT_SETUP, got message type %#x", typ)
	}
	cs, err := wire.ParseClientSetup(payload)
	if err != nil {
		return nil, err
	}

	selected, ok := selectVersion(cs.Versions)
	if !ok {
		return nil, &VersionError{ClientVersions: cs.Versions, ServerVersions: []uint64{wire.Version}}
	}

	ss := wire.ServerSetup{SelectedVersion: selected, MaxRequestID: 100}
	if err := wire.WriteControlMsg(control, wire.MsgServerSetup, wire.SerializeServerSetup(ss)); err != nil {
		return nil, fmt.Errorf("session: send SERVER_SETUP: %w", err)
	}

	return newSession(conn, control, 1, cs.MaxRequestID), nil
}

func selectVersion(clientVersions []uint64) (uint64, bool) {
	for _, v := range clientVersions {
		if v == wire.Version {
			return v, true
		}
	}
	return 0, false
}

// Run drives the session's four concurrent tasks until one fails or ctx
// is cancelled: sending queued control messages, receiving and
// dispatching control messages, accepting unidirectional media streams,
// and receiving datagrams.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runSend(ctx) })
	g.Go(func() error { return s.runRecv(ctx) })
	g.Go(func() error { return s.runStreams(ctx) })
	g.Go(func() error { return s.runDatagrams(ctx) })

	err := g.Wait()
	s.Close()
	return err
}

// Close releases the session's resources. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		close(s.outgoing)
		s.pendingMu.Lock()
		for id, done := range s.announceDone {
			signalDone(done)
			delete(s.announceDone, id)
		}
		s.pendingMu.Unlock()
		s.conn.CloseWithError(0, "session closed")
	})
	return nil
}

func (s *Session) sendControl(typ uint64, payload []byte) error {
	select {
	case <-s.closed:
		return ErrClosed
	case s.outgoing <- controlMsg{typ: typ, payload: payload}:
		return nil
	}
}

func (s *Session) runSend(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-s.outgoing:
			if !ok {
				return nil
			}
			if err := wire.WriteControlMsg(s.control, msg.typ, msg.payload); err != nil {
				return fmt.Errorf("session: write control message: %w", err)
			}
		}
	}
}

func (s *Session) runRecv(ctx context.Context) error {
	for {
		typ, payload, err := wire.ReadControlMsg(s.controlReader)
		if err != nil {
			return fmt.Errorf("session: read control message: %w", err)
		}
		if err := s.dispatch(typ, payload); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *Session) dispatch(typ uint64, payload []byte) error {
	switch typ {
	case wire.MsgSubscribe:
		return s.handleSubscribe(payload)
	case wire.MsgSubscribeOk:
		return s.handleSubscribeOk(payload)
	case wire.MsgSubscribeError:
		return s.handleSubscribeError(payload)
	case wire.MsgUnsubscribe:
		return s.handleUnsubscribe(payload)
	case wire.MsgPublishNamespace:
		return s.handlePublishNamespace(payload)
	case wire.MsgPublishNamespaceOk:
		return s.handlePublishNamespaceOk(payload)
	case wire.MsgPublishNamespaceError:
		return s.handlePublishNamespaceError(payload)
	case wire.MsgPublishNamespaceDone:
		return s.handlePublishNamespaceDone(payload)
	case wire.MsgPublishDone:
		return s.handlePublishDone(payload)
	case wire.MsgTrackStatus:
		return s.handleTrackStatus(payload)
	case wire.MsgTrackStatusOk:
		return nil // advisory; no correlated waiter implemented
	case wire.MsgGoAway:
		return s.handleGoAway(payload)
	case wire.MsgFetch, wire.MsgFetchCancel, wire.MsgSubscribeNamespace, wire.MsgPublish:
		return ErrUnimplemented
	default:
		s.log.Warn("ignoring unrecognized control message", "type", typ)
		return nil
	}
}

func (s *Session) handleSubscribe(payload []byte) error {
	sub, err := wire.ParseSubscribe(payload)
	if err != nil {
		return err
	}
	if s.publisher == nil {
		return ErrRoleViolation
	}
	s.publisher.subscribed <- &Subscribed{
		RequestID: sub.RequestID, Namespace: sub.Namespace, TrackName: sub.TrackName,
		Priority: sub.Priority, GroupOrder: sub.GroupOrder, session: s,
	}
	return nil
}

func (s *Session) handleSubscribeOk(payload []byte) error {
	ok, err := wire.ParseSubscribeOk(payload)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	ch, found := s.pendingSubscribe[ok.RequestID]
	delete(s.pendingSubscribe, ok.RequestID)
	s.pendingMu.Unlock()
	if found {
		ch <- subscribeResult{ok: ok}
	}
	return nil
}

func (s *Session) handleSubscribeError(payload []byte) error {
	se, err := wire.ParseSubscribeError(payload)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	ch, found := s.pendingSubscribe[se.RequestID]
	delete(s.pendingSubscribe, se.RequestID)
	s.pendingMu.Unlock()
	if found {
		ch <- subscribeResult{err: &se}
	}
	return nil
}

func (s *Session) handleUnsubscribe(payload []byte) error {
	_, err := wire.ParseUnsubscribe(payload)
	return err
}

func (s *Session) handlePublishNamespace(payload []byte) error {
	pn, err := wire.ParsePublishNamespace(payload)
	if err != nil {
		return err
	}
	if s.subscriber == nil {
		return ErrRoleViolation
	}
	done := make(chan struct{})
	s.pendingMu.Lock()
	s.announceDone[pn.RequestID] = done
	s.pendingMu.Unlock()
	s.subscriber.announced <- &Announced{RequestID: pn.RequestID, Namespace: pn.Namespace, session: s, done: done}
	return nil
}

func (s *Session) handlePublishNamespaceOk(payload []byte) error {
	ok, err := wire.ParsePublishNamespaceOk(payload)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	ch, found := s.pendingAnnounce[ok.RequestID]
	delete(s.pendingAnnounce, ok.RequestID)
	s.pendingMu.Unlock()
	if found {
		ch <- announceResult{}
	}
	return nil
}

func (s *Session) handlePublishNamespaceError(payload []byte) error {
	pe, err := wire.ParsePublishNamespaceError(payload)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	ch, found := s.pendingAnnounce[pe.RequestID]
	delete(s.pendingAnnounce, pe.RequestID)
	s.pendingMu.Unlock()
	if found {
		ch <- announceResult{err: &pe}
	}
	return nil
}

func (s *Session) handlePublishNamespaceDone(payload []byte) error {
	pd, err := wire.ParsePublishNamespaceDone(payload)
	if err != nil {
		return err
	}
	s.pendingMu.Lock()
	done, ok := s.announceDone[pd.RequestID]
	delete(s.announceDone, pd.RequestID)
	s.pendingMu.Unlock()
	if ok {
		signalDone(done)
	}
	return nil
}

func (s *Session) handlePublishDone(payload []byte) error {
	pd, err := wire.ParsePublishDone(payload)
	if err != nil {
		return err
	}
	s.aliasMu.Lock()
	alias, ok := s.requestIDToAlias[pd.RequestID]
	var entry aliasEntry
	if ok {
		entry, ok = s.aliasToWriter[alias]
	}
	s.aliasMu.Unlock()
	if !ok {
		return nil
	}
	entry.writer.Close(pd.StatusCode, pd.ReasonPhrase)
	signalDone(entry.done)
	return nil
}

func signalDone(done chan struct{}) {
	select {
	case <-done:
	default:
		close(done)
	}
}

func (s *Session) handleTrackStatus(payload []byte) error {
	ts, err := wire.ParseTrackStatus(payload)
	if err != nil {
		return err
	}
	if s.publisher == nil {
		return ErrRoleViolation
	}
	s.publisher.trackStatus <- &TrackStatusRequested{
		RequestID: ts.RequestID, Namespace: ts.Namespace, TrackName: ts.TrackName, session: s,
	}
	return nil
}

func (s *Session) handleGoAway(payload []byte) error {
	ga, err := wire.ParseGoAway(payload)
	if err != nil {
		return err
	}
	select {
	case s.goAway <- ga.NewSessionURI:
	default:
	}
	return nil
}

func (s *Session) runStreams(ctx context.Context) error {
	for {
		rs, err := s.conn.AcceptUniStream(ctx)
		if err != nil {
			return fmt.Errorf("session: accept uni stream: %w", err)
		}
		go func() {
			if err := s.serveIncomingStream(rs); err != nil {
				s.log.Warn("incoming stream ended with error", "error", err)
			}
		}()
	}
}

func (s *Session) serveIncomingStream(rs ReceiveStream) error {
	br := bufio.NewReader(rs)
	streamType, err := quicvarint.Read(br)
	if err != nil {
		return fmt.Errorf("session: read stream header type: %w", err)
	}
	if streamType != wire.StreamHeaderSubgroup {
		return fmt.Errorf("session: unsupported stream header type %#x", streamType)
	}
	header, err := wire.ReadStreamHeaderSubgroup(br)
	if err != nil {
		return err
	}

	entry, ok := s.waitForAlias(header.TrackAlias)
	if !ok {
		return fmt.Errorf("session: no subscription for track alias %d", header.TrackAlias)
	}

	var prevObjectID uint64
	for {
		obj, err := wire.ReadSubgroupObject(br, false, prevObjectID)
		if err != nil {
			return err
		}
		prevObjectID = obj.ObjectID
		obj.GroupID = header.GroupID
		entry.writer.WriteObject(track.Object{
			GroupID: header.GroupID, SubgroupID: header.SubgroupID,
			ObjectID: obj.ObjectID, Status: obj.Status, Payload: obj.Payload,
		})
		if obj.Status == wire.ObjectStatusEndOfTrack {
			entry.writer.Close(obj.Status, "end of track")
			signalDone(entry.done)
			return nil
		}
	}
}

func (s *Session) runDatagrams(ctx context.Context) error {
	for {
		data, err := s.conn.ReceiveDatagram(ctx)
		if err != nil {
			return fmt.Errorf("session: receive datagram: %w", err)
		}
		d, err := wire.DecodeDatagram(data)
		if err != nil {
			s.log.Warn("dropping malformed datagram", "error", err)
			continue
		}
		// The alias wait can take up to DefaultAliasWaitTime, so it runs
		// off the receive loop to avoid stalling datagrams for other
		// already-subscribed tracks behind it.
		go s.dispatchDatagram(d)
	}
}

func (s *Session) dispatchDatagram(d wire.DatagramObject) {
	entry, ok := s.waitForAlias(d.TrackAlias)
	if !ok {
		s.log.Warn("dropping datagram for unknown track alias", "alias", d.TrackAlias)
		return
	}
	entry.writer.WriteObject(track.Object{
		GroupID: d.GroupID, ObjectID: d.ObjectID, Status: d.Status, Payload: d.Payload,
	})
	if d.Status == wire.ObjectStatusEndOfTrack {
		entry.writer.Close(d.Status, "end of track")
		signalDone(entry.done)
	}
}

func (s *Session) registerAlias(alias, requestID uint64, w *track.TrackWriter) chan struct{} {
	done := make(chan struct{})
	entry := aliasEntry{writer: w, requestID: requestID, done: done}

	s.aliasMu.Lock()
	s.aliasToWriter[alias] = entry
	s.requestIDToAlias[requestID] = alias
	waiters := s.aliasWaiters[alias]
	delete(s.aliasWaiters, alias)
	s.aliasMu.Unlock()

	for _, ch := range waiters {
		ch <- entry
	}
	return done
}

func (s *Session) unregisterAlias(alias uint64) {
	s.aliasMu.Lock()
	if entry, ok := s.aliasToWriter[alias]; ok {
		delete(s.requestIDToAlias, entry.requestID)
	}
	delete(s.aliasToWriter, alias)
	s.aliasMu.Unlock()
}

// waitForAlias resolves alias to its registered track writer, waiting up
// to DefaultAliasWaitTime for a concurrent SUBSCRIBE_OK to call
// registerAlias when the object stream or datagram carrying alias
// arrives before the control stream has processed it (the alias race in
// spec §4.1). Returns false if the wait times out or the session closes
// first.
func (s *Session) waitForAlias(alias uint64) (aliasEntry, bool) {
	s.aliasMu.Lock()
	if e, ok := s.aliasToWriter[alias]; ok {
		s.aliasMu.Unlock()
		return e, true
	}
	ch := make(chan aliasEntry, 1)
	s.aliasWaiters[alias] = append(s.aliasWaiters[alias], ch)
	s.aliasMu.Unlock()

	timer := time.NewTimer(DefaultAliasWaitTime)
	defer timer.Stop()

	select {
	case e := <-ch:
		return e, true
	case <-timer.C:
		s.removeAliasWaiter(alias, ch)
		return aliasEntry{}, false
	case <-s.closed:
		s.removeAliasWaiter(alias, ch)
		return aliasEntry{}, false
	}
}

func (s *Session) removeAliasWaiter(alias uint64, ch chan aliasEntry) {
	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()
	waiters := s.aliasWaiters[alias]
	for i, c := range waiters {
		if c == ch {
			s.aliasWaiters[alias] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(s.aliasWaiters[alias]) == 0 {
		delete(s.aliasWaiters, alias)
	}
}
