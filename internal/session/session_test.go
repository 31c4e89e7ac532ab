package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/track"
	"github.com/moqtransport/relaycore/internal/wire"
)

// pipeStream adapts a net.Pipe half into the Stream interface for tests.
type pipeStream struct {
	net.Conn
}

func (p pipeStream) CancelRead(code uint64)  {}
func (p pipeStream) CancelWrite(code uint64) {}

type pipeSendStream struct {
	net.Conn
}

func (p pipeSendStream) CancelWrite(code uint64) {}

type pipeReceiveStream struct {
	net.Conn
}

func (p pipeReceiveStream) CancelRead(code uint64) {}

// fakeConn is an in-memory Connection for exercising the session engine
// without a real QUIC transport. Each side is wired to the other's
// channels by the test harness.
type fakeConn struct {
	ctx context.Context

	controlServer net.Conn
	controlClient net.Conn

	uniStreams chan net.Conn // streams this side should accept
	peer       *fakeConn     // where OpenUniStreamSync delivers to

	datagramsIn chan []byte
}

func newFakeConnPair(ctx context.Context) (client, server *fakeConn) {
	a, b := net.Pipe()
	client = &fakeConn{ctx: ctx, controlClient: a, uniStreams: make(chan net.Conn, 16), datagramsIn: make(chan []byte, 16)}
	server = &fakeConn{ctx: ctx, controlServer: b, uniStreams: make(chan net.Conn, 16), datagramsIn: make(chan []byte, 16)}
	client.peer = server
	server.peer = client
	return client, server
}

func (c *fakeConn) AcceptStream(ctx context.Context) (Stream, error) {
	if c.controlServer != nil {
		return pipeStream{c.controlServer}, nil
	}
	return pipeStream{c.controlClient}, nil
}

func (c *fakeConn) OpenStreamSync(ctx context.Context) (Stream, error) {
	if c.controlClient != nil {
		return pipeStream{c.controlClient}, nil
	}
	return pipeStream{c.controlServer}, nil
}

func (c *fakeConn) AcceptUniStream(ctx context.Context) (ReceiveStream, error) {
	select {
	case conn := <-c.uniStreams:
		return pipeReceiveStream{conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) OpenUniStreamSync(ctx context.Context) (SendStream, error) {
	a, b := net.Pipe()
	c.peer.uniStreams <- b
	return pipeSendStream{a}, nil
}

func (c *fakeConn) SendDatagram(b []byte) error {
	cp := append([]byte(nil), b...)
	select {
	case c.peer.datagramsIn <- cp:
		return nil
	default:
		return errors.New("fakeConn: datagram queue full")
	}
}

func (c *fakeConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.datagramsIn:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) CloseWithError(code uint64, reason string) error {
	if c.controlClient != nil {
		c.controlClient.Close()
	}
	if c.controlServer != nil {
		c.controlServer.Close()
	}
	return nil
}

func (c *fakeConn) Context() context.Context { return c.ctx }

func handshakePair(t *testing.T) (clientSess, serverSess *Session) {
	t.Helper()
	ctx := context.Background()
	client, server := newFakeConnPair(ctx)

	type result struct {
		sess *Session
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		s, err := Accept(ctx, server)
		serverCh <- result{s, err}
	}()
	go func() {
		s, err := Connect(ctx, client, "")
		clientCh <- result{s, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	if cr.err != nil {
		t.Fatalf("Connect: %v", cr.err)
	}
	if sr.err != nil {
		t.Fatalf("Accept: %v", sr.err)
	}
	return cr.sess, sr.sess
}

func TestHandshakeAssignsRequestIDParity(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	defer clientSess.Close()
	defer serverSess.Close()

	if got := clientSess.allocateRequestID(); got != 0 {
		t.Errorf("client first request id = %d, want 0", got)
	}
	if got := clientSess.allocateRequestID(); got != 2 {
		t.Errorf("client second request id = %d, want 2", got)
	}
	if got := serverSess.allocateRequestID(); got != 1 {
		t.Errorf("server first request id = %d, want 1", got)
	}
}

func TestHandshakeVersionMismatch(t *testing.T) {
	ctx := context.Background()
	client, server := newFakeConnPair(ctx)

	serverErrCh := make(chan error, 1)
	go func() {
		_, err := Accept(ctx, server)
		serverErrCh <- err
	}()

	control, err := client.OpenStreamSync(ctx)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	// Hand-craft a CLIENT_SETUP with an unsupported version to force the
	// server down the VersionError path.
	var buf bytes.Buffer
	buf.Write([]byte{1})          // 1 version
	buf.Write([]byte{0x7f, 0x01}) // version value, arbitrary unsupported
	buf.Write([]byte{1})          // 1 param
	buf.Write([]byte{0x02})       // ParamMaxRequestID
	buf.Write([]byte{50})         // value, single-byte varint
	payload := buf.Bytes()

	header := []byte{0x20, 0, byte(len(payload))}
	if _, err := control.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := control.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	select {
	case err := <-serverErrCh:
		var verr *VersionError
		if !errors.As(err, &verr) {
			t.Errorf("expected VersionError, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server handshake result")
	}
}

func TestAnnounceRoundTrip(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go clientSess.Run(ctx)
	go serverSess.Run(ctx)
	defer clientSess.Close()
	defer serverSess.Close()

	ns, err := namespace.New("org", "stream")
	if err != nil {
		t.Fatalf("namespace.New: %v", err)
	}
	_, tracksReader := track.NewTracks(ns)

	announceErrCh := make(chan error, 1)
	go func() {
		announceErrCh <- clientSess.Publisher().Announce(ctx, tracksReader)
	}()

	select {
	case a := <-serverSess.Subscriber().Announced():
		if !a.Namespace.Equal(ns) {
			t.Errorf("announced namespace = %v, want %v", a.Namespace, ns)
		}
		if err := a.Accept(); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for announce")
	}

	if err := <-announceErrCh; err != nil {
		t.Fatalf("Announce: %v", err)
	}
}

func TestSubscribeDeliversObjects(t *testing.T) {
	clientSess, serverSess := handshakePair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go clientSess.Run(ctx)
	go serverSess.Run(ctx)
	defer clientSess.Close()
	defer serverSess.Close()

	ns, err := namespace.New("org", "stream")
	if err != nil {
		t.Fatalf("namespace.New: %v", err)
	}

	// clientSess plays the publisher: it owns the content and serves
	// SUBSCRIBE by streaming from pubReader.
	pubWriter, pubReader := track.NewTrack(ns, "video")

	// serverSess plays the subscriber: it asks for the track and the
	// delivered objects land in subWriter, observed via subReader.
	subWriter, subReader := track.NewTrack(ns, "video")

	subDone := make(chan error, 1)
	subCtx, subCancel := context.WithTimeout(ctx, 3*time.Second)
	defer subCancel()
	go func() {
		subDone <- serverSess.Subscriber().Subscribe(subCtx, subWriter)
	}()

	select {
	case sub := <-clientSess.Publisher().Subscribed():
		if sub.TrackName != "video" {
			t.Errorf("track name = %q, want video", sub.TrackName)
		}
		go clientSess.Publisher().ServeSubscribe(subCtx, sub, pubReader)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscribe")
	}

	pubWriter.WriteObject(track.Object{GroupID: 1, ObjectID: 0, Payload: []byte("hello")})

	select {
	case obj := <-subReader.Objects():
		if string(obj.Payload) != "hello" {
			t.Errorf("payload = %q, want hello", obj.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivered object")
	}

	pubWriter.WriteObject(track.Object{GroupID: 1, ObjectID: 1, Status: wire.ObjectStatusEndOfTrack})
	subCancel()
	<-subDone
}

func TestWaitForAliasResolvesAfterLateRegister(t *testing.T) {
	s := newSession(nil, nil, 0, 0)

	type result struct {
		entry aliasEntry
		ok    bool
	}
	resCh := make(chan result, 1)
	go func() {
		entry, ok := s.waitForAlias(7)
		resCh <- result{entry, ok}
	}()

	// Give waitForAlias time to register itself as a waiter before the
	// alias is populated, reproducing a subgroup stream or datagram that
	// arrives before SUBSCRIBE_OK has been processed on the control stream.
	time.Sleep(20 * time.Millisecond)

	writer, _ := track.NewTrack(namespaceMust(t, "org", "stream"), "video")
	s.registerAlias(7, 3, writer)

	select {
	case res := <-resCh:
		if !res.ok {
			t.Fatal("waitForAlias: ok = false, want true")
		}
		if res.entry.requestID != 3 {
			t.Errorf("requestID = %d, want 3", res.entry.requestID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for waitForAlias to resolve")
	}
}

func TestWaitForAliasTimesOutOnMiss(t *testing.T) {
	s := newSession(nil, nil, 0, 0)

	start := time.Now()
	_, ok := s.waitForAlias(99)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("waitForAlias: ok = true, want false for an alias that never registers")
	}
	if elapsed < DefaultAliasWaitTime {
		t.Errorf("waitForAlias returned after %v, want at least %v", elapsed, DefaultAliasWaitTime)
	}
}

func namespaceMust(t *testing.T, fields ...string) namespace.Namespace {
	t.Helper()
	ns, err := namespace.New(fields...)
	if err != nil {
		t.Fatalf("namespace.New: %v", err)
	}
	return ns
}

var _ io.Closer = pipeStream{}
