package relay

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/moqtransport/relaycore/internal/coordinator"
	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/session"
)

// pipeStream adapts a net.Pipe half into session.Stream for tests,
// following the harness session_test.go uses to exercise the engine
// without a real QUIC transport.
type pipeStream struct{ net.Conn }

func (p pipeStream) CancelRead(code uint64)  {}
func (p pipeStream) CancelWrite(code uint64) {}

type pipeSendStream struct{ net.Conn }

func (p pipeSendStream) CancelWrite(code uint64) {}

type pipeReceiveStream struct{ net.Conn }

func (p pipeReceiveStream) CancelRead(code uint64) {}

type fakeConn struct {
	ctx context.Context

	controlServer net.Conn
	controlClient net.Conn

	uniStreams chan net.Conn
	peer       *fakeConn

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

func (c *fakeConn) AcceptStream(ctx context.Context) (session.Stream, error) {
	if c.controlServer != nil {
		return pipeStream{c.controlServer}, nil
	}
	return pipeStream{c.controlClient}, nil
}

func (c *fakeConn) OpenStreamSync(ctx context.Context) (session.Stream, error) {
	if c.controlClient != nil {
		return pipeStream{c.controlClient}, nil
	}
	return pipeStream{c.controlServer}, nil
}

func (c *fakeConn) AcceptUniStream(ctx context.Context) (session.ReceiveStream, error) {
	select {
	case conn := <-c.uniStreams:
		return pipeReceiveStream{conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) OpenUniStreamSync(ctx context.Context) (session.SendStream, error) {
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

// handshakePair runs a full CLIENT_SETUP/SERVER_SETUP exchange over an
// in-memory pipe and returns both session halves.
func handshakePair(t *testing.T) (clientSess, serverSess *session.Session) {
	t.Helper()
	ctx := context.Background()
	client, server := newFakeConnPair(ctx)

	type result struct {
		sess *session.Session
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		s, err := session.Accept(ctx, server)
		serverCh <- result{s, err}
	}()
	go func() {
		s, err := session.Connect(ctx, client, "")
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

// fakeCoordinator is an in-memory Coordinator for tests that never
// routes to a remote origin.
type fakeCoordinator struct{}

func (fakeCoordinator) RegisterNamespace(ctx context.Context, ns namespace.Namespace) (coordinator.Registration, error) {
	return noopRegistration{}, nil
}
func (fakeCoordinator) UnregisterNamespace(ctx context.Context, ns namespace.Namespace) error {
	return nil
}
func (fakeCoordinator) Lookup(ctx context.Context, ns namespace.Namespace) (coordinator.Origin, error) {
	return coordinator.Origin{}, coordinator.ErrNamespaceNotFound
}
func (fakeCoordinator) Shutdown(ctx context.Context) error { return nil }

type noopRegistration struct{}

func (noopRegistration) Close(ctx context.Context) error { return nil }
