package session

import (
	"context"
	"io"
)

// Stream is a bidirectional QUIC stream: the control stream is opened
// exactly once per session and carries every control message for its
// lifetime.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	CancelRead(code uint64)
	CancelWrite(code uint64)
}

// SendStream is a unidirectional stream opened to carry one subgroup's
// objects to the peer.
type SendStream interface {
	io.Writer
	io.Closer
	CancelWrite(code uint64)
}

// ReceiveStream is a unidirectional stream accepted from the peer,
// carrying one subgroup's objects.
type ReceiveStream interface {
	io.Reader
	CancelRead(code uint64)
}

// Connection is the subset of quic-go's *quic.Conn and
// webtransport-go's *webtransport.Session this package needs.
// internal/transport wraps each concrete type in a small adapter that
// satisfies this interface, so the same session engine serves raw QUIC
// and WebTransport connections identically.
type Connection interface {
	AcceptStream(ctx context.Context) (Stream, error)
	OpenStreamSync(ctx context.Context) (Stream, error)
	AcceptUniStream(ctx context.Context) (ReceiveStream, error)
	OpenUniStreamSync(ctx context.Context) (SendStream, error)
	SendDatagram(b []byte) error
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	CloseWithError(code uint64, reason string) error
	Context() context.Context
}
