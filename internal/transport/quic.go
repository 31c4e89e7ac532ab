package transport

import (
	"context"

	"github.com/moqtransport/relaycore/internal/session"
	"github.com/quic-go/quic-go"
)

// NewQUICConnection adapts a raw quic-go connection (the native `moqt://`
// ALPN path) to session.Connection.
func NewQUICConnection(conn quic.Connection) session.Connection {
	return quicConn{conn}
}

type quicConn struct{ conn quic.Connection }

func (c quicConn) AcceptStream(ctx context.Context) (session.Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return quicStream{s}, nil
}

func (c quicConn) OpenStreamSync(ctx context.Context) (session.Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return quicStream{s}, nil
}

func (c quicConn) AcceptUniStream(ctx context.Context) (session.ReceiveStream, error) {
	s, err := c.conn.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return quicRecvStream{s}, nil
}

func (c quicConn) OpenUniStreamSync(ctx context.Context) (session.SendStream, error) {
	s, err := c.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return quicSendStream{s}, nil
}

func (c quicConn) SendDatagram(b []byte) error { return c.conn.SendDatagram(b) }

func (c quicConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.conn.ReceiveDatagram(ctx)
}

func (c quicConn) CloseWithError(code uint64, reason string) error {
	return c.conn.CloseWithError(quic.ApplicationErrorCode(code), reason)
}

func (c quicConn) Context() context.Context { return c.conn.Context() }

type quicStream struct{ quic.Stream }

func (s quicStream) CancelRead(code uint64)  { s.Stream.CancelRead(quic.StreamErrorCode(code)) }
func (s quicStream) CancelWrite(code uint64) { s.Stream.CancelWrite(quic.StreamErrorCode(code)) }

type quicSendStream struct{ quic.SendStream }

func (s quicSendStream) CancelWrite(code uint64) {
	s.SendStream.CancelWrite(quic.StreamErrorCode(code))
}

type quicRecvStream struct{ quic.ReceiveStream }

func (s quicRecvStream) CancelRead(code uint64) {
	s.ReceiveStream.CancelRead(quic.StreamErrorCode(code))
}
