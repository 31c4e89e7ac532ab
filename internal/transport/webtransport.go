package transport

import (
	"context"

	"github.com/moqtransport/relaycore/internal/session"
	"github.com/quic-go/webtransport-go"
)

// NewWebTransportConnection adapts a webtransport-go session (the
// browser-reachable `https://` ALPN path) to session.Connection. The
// shape of this adapter — one small wrapper type per stream direction —
// follows the teacher relay's webtransport.go bridge from gomoqt's
// abstract quic.Connection onto the same underlying library's concrete
// types.
func NewWebTransportConnection(sess *webtransport.Session) session.Connection {
	return wtConn{sess}
}

type wtConn struct{ sess *webtransport.Session }

func (c wtConn) AcceptStream(ctx context.Context) (session.Stream, error) {
	s, err := c.sess.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return wtStream{s}, nil
}

func (c wtConn) OpenStreamSync(ctx context.Context) (session.Stream, error) {
	s, err := c.sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return wtStream{s}, nil
}

func (c wtConn) AcceptUniStream(ctx context.Context) (session.ReceiveStream, error) {
	s, err := c.sess.AcceptUniStream(ctx)
	if err != nil {
		return nil, err
	}
	return wtRecvStream{s}, nil
}

func (c wtConn) OpenUniStreamSync(ctx context.Context) (session.SendStream, error) {
	s, err := c.sess.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return wtSendStream{s}, nil
}

func (c wtConn) SendDatagram(b []byte) error { return c.sess.SendDatagram(b) }

func (c wtConn) ReceiveDatagram(ctx context.Context) ([]byte, error) {
	return c.sess.ReceiveDatagram(ctx)
}

func (c wtConn) CloseWithError(code uint64, reason string) error {
	return c.sess.CloseWithError(webtransport.SessionErrorCode(code), reason)
}

func (c wtConn) Context() context.Context { return c.sess.Context() }

type wtStream struct{ webtransport.Stream }

func (s wtStream) CancelRead(code uint64) {
	s.Stream.CancelRead(webtransport.StreamErrorCode(code))
}
func (s wtStream) CancelWrite(code uint64) {
	s.Stream.CancelWrite(webtransport.StreamErrorCode(code))
}

type wtSendStream struct{ webtransport.SendStream }

func (s wtSendStream) CancelWrite(code uint64) {
	s.SendStream.CancelWrite(webtransport.StreamErrorCode(code))
}

type wtRecvStream struct{ webtransport.ReceiveStream }

func (s wtRecvStream) CancelRead(code uint64) {
	s.ReceiveStream.CancelRead(webtransport.StreamErrorCode(code))
}
