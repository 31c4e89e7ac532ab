package relay

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"

	"github.com/moqtransport/relaycore/internal/remotes"
	"github.com/moqtransport/relaycore/internal/session"
	"github.com/moqtransport/relaycore/internal/transport"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// Dialer establishes outbound sessions to origin relays for the Remotes
// manager, choosing the native QUIC or WebTransport transport by the
// origin URL's scheme (`moqt://` vs `https://`), per spec.md §6.
type Dialer struct {
	TLSConfig  *tls.Config
	QUICConfig *quic.Config
}

// Dial implements remotes.Dialer.
func (d *Dialer) Dial(ctx context.Context, target *url.URL) (remotes.Session, error) {
	sess, err := d.connectSession(ctx, target)
	if err != nil {
		return nil, err
	}
	return sess.Subscriber(), nil
}

// connectSession performs the transport dial and MoQ handshake, returning
// the full session so callers needing both halves (the announce
// forwarder needs Publisher(), Remotes needs only Subscriber()) can pick.
func (d *Dialer) connectSession(ctx context.Context, target *url.URL) (*session.Session, error) {
	switch target.Scheme {
	case "https":
		return d.dialWebTransport(ctx, target)
	case "moqt", "":
		return d.dialNative(ctx, target)
	default:
		return nil, fmt.Errorf("relay: unsupported origin scheme %q", target.Scheme)
	}
}

func (d *Dialer) dialNative(ctx context.Context, target *url.URL) (*session.Session, error) {
	tlsConf := d.TLSConfig.Clone()
	tlsConf.NextProtos = []string{transport.NativeALPN}

	conn, err := quic.DialAddr(ctx, target.Host, tlsConf, d.QUICConfig)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", target, err)
	}
	sess, err := session.Connect(ctx, transport.NewQUICConnection(conn), target.Path)
	if err != nil {
		return nil, fmt.Errorf("relay: handshake with %s: %w", target, err)
	}
	return sess, nil
}

func (d *Dialer) dialWebTransport(ctx context.Context, target *url.URL) (*session.Session, error) {
	dialer := &webtransport.Dialer{
		TLSClientConfig: d.TLSConfig,
		QUICConfig:      d.QUICConfig,
	}
	_, wtSess, err := dialer.Dial(ctx, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("relay: webtransport dial %s: %w", target, err)
	}
	sess, err := session.Connect(ctx, transport.NewWebTransportConnection(wtSess), target.Path)
	if err != nil {
		return nil, fmt.Errorf("relay: handshake with %s: %w", target, err)
	}
	return sess, nil
}
