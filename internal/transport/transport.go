// Package transport adapts quic-go's raw QUIC connections and
// quic-go/webtransport-go's WebTransport sessions onto the session
// package's narrow Connection/Stream interfaces, so the same session
// engine serves both the native `moqt://` ALPN and browser WebTransport
// clients. Adapting rather than depending on the concrete types directly
// keeps internal/session free of a transport-library import and mirrors
// the bridging the teacher relay's webtransport.go does between gomoqt's
// abstract quic.Connection and the real quic-go/webtransport-go types.
package transport

import "fmt"

// NativeALPN and WebTransportALPN are offered during the QUIC/TLS
// handshake so a single listener can serve both transports, matching
// spec.md §6's two-ALPN requirement.
const (
	NativeALPN       = "moq-00"
	WebTransportALPN = "h3"
)

// SchemeFor reports which ALPN a dial URL scheme selects.
func SchemeFor(scheme string) (string, error) {
	switch scheme {
	case "https":
		return WebTransportALPN, nil
	case "moqt":
		return NativeALPN, nil
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", scheme)
	}
}
