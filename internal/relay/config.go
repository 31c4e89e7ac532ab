package relay

import "time"

// Config carries the orchestrator's per-node settings: identity used in
// diagnostics, and the tunables original_source's moq-relay-ietf exposes
// as CLI flags (--node, --announce, --qlog-dir, --mlog-dir).
type Config struct {
	// NodeID is this relay's externally-reachable URL, advertised to the
	// Coordinator as the origin for namespaces it serves locally.
	NodeID string

	// AnnounceURL, when set, is the upstream relay every local announce
	// is also forwarded to (the announce-forwarder from spec.md §4.7).
	AnnounceURL string

	// QLogDir and MLogDir name directories diagnostic per-connection
	// event logs are written to; empty disables the corresponding sink.
	QLogDir string
	MLogDir string

	// IdleTimeout and KeepAlive are the QUIC transport defaults named in
	// spec.md §6.
	IdleTimeout time.Duration
	KeepAlive   time.Duration

	// Dev enables Server.DevMux, which serves qlog/mlog files by
	// connection id when QLogServe/MLogServe are set. It does not expose
	// the certificate fingerprint and starts no listener of its own.
	Dev       bool
	QLogServe bool
	MLogServe bool
}

func (c *Config) idleTimeout() time.Duration {
	if c.IdleTimeout > 0 {
		return c.IdleTimeout
	}
	return 10 * time.Second
}

func (c *Config) keepAlive() time.Duration {
	if c.KeepAlive > 0 {
		return c.KeepAlive
	}
	return 4 * time.Second
}
