package session

import (
	"errors"
	"fmt"

	"github.com/moqtransport/relaycore/internal/namespace"
	"github.com/moqtransport/relaycore/internal/wire"
)

// ErrRoleViolation is returned when a message intended for a role the
// session doesn't have (e.g. a SUBSCRIBE arriving on a session with no
// publisher half) is received.
var ErrRoleViolation = errors.New("session: message received for unassigned role")

// ErrUnimplemented is returned when a peer requests a feature this core
// does not implement (FETCH, SUBSCRIBE_NAMESPACE, PUBLISH).
var ErrUnimplemented = errors.New("session: unimplemented message type")

// ErrClosed is returned by operations attempted after the session has
// shut down.
var ErrClosed = errors.New("session: closed")

// VersionError is returned when client and server share no common
// protocol version during the SETUP handshake.
type VersionError struct {
	ClientVersions []uint64
	ServerVersions []uint64
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("session: no common version: client=%v server=%v", e.ClientVersions, e.ServerVersions)
}

// Announced is delivered to a Subscriber's Announced channel when the
// peer sends PUBLISH_NAMESPACE.
type Announced struct {
	RequestID uint64
	Namespace namespace.Namespace

	session *Session
	done    chan struct{}
}

// Accept sends PUBLISH_NAMESPACE_OK, admitting the announce.
func (a *Announced) Accept() error {
	return a.session.sendControl(wire.MsgPublishNamespaceOk, wire.SerializePublishNamespaceOk(wire.PublishNamespaceOk{RequestID: a.RequestID}))
}

// Done reports the announce's end: the peer sent PUBLISH_NAMESPACE_DONE,
// or the session closed. The caller should release any Coordinator/Locals
// registrations made for this announce once it fires.
func (a *Announced) Done() <-chan struct{} { return a.done }

// Reject sends PUBLISH_NAMESPACE_ERROR, refusing the announce.
func (a *Announced) Reject(code uint64, reason string) error {
	return a.session.sendControl(wire.MsgPublishNamespaceError, wire.SerializePublishNamespaceError(wire.PublishNamespaceError{
		RequestID: a.RequestID, ErrorCode: code, ReasonPhrase: reason,
	}))
}

// Subscribed is delivered to a Publisher's Subscribed channel when the
// peer sends SUBSCRIBE, asking this session to serve a track.
type Subscribed struct {
	RequestID  uint64
	Namespace  namespace.Namespace
	TrackName  string
	Priority   byte
	GroupOrder byte

	session *Session
}

// TrackStatusRequested is delivered to a Publisher's TrackStatusRequested
// channel when the peer sends TRACK_STATUS.
type TrackStatusRequested struct {
	RequestID uint64
	Namespace namespace.Namespace
	TrackName string

	session *Session
}

// RespondOK answers a track-status query with a found status code.
func (t *TrackStatusRequested) RespondOK(statusCode uint64) error {
	return t.session.sendControl(wire.MsgTrackStatusOk, wire.SerializeTrackStatusOk(wire.TrackStatusOk{
		RequestID: t.RequestID, StatusCode: statusCode,
	}))
}

// RespondNotFound answers a track-status query for a track this relay
// doesn't serve, carrying TrackStatusNotFound rather than leaving the
// peer's request unanswered.
func (t *TrackStatusRequested) RespondNotFound() error {
	return t.RespondOK(wire.TrackStatusNotFound)
}
