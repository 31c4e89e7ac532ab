package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moqtransport/relaycore/internal/session"
)

// peerInfo is diagnostic metadata about one connected session, surfaced
// through the status endpoint.
type peerInfo struct {
	ID          string
	RemoteAddr  string
	ConnectedAt time.Time
	sess        *session.Session
}

// peerRegistry tracks every currently-connected session. Grounded on the
// teacher relay's peer registry: same register/deregister/list/count
// shape, keyed by a random id rather than a monotonic counter since
// peers can churn across many orchestrator goroutines without a shared
// sequence point.
type peerRegistry struct {
	mu    sync.RWMutex
	peers map[string]*peerInfo
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{peers: make(map[string]*peerInfo)}
}

func (r *peerRegistry) register(sess *session.Session, remoteAddr string) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.peers[id] = &peerInfo{ID: id, RemoteAddr: remoteAddr, ConnectedAt: time.Now(), sess: sess}
	r.mu.Unlock()
	return id
}

func (r *peerRegistry) deregister(id string) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

func (r *peerRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *peerRegistry) list() []peerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]peerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, peerInfo{ID: p.ID, RemoteAddr: p.RemoteAddr, ConnectedAt: p.ConnectedAt})
	}
	return out
}
