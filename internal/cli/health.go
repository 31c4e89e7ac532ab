package cli

import (
	"encoding/json"
	"net/http"

	"github.com/moqtransport/relaycore/internal/relay"
)

// healthHandler serves /healthz, supporting liveness/readiness probes
// via ?probe=live|ready alongside the default full-status body, the
// same three-shape contract mpisat-qumo's healthHandler exposes.
type healthHandler struct {
	statusFunc func() relay.Status
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Query().Get("probe") {
	case "live":
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})

	case "ready":
		status := h.statusFunc()
		ready := status.Status != "unhealthy"
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ready": ready})

	default:
		status := h.statusFunc()
		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if r.Method == http.MethodHead {
			return
		}
		json.NewEncoder(w).Encode(status)
	}
}
