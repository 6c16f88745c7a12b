package vif

import (
	"fmt"
	"io"
	"net/http"
	"sort"
)

// WriteStats writes Prometheus-text-exposition-format counters for
// every interface manager tracks. Exposed by cmd/vnddvpnd behind an
// optional debug listener (-debug-addr). No metrics client library is
// pulled in: the counters are already lock-free atomics, and the
// exposition format here is a dozen lines of fmt.Fprintf.
func (m *manager) WriteStats(w io.Writer) {
	m.mu.RLock()
	names := make([]string, 0, len(m.ifaces))
	for name := range m.ifaces {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		e, ok := m.lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "vnddvpn_rx_packets{interface=%q} %d\n", name, e.stats.RxPackets.Load())
		fmt.Fprintf(w, "vnddvpn_rx_bytes{interface=%q} %d\n", name, e.stats.RxBytes.Load())
		fmt.Fprintf(w, "vnddvpn_rx_dropped{interface=%q} %d\n", name, e.stats.RxDropped.Load())
		fmt.Fprintf(w, "vnddvpn_tx_packets{interface=%q} %d\n", name, e.stats.TxPackets.Load())
		fmt.Fprintf(w, "vnddvpn_tx_bytes{interface=%q} %d\n", name, e.stats.TxBytes.Load())
		fmt.Fprintf(w, "vnddvpn_tx_dropped{interface=%q} %d\n", name, e.stats.TxDropped.Load())
	}
}

// StatsHandler exposes WriteStats over HTTP. Adapters whose manager is
// reachable (both backends embed one) can use this directly as their
// /metrics handler.
type StatsHandler struct {
	m *manager
}

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	h.m.WriteStats(w)
}

// statsSource is implemented by every Adapter backend via its embedded
// *manager, letting NewStatsHandler stay platform-independent.
type statsSource interface {
	statsManager() *manager
}

// NewStatsHandler returns an http.Handler serving a's interface
// counters, or nil if a's backend does not expose a *manager.
func NewStatsHandler(a Adapter) http.Handler {
	if s, ok := a.(statsSource); ok {
		return StatsHandler{m: s.statsManager()}
	}
	return nil
}
