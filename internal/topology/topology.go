// Package topology builds the network topology from the normalized RIB:
// interface index, inferred adjacencies and the traversable graph, all
// held in an immutable snapshot swapped wholesale on refresh.
package topology

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	rebuildTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "network_topology_rebuild_total",
	})
	rebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "network_topology_rebuild_duration_microseconds",
		Buckets: prometheus.ExponentialBuckets(100, 4, 8),
	})
	routerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "network_topology_routers",
	})
	directEdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "network_topology_direct_edges",
	})
	protocolEdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "network_topology_protocol_edges",
	})
	ribEntryCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "network_topology_rib_entries",
	})
)

// Snapshot is one immutable build of the topology. Queries operate on a
// snapshot and are never affected by a concurrent rebuild.
type Snapshot struct {
	BuiltAt time.Time

	Index         *Index
	DirectEdges   []DirectEdge
	ProtocolEdges []ProtocolEdge
	Graph         *Graph

	protocols ProtocolEdgeSet
	entries   int
}

// BuildSnapshot runs the full inference pipeline over a RIB snapshot.
// Pure: identical input yields an identical topology.
func BuildSnapshot(entries []rib.Entry) *Snapshot {
	idx := BuildIndex(entries)
	direct := InferDirectEdges(idx)
	protocol := InferProtocolEdges(entries, idx)

	return &Snapshot{
		BuiltAt:       time.Now(),
		Index:         idx,
		DirectEdges:   direct,
		ProtocolEdges: protocol,
		Graph:         BuildGraph(direct),
		protocols:     NewProtocolEdgeSet(protocol),
		entries:       len(entries),
	}
}

// ProtocolBetween returns the control-plane adjacency between two
// routers, if one was inferred.
func (s *Snapshot) ProtocolBetween(a, b string) (rib.Protocol, bool) {
	return s.protocols.Between(a, b)
}

// EntryCount returns the number of RIB rows the snapshot was built from.
func (s *Snapshot) EntryCount() int {
	return s.entries
}

// Manager owns the current snapshot. Refresh rebuilds from the RIB store
// and swaps under the write lock; Current hands out the snapshot under
// the read lock, so refresh and query never interleave mid-build.
type Manager struct {
	rib    *rib.Store
	logger logging.Logger

	mu       sync.RWMutex
	updateMu sync.Mutex
	current  *Snapshot
}

func NewManager(store *rib.Store, logger logging.Logger) *Manager {
	return &Manager{
		rib:     store,
		logger:  logger,
		current: BuildSnapshot(nil),
	}
}

// Refresh rebuilds the topology from the current RIB store contents and
// swaps it in. The build runs outside the read lock; only the pointer
// swap blocks queries. Returns the new snapshot.
func (m *Manager) Refresh() *Snapshot {
	m.updateMu.Lock()
	defer m.updateMu.Unlock()

	start := time.Now()
	snap := BuildSnapshot(m.rib.Snapshot())

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	rebuildTotal.Inc()
	rebuildDuration.Observe(float64(time.Since(start).Microseconds()))
	routerCount.Set(float64(len(snap.Index.Routers())))
	directEdgeCount.Set(float64(len(snap.DirectEdges)))
	protocolEdgeCount.Set(float64(len(snap.ProtocolEdges)))
	ribEntryCount.Set(float64(snap.EntryCount()))

	m.logger.Debugf("topology rebuilt: %d routers, %d direct edges, %d protocol edges in %v",
		len(snap.Index.Routers()), len(snap.DirectEdges), len(snap.ProtocolEdges), time.Since(start))
	return snap
}

// Current returns the latest snapshot.
func (m *Manager) Current() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Run refreshes the topology whenever the collectors signal a RIB change,
// until stopCh closes. An initial refresh runs immediately.
func (m *Manager) Run(stopCh <-chan struct{}, updateCh <-chan struct{}) {
	m.Refresh()
	for {
		select {
		case <-stopCh:
			return
		case <-updateCh:
			m.Refresh()
		}
	}
}
