// Package pathfind computes hop-annotated paths between two endpoint IPs
// over a topology snapshot.
package pathfind

import (
	"container/heap"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DrC0ns0le/net-topo/internal/topology"
)

// DefaultMaxAlternates bounds alternate-path enumeration when the caller
// does not say otherwise. Enumeration is exponential on cyclic graphs;
// the cap keeps it usable.
const DefaultMaxAlternates = 10

var pathQueries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "network_path_queries_total",
}, []string{"result"})

// Result is the outcome of one path query: the shortest path, the bounded
// set of alternate simple paths, and the two combined in discovery order.
type Result struct {
	SourceIP      string `json:"source_ip"`
	DestinationIP string `json:"destination_ip"`
	Primary       *Path  `json:"primary"`
	Alternates    []Path `json:"alternates"`
	All           []Path `json:"all"`
}

// Find resolves both endpoint IPs through the snapshot's interface index
// and enumerates simple paths between the owning routers in hop-count
// order. The first path found is the primary; up to maxAlternates further
// distinct simple paths follow. Zero asks for the primary alone; a
// negative value selects the default.
func Find(snap *topology.Snapshot, srcIP, dstIP string, maxAlternates int) (*Result, error) {
	if maxAlternates < 0 {
		maxAlternates = DefaultMaxAlternates
	}

	src, ok := snap.Index.Lookup(srcIP)
	if !ok {
		pathQueries.WithLabelValues("endpoint_not_found").Inc()
		return nil, fmt.Errorf("source %s: %w", srcIP, topology.ErrEndpointNotFound)
	}
	dst, ok := snap.Index.Lookup(dstIP)
	if !ok {
		pathQueries.WithLabelValues("endpoint_not_found").Inc()
		return nil, fmt.Errorf("destination %s: %w", dstIP, topology.ErrEndpointNotFound)
	}

	query := queryContext{
		snap:     snap,
		srcIP:    srcIP,
		srcIface: src.Name,
	}

	if src.Router == dst.Router {
		// Source and destination sit on the same router: a single-node
		// path with no transitions.
		p := query.annotate([]string{src.Router})
		pathQueries.WithLabelValues("ok").Inc()
		return &Result{
			SourceIP:      srcIP,
			DestinationIP: dstIP,
			Primary:       &p,
			All:           []Path{p},
		}, nil
	}

	sequences := enumerate(snap.Graph, src.Router, dst.Router, maxAlternates+1)
	if len(sequences) == 0 {
		pathQueries.WithLabelValues("no_path").Inc()
		return nil, fmt.Errorf("%s -> %s: %w", srcIP, dstIP, topology.ErrNoPath)
	}

	result := &Result{SourceIP: srcIP, DestinationIP: dstIP}
	for i, seq := range sequences {
		p := query.annotate(seq)
		result.All = append(result.All, p)
		if i == 0 {
			result.Primary = &p
		} else {
			result.Alternates = append(result.Alternates, p)
		}
	}
	pathQueries.WithLabelValues("ok").Inc()
	return result, nil
}

// candidate is one partial path under expansion.
type candidate struct {
	routers []string
	cost    int
}

func (c *candidate) key() string {
	return strings.Join(c.routers, "\x00")
}

// pathQueue orders candidates by hop count, then lexicographically by
// router sequence so equal-cost ties break deterministically.
type pathQueue []*candidate

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].cost != pq[j].cost {
		return pq[i].cost < pq[j].cost
	}
	a, b := pq[i].routers, pq[j].routers
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return len(a) < len(b)
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
}

func (pq *pathQueue) Push(x interface{}) {
	*pq = append(*pq, x.(*candidate))
}

func (pq *pathQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[0 : n-1]
	return item
}

// enumerate returns up to max simple paths from start to end, ordered by
// hop count. Visited state is keyed by the whole path prefix, not by
// node, so a router is never revisited within one candidate but distinct
// candidates may cross the same router. The first returned path has
// minimum hop count.
func enumerate(g *topology.Graph, start, end string, max int) [][]string {
	var results [][]string
	visited := make(map[string]bool)

	pq := make(pathQueue, 0)
	heap.Init(&pq)
	heap.Push(&pq, &candidate{routers: []string{start}})

	for pq.Len() > 0 && len(results) < max {
		current := heap.Pop(&pq).(*candidate)
		last := current.routers[len(current.routers)-1]

		if last == end {
			results = append(results, current.routers)
			continue
		}

		for _, neighbor := range g.NeighborRouters(last) {
			if containsRouter(current.routers, neighbor) {
				continue
			}
			next := &candidate{
				routers: append(append([]string{}, current.routers...), neighbor),
				cost:    current.cost + 1,
			}
			if !visited[next.key()] {
				visited[next.key()] = true
				heap.Push(&pq, next)
			}
		}
	}

	return results
}

func containsRouter(routers []string, router string) bool {
	for _, r := range routers {
		if r == router {
			return true
		}
	}
	return false
}
