package topology

import (
	"sort"
	"strings"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/netutil"
)

// DirectEdge is an inferred physical or logical link between two routers
// whose interfaces share a subnet. One edge is emitted per unordered
// router pair and interface pair; the graph builder expands it into both
// directions.
type DirectEdge struct {
	LocalRouter     string `json:"source_router"`
	LocalInterface  string `json:"source_interface"`
	LocalIP         string `json:"source_ip"`
	RemoteInterface string `json:"dest_interface"`
	RemoteIP        string `json:"dest_ip"`
	RemoteRouter    string `json:"dest_router"`
	Network         string `json:"network"`
}

// ProtocolEdge is an inferred control-plane adjacency between two routers,
// deduplicated by unordered pair and protocol.
type ProtocolEdge struct {
	RouterA  string       `json:"router_a"`
	RouterB  string       `json:"router_b"`
	Protocol rib.Protocol `json:"protocol"`
}

func (e ProtocolEdge) pairKey() string {
	a, b := e.RouterA, e.RouterB
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b + "\x00" + string(e.Protocol)
}

// InferDirectEdges correlates every pair of non-loopback interfaces on
// distinct routers and links the routers when the interfaces' networks
// are equal. Interfaces with an unknown subnet (host route only) do not
// correlate. Three or more interfaces on one broadcast subnet yield a
// full sub-clique; each pairing is tested independently.
func InferDirectEdges(idx *Index) []DirectEdge {
	routers := idx.Routers()
	var edges []DirectEdge
	for i, a := range routers {
		for _, ifaceA := range idx.Interfaces(a) {
			if ifaceA.IsLoopback() || ifaceA.MaskLen >= 32 {
				continue
			}
			netA := ifaceA.Network()
			if netA == "" {
				continue
			}
			for _, b := range routers[i+1:] {
				for _, ifaceB := range idx.Interfaces(b) {
					if ifaceB.IsLoopback() || ifaceB.MaskLen >= 32 {
						continue
					}
					if netA != ifaceB.Network() {
						continue
					}
					edges = append(edges, DirectEdge{
						LocalRouter:     a,
						LocalInterface:  ifaceA.Name,
						LocalIP:         ifaceA.IP,
						RemoteInterface: ifaceB.Name,
						RemoteIP:        ifaceB.IP,
						RemoteRouter:    b,
						Network:         netA,
					})
				}
			}
		}
	}
	return edges
}

// InferProtocolEdges derives control-plane adjacencies from RIB rows whose
// protocol is dynamic and that point through a real gateway; dynamic rows
// with a directly-connected or absent next hop are locally originated and
// witness no neighbor. The row's destination is resolved to another known
// router via the interface index, by exact host match first and address
// containment otherwise; rows whose destination resolves to no router are
// foreign networks and dropped. At most one edge exists per unordered
// router pair and protocol, regardless of how many times or from which
// side the adjacency was observed.
func InferProtocolEdges(entries []rib.Entry, idx *Index) []ProtocolEdge {
	seen := make(map[string]struct{})
	var edges []ProtocolEdge
	for _, e := range entries {
		if !e.Protocol.IsDynamic() || !e.HasNextHop() {
			continue
		}
		remote := resolveDestination(e.Destination, idx)
		if remote == "" || remote == e.Router {
			continue
		}
		edge := ProtocolEdge{RouterA: e.Router, RouterB: remote, Protocol: e.Protocol}
		if _, ok := seen[edge.pairKey()]; ok {
			continue
		}
		seen[edge.pairKey()] = struct{}{}
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].pairKey() < edges[j].pairKey() })
	return edges
}

// resolveDestination maps a destination prefix to the router owning an
// interface address it matches or contains. Returns "" for foreign
// networks. Containment scanning walks bindings in index order so the
// result is stable for a given index.
func resolveDestination(destination string, idx *Index) string {
	host := destination
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if iface, ok := idx.Lookup(host); ok {
		return iface.Router
	}
	for _, iface := range idx.All() {
		if netutil.CIDRContains(destination, iface.IP) {
			return iface.Router
		}
	}
	return ""
}

// ProtocolEdgeSet indexes protocol edges by unordered router pair for the
// hop annotator.
type ProtocolEdgeSet map[string]rib.Protocol

func NewProtocolEdgeSet(edges []ProtocolEdge) ProtocolEdgeSet {
	set := make(ProtocolEdgeSet, len(edges))
	for _, e := range edges {
		key := unorderedKey(e.RouterA, e.RouterB)
		if _, ok := set[key]; !ok {
			set[key] = e.Protocol
		}
	}
	return set
}

// Between returns the protocol adjacency between two routers, if any.
func (s ProtocolEdgeSet) Between(a, b string) (rib.Protocol, bool) {
	p, ok := s[unorderedKey(a, b)]
	return p, ok
}

func unorderedKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}
