package pathfind

import (
	"strings"

	"github.com/DrC0ns0le/net-topo/internal/topology"
)

// ConnectionDirect is the connection type reported for a transition with
// no recorded protocol adjacency.
const ConnectionDirect = "directly connected"

// Hop is one router's position in a computed path with its interface and
// address metadata.
type Hop struct {
	Router         string `json:"router_name"`
	EntryInterface string `json:"entry_interface,omitempty"`
	EntryIP        string `json:"entry_ip,omitempty"`
	ExitInterface  string `json:"exit_interface,omitempty"`
	ExitIP         string `json:"exit_ip,omitempty"`
	Loopback       string `json:"loopback,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
}

// Path is an ordered hop sequence from source to destination router.
type Path struct {
	Hops []Hop `json:"hops"`
}

// Routers returns the bare router sequence of the path.
func (p Path) Routers() []string {
	routers := make([]string, len(p.Hops))
	for i, h := range p.Hops {
		routers[i] = h.Router
	}
	return routers
}

type queryContext struct {
	snap     *topology.Snapshot
	srcIP    string
	srcIface string
}

// annotate enriches a router sequence into a full hop record set. Hop 0's
// entry fields describe the original query's source IP and interface, not
// a graph edge. Interior transitions take exit fields from the graph
// edge's local side and feed the same edge's remote side into the next
// hop's entry fields; with parallel links the first edge in sorted
// adjacency order is used. The connection type is the protocol adjacency
// between the pair when recorded, else "directly connected"; the last hop
// carries none.
func (q queryContext) annotate(routers []string) Path {
	hops := make([]Hop, len(routers))
	for i, router := range routers {
		hops[i].Router = router
		hops[i].Loopback = strings.Join(q.snap.Index.Loopbacks(router), ",")
	}

	hops[0].EntryInterface = q.srcIface
	hops[0].EntryIP = q.srcIP

	for i := 0; i < len(routers)-1; i++ {
		edge, ok := q.snap.Graph.Edge(routers[i], routers[i+1])
		if ok {
			hops[i].ExitInterface = edge.LocalInterface
			hops[i].ExitIP = edge.LocalIP
			hops[i+1].EntryInterface = edge.RemoteInterface
			hops[i+1].EntryIP = edge.RemoteIP
		}
		if protocol, ok := q.snap.ProtocolBetween(routers[i], routers[i+1]); ok {
			hops[i].ConnectionType = string(protocol)
		} else {
			hops[i].ConnectionType = ConnectionDirect
		}
	}

	return Path{Hops: hops}
}
