package topology

import "sort"

// Neighbor is one adjacency-list entry: the far router plus the interface
// and IP on each side of the link, seen from the local router.
type Neighbor struct {
	Router          string `json:"router"`
	LocalInterface  string `json:"local_interface"`
	LocalIP         string `json:"local_ip"`
	RemoteInterface string `json:"remote_interface"`
	RemoteIP        string `json:"remote_ip"`
}

// Graph is the undirected topology multigraph as an adjacency list keyed
// by router id. Parallel edges between a router pair are retained as
// separate entries. Neighbor lists are sorted (router id, then local and
// remote interface) so traversal order is deterministic.
type Graph struct {
	adjacency map[string][]Neighbor
}

// BuildGraph expands direct edges into both adjacency-list directions.
func BuildGraph(edges []DirectEdge) *Graph {
	g := &Graph{adjacency: make(map[string][]Neighbor)}
	for _, e := range edges {
		g.adjacency[e.LocalRouter] = append(g.adjacency[e.LocalRouter], Neighbor{
			Router:          e.RemoteRouter,
			LocalInterface:  e.LocalInterface,
			LocalIP:         e.LocalIP,
			RemoteInterface: e.RemoteInterface,
			RemoteIP:        e.RemoteIP,
		})
		g.adjacency[e.RemoteRouter] = append(g.adjacency[e.RemoteRouter], Neighbor{
			Router:          e.LocalRouter,
			LocalInterface:  e.RemoteInterface,
			LocalIP:         e.RemoteIP,
			RemoteInterface: e.LocalInterface,
			RemoteIP:        e.LocalIP,
		})
	}
	for _, neighbors := range g.adjacency {
		sort.Slice(neighbors, func(i, j int) bool {
			a, b := neighbors[i], neighbors[j]
			if a.Router != b.Router {
				return a.Router < b.Router
			}
			if a.LocalInterface != b.LocalInterface {
				return a.LocalInterface < b.LocalInterface
			}
			return a.RemoteInterface < b.RemoteInterface
		})
	}
	return g
}

// Routers returns all routers present in the graph, sorted.
func (g *Graph) Routers() []string {
	routers := make([]string, 0, len(g.adjacency))
	for r := range g.adjacency {
		routers = append(routers, r)
	}
	sort.Strings(routers)
	return routers
}

// Neighbors returns a router's adjacency list in sorted order.
func (g *Graph) Neighbors(router string) []Neighbor {
	return g.adjacency[router]
}

// NeighborRouters returns the distinct neighboring router ids, sorted.
// Parallel edges collapse to one entry.
func (g *Graph) NeighborRouters(router string) []string {
	var out []string
	last := ""
	for _, n := range g.adjacency[router] {
		if n.Router != last {
			out = append(out, n.Router)
			last = n.Router
		}
	}
	return out
}

// Edge returns the first edge between two routers in sorted adjacency
// order. With parallel links this choice is deliberate and documented:
// the lowest-sorting interface pair annotates the hop.
func (g *Graph) Edge(from, to string) (Neighbor, bool) {
	for _, n := range g.adjacency[from] {
		if n.Router == to {
			return n, true
		}
	}
	return Neighbor{}, false
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, neighbors := range g.adjacency {
		total += len(neighbors)
	}
	return total / 2
}
