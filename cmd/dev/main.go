package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/internal/topology"
	"github.com/DrC0ns0le/net-topo/internal/topology/pathfind"
)

var (
	ribPath = flag.String("rib.path", "rib.json", "json dump of routing table entries")

	maxAlternates = flag.Int("max", pathfind.DefaultMaxAlternates, "maximum number of alternate paths")
)

// Offline path experiments against a captured routing table, without a
// running daemon.
func main() {

	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Println("usage: dev [-rib.path file] <src-ip> <dst-ip>")
		os.Exit(1)
	}

	data, err := os.ReadFile(*ribPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	var entries []rib.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		fmt.Printf("Error parsing %s: %v\n", *ribPath, err)
		os.Exit(1)
	}

	snap := topology.BuildSnapshot(entries)
	fmt.Printf("Loaded %d entries: %d routers, %d direct links, %d protocol links\n",
		len(entries), len(snap.Index.Routers()), len(snap.DirectEdges), len(snap.ProtocolEdges))

	result, err := pathfind.Find(snap, args[0], args[1], *maxAlternates)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d paths from %s to %s\n", len(result.All), args[0], args[1])
	for i, path := range result.All {
		fmt.Printf("Path %d: %s\n", i+1, strings.Join(path.Routers(), " -> "))
	}
}
