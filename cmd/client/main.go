package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DrC0ns0le/net-topo/internal/rib/collect"
	"github.com/DrC0ns0le/net-topo/internal/topology"
	"github.com/DrC0ns0le/net-topo/internal/topology/pathfind"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	daemonURL = flag.String("daemon.url", "http://localhost:8080", "base url of the topology daemon api")

	src = flag.String("src", "", "source ip for a path query")
	dst = flag.String("dst", "", "destination ip for a path query")
	max = flag.Int("max", -1, "maximum number of alternate paths, negative for the daemon default")

	showTopology = flag.Bool("t", false, "show the topology adjacency")
	showDevices  = flag.Bool("d", false, "show device reachability")
)

func main() {

	flag.Parse()

	switch {
	case *showTopology:
		printTopology()
	case *showDevices:
		printDevices()
	case *src != "" && *dst != "":
		printPaths()
	default:
		fmt.Println("usage: client [-t | -d | -src <ip> -dst <ip> [-max n]]")
		os.Exit(1)
	}
}

func get(path string, query url.Values, out interface{}) {
	u := *daemonURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Get(u)
	if err != nil {
		logging.Errorf("request failed: %v", err)
		os.Exit(1)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = res.Status
		}
		logging.Errorf("daemon: %s", apiErr.Error)
		os.Exit(1)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		logging.Errorf("decoding response: %v", err)
		os.Exit(1)
	}
}

func printPaths() {
	query := url.Values{}
	query.Set("src", *src)
	query.Set("dst", *dst)
	if *max >= 0 {
		query.Set("max", strconv.Itoa(*max))
	}

	var result pathfind.Result
	get("/api/paths", query, &result)

	for i, path := range result.All {
		label := "Primary"
		if i > 0 {
			label = fmt.Sprintf("Alternate %d", i)
		}
		fmt.Printf("%s: %s\n", label, strings.Join(path.Routers(), " -> "))
		for _, hop := range path.Hops {
			fmt.Printf("  %-12s in %s (%s)  out %s (%s)  %s\n",
				hop.Router, hop.EntryInterface, hop.EntryIP,
				hop.ExitInterface, hop.ExitIP, hop.ConnectionType)
		}
	}
}

func printTopology() {
	var topo struct {
		BuiltAt time.Time `json:"built_at"`
		Nodes   []struct {
			Router    string   `json:"router"`
			Loopbacks []string `json:"loopbacks"`
			Degree    int      `json:"degree"`
		} `json:"nodes"`
		DirectEdges   []topology.DirectEdge   `json:"direct_links"`
		ProtocolEdges []topology.ProtocolEdge `json:"protocol_links"`
	}
	get("/api/topology", nil, &topo)

	fmt.Printf("Topology built at %s\n\n", topo.BuiltAt.Format(time.RFC3339))
	for _, node := range topo.Nodes {
		fmt.Printf("%-12s degree %d  loopbacks %s\n",
			node.Router, node.Degree, strings.Join(node.Loopbacks, ","))
	}
	fmt.Println()
	for _, edge := range topo.DirectEdges {
		fmt.Printf("%s[%s] <-> %s[%s]  %s\n",
			edge.LocalRouter, edge.LocalInterface,
			edge.RemoteRouter, edge.RemoteInterface, edge.Network)
	}
	for _, edge := range topo.ProtocolEdges {
		fmt.Printf("%s <-> %s  %s\n", edge.RouterA, edge.RouterB, edge.Protocol)
	}
}

func printDevices() {
	var devices []collect.DeviceStatus
	get("/api/devices", nil, &devices)

	for _, device := range devices {
		state := "down"
		if device.Reachable {
			state = "up"
		}
		fmt.Printf("%-12s %-16s %-4s rtt %s\n", device.Router, device.Host, state, device.RTT)
	}
}
