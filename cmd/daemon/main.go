package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrC0ns0le/net-topo/internal/config"
	"github.com/DrC0ns0le/net-topo/internal/metrics"
	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/internal/rib/collect"
	"github.com/DrC0ns0le/net-topo/internal/rib/sqlite"
	"github.com/DrC0ns0le/net-topo/internal/server"
	"github.com/DrC0ns0le/net-topo/internal/system"
	"github.com/DrC0ns0le/net-topo/internal/topology"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	configPath = flag.String("config.path", "inventory.yaml", "path to the device inventory file")

	updateChBufSize = flag.Int("topology.updatech", 1, "channel buffer size for topology rebuild signals")
)

func main() {

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Errorf("failed to load inventory: %v", err)
		os.Exit(1)
	}

	node := &system.Node{
		StopCh:       make(chan struct{}),
		TopoUpdateCh: make(chan struct{}, *updateChBufSize),

		Config: cfg,
		RIB:    rib.NewStore(),

		Logger: logging.NewDefaultLogger(),
	}

	node.Logger.Infof("starting net-topo daemon with %d devices", len(cfg.Devices))

	node.Topology = topology.NewManager(node.RIB, node.Logger)

	// seed the RIB from the last persisted state so the topology is
	// usable before the first collection round completes
	var backend *sqlite.Backend
	if cfg.DBPath != "" {
		backend, err = sqlite.New(cfg.DBPath)
		if err != nil {
			node.Logger.Fatalf("failed to open rib database: %v", err)
		}
		defer backend.Close()

		entries, err := backend.Load()
		if err != nil {
			node.Logger.Fatalf("failed to load persisted rib: %v", err)
		}
		node.RIB.ReplaceAll(entries)
		node.Logger.Infof("restored %d rib entries from %s", len(entries), cfg.DBPath)
	}

	collector, err := collect.NewCollector(cfg, node.RIB, backend, node.TopoUpdateCh, node.Logger)
	if err != nil {
		node.Logger.Fatalf("failed to build collectors: %v", err)
	}

	node.Prober = collect.NewProber(cfg.Devices, cfg.ProbeInterval, node.Logger)

	// start metrics server
	go metrics.Serve()

	// topology manager rebuilds on collection changes
	go node.Topology.Run(node.StopCh, node.TopoUpdateCh)

	// poll device routing tables
	go collector.Run(node.StopCh)

	// device reachability probes
	go node.Prober.Run(node.StopCh)

	// http api for the dashboard
	api := server.NewHTTPServer(node)
	go func() {
		if err := api.Start(); err != nil {
			node.Logger.Errorf("http api server stopped: %v", err)
		}
	}()

	// wait for termination signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	close(node.StopCh)
	if err := api.Stop(); err != nil {
		node.Logger.Errorf("failed to stop http api server: %v", err)
	}
}
