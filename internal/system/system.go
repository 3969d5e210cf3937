// Package system holds the shared daemon state handed to each subsystem.
package system

import (
	"github.com/DrC0ns0le/net-topo/internal/config"
	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/internal/rib/collect"
	"github.com/DrC0ns0le/net-topo/internal/topology"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

type Node struct {
	StopCh chan struct{}

	// TopoUpdateCh is signalled by the collectors whenever a router's
	// RIB changed; the topology manager rebuilds on it.
	TopoUpdateCh chan struct{}

	Config *config.Config

	RIB      *rib.Store
	Topology *topology.Manager
	Prober   *collect.Prober

	Logger logging.Logger
}
