// Package server exposes the topology and routing state over HTTP for
// the dashboard frontend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/internal/rib/collect"
	"github.com/DrC0ns0le/net-topo/internal/system"
	"github.com/DrC0ns0le/net-topo/internal/topology"
	"github.com/DrC0ns0le/net-topo/internal/topology/pathfind"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	apiPort = flag.Int("api.port", 8080, "port for the HTTP API server")
)

type HTTPServer struct {
	listenAddress string
	server        *http.Server
	logger        logging.Logger

	ribStore *rib.Store
	topo     *topology.Manager
	prober   *collect.Prober

	maxAlternates int
	topoUpdateCh  chan struct{}
}

func NewHTTPServer(global *system.Node) *HTTPServer {
	return &HTTPServer{
		listenAddress: ":" + strconv.Itoa(*apiPort),
		logger:        global.Logger,
		ribStore:      global.RIB,
		topo:          global.Topology,
		prober:        global.Prober,
		maxAlternates: global.Config.MaxAlternates,
		topoUpdateCh:  global.TopoUpdateCh,
	}
}

func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.listenAddress,
		Handler: s.Handler(),
	}

	s.logger.Infof("http api server running on %s", s.listenAddress)
	return s.server.ListenAndServe()
}

func (s *HTTPServer) Stop() error {
	s.logger.Infof("stopping http api server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler returns the route tree without starting a listener.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/topology", s.handleTopology)
	r.Get("/api/paths", s.handlePaths)
	r.Get("/api/rib", s.handleRIB)
	r.Get("/api/rib/{router}", s.handleRouterRIB)
	r.Post("/api/rib/{router}", s.handleRIBIngest)
	r.Delete("/api/rib/{router}", s.handleRIBRemove)
	r.Get("/api/devices", s.handleDevices)
	return r
}

// Handlers

type topologyNode struct {
	Router    string   `json:"router"`
	Loopbacks []string `json:"loopbacks"`
	Degree    int      `json:"degree"`
}

type topologyResponse struct {
	BuiltAt       time.Time               `json:"built_at"`
	Nodes         []topologyNode          `json:"nodes"`
	DirectEdges   []topology.DirectEdge   `json:"direct_links"`
	ProtocolEdges []topology.ProtocolEdge `json:"protocol_links"`
	Devices       []collect.DeviceStatus  `json:"devices,omitempty"`
}

func (s *HTTPServer) handleTopology(w http.ResponseWriter, r *http.Request) {
	snap := s.topo.Current()

	nodes := make([]topologyNode, 0)
	for _, router := range snap.Index.Routers() {
		loopbacks := snap.Index.Loopbacks(router)
		if loopbacks == nil {
			loopbacks = []string{}
		}
		nodes = append(nodes, topologyNode{
			Router:    router,
			Loopbacks: loopbacks,
			Degree:    len(snap.Graph.NeighborRouters(router)),
		})
	}

	resp := topologyResponse{
		BuiltAt:       snap.BuiltAt,
		Nodes:         nodes,
		DirectEdges:   snap.DirectEdges,
		ProtocolEdges: snap.ProtocolEdges,
	}
	if s.prober != nil {
		resp.Devices = s.prober.Statuses()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handlePaths(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	dst := r.URL.Query().Get("dst")
	if src == "" || dst == "" {
		writeError(w, http.StatusBadRequest, "src and dst query parameters are required")
		return
	}

	maxAlternates := s.maxAlternates
	if raw := r.URL.Query().Get("max"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "max must be a non-negative integer")
			return
		}
		maxAlternates = parsed
	}

	result, err := pathfind.Find(s.topo.Current(), src, dst, maxAlternates)
	if err != nil {
		switch {
		case errors.Is(err, topology.ErrEndpointNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, topology.ErrNoPath):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleRIB(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ribStore.Snapshot())
}

func (s *HTTPServer) handleRouterRIB(w http.ResponseWriter, r *http.Request) {
	router := chi.URLParam(r, "router")
	entries := s.ribStore.Router(router)
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "unknown router "+router)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRIBIngest accepts a full routing table for one router, replacing
// whatever was previously known. This is the push path for devices the
// daemon cannot poll itself.
func (s *HTTPServer) handleRIBIngest(w http.ResponseWriter, r *http.Request) {
	router := chi.URLParam(r, "router")

	var entries []rib.Entry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		writeError(w, http.StatusBadRequest, "invalid routing table payload: "+err.Error())
		return
	}
	for i := range entries {
		if entries[i].Router == "" {
			entries[i].Router = router
		}
		if entries[i].Router != router {
			writeError(w, http.StatusBadRequest, "entry router does not match URL router")
			return
		}
		if entries[i].Destination == "" || entries[i].Protocol == "" {
			writeError(w, http.StatusBadRequest, "entries require destination and protocol")
			return
		}
	}

	s.ribStore.ReplaceRouter(router, entries)
	s.signalTopoUpdate()
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(entries)})
}

func (s *HTTPServer) handleRIBRemove(w http.ResponseWriter, r *http.Request) {
	router := chi.URLParam(r, "router")
	s.ribStore.RemoveRouter(router)
	s.signalTopoUpdate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		writeJSON(w, http.StatusOK, []collect.DeviceStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.prober.Statuses())
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.topo.Current()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"routers":     len(snap.Index.Routers()),
		"rib_entries": s.ribStore.Len(),
		"built_at":    snap.BuiltAt,
	})
}

func (s *HTTPServer) signalTopoUpdate() {
	select {
	case s.topoUpdateCh <- struct{}{}:
	default:
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
