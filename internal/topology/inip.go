package topology

import (
	"sort"
	"strings"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
	"github.com/DrC0ns0le/net-topo/pkg/netutil"
)

// Interface is one (router, interface) binding with its locally
// significant IP and, when known, the subnet the interface sits on.
type Interface struct {
	Router  string `json:"router"`
	Name    string `json:"interface"`
	IP      string `json:"ip"`
	MaskLen int    `json:"mask_len"` // 32 when only a host route was seen
}

// Network returns the containing network in "addr/len" form.
func (i Interface) Network() string {
	return netutil.NetworkCIDR(i.IP, i.MaskLen)
}

// IsLoopback reports whether the interface is a loopback.
func (i Interface) IsLoopback() bool {
	return netutil.IsLoopbackName(i.Name)
}

// Index maps (router, interface) to IP and back. Built from the RIB on
// every refresh; never edited in place.
type Index struct {
	byRouter map[string][]*Interface
	byIP     map[string]*Interface
}

// BuildIndex derives the interface index from RIB rows in two passes:
// interface-local subnet routes register the interface and its mask, then
// directly-connected host routes bind the interface's own address. The
// first host route observed for an interface wins; interfaces that never
// resolve an IP are omitted.
func BuildIndex(entries []rib.Entry) *Index {
	type pending struct {
		router, name string
		maskLen      int
		ip           string
	}
	seen := make(map[string]*pending)
	var order []string

	key := func(router, iface string) string { return router + "\x00" + iface }

	// Pass 1: register interfaces from local-protocol routes carrying a
	// prefix length. Non-host routes record the interface's subnet mask.
	for _, e := range entries {
		if !e.Protocol.IsLocal() || e.Interface == "" || e.Interface == "N/A" {
			continue
		}
		if !strings.Contains(e.Destination, "/") {
			continue
		}
		_, maskLen, err := netutil.ParseIPWithMask(e.Destination)
		if err != nil {
			logging.Debugf("skipping %s route %q on %s/%s: %v",
				e.Protocol, e.Destination, e.Router, e.Interface, ErrMalformedRoute)
			continue
		}

		k := key(e.Router, e.Interface)
		p, ok := seen[k]
		if !ok {
			p = &pending{router: e.Router, name: e.Interface, maskLen: 32}
			seen[k] = p
			order = append(order, k)
		}
		if maskLen < 32 && p.maskLen == 32 {
			p.maskLen = maskLen
		}
	}

	// Pass 2: bind interface IPs from directly-connected host routes.
	for _, e := range entries {
		if !e.Protocol.IsLocal() || !isDirectNextHop(e.NextHop) {
			continue
		}
		ip, maskLen, err := netutil.ParseIPWithMask(e.Destination)
		if err != nil || maskLen != 32 {
			continue
		}
		p, ok := seen[key(e.Router, e.Interface)]
		if !ok || p.ip != "" {
			continue
		}
		addr := ip.String()
		if addr == "0.0.0.0" || strings.HasPrefix(addr, "224.") {
			continue
		}
		p.ip = addr
	}

	idx := &Index{
		byRouter: make(map[string][]*Interface),
		byIP:     make(map[string]*Interface),
	}
	for _, k := range order {
		p := seen[k]
		if p.ip == "" {
			continue
		}
		iface := &Interface{Router: p.router, Name: p.name, IP: p.ip, MaskLen: p.maskLen}
		idx.byRouter[p.router] = append(idx.byRouter[p.router], iface)
		if _, ok := idx.byIP[p.ip]; !ok {
			idx.byIP[p.ip] = iface
		}
	}
	for _, ifaces := range idx.byRouter {
		sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].Name < ifaces[j].Name })
	}
	return idx
}

func isDirectNextHop(nh string) bool {
	return strings.Contains(strings.ToLower(nh), "direct")
}

// Lookup resolves an IP to the interface it is bound to.
func (idx *Index) Lookup(ip string) (*Interface, bool) {
	iface, ok := idx.byIP[ip]
	return iface, ok
}

// Routers returns all router ids with at least one bound interface, sorted.
func (idx *Index) Routers() []string {
	routers := make([]string, 0, len(idx.byRouter))
	for r := range idx.byRouter {
		routers = append(routers, r)
	}
	sort.Strings(routers)
	return routers
}

// Interfaces returns a router's bound interfaces, sorted by name.
func (idx *Index) Interfaces(router string) []*Interface {
	return idx.byRouter[router]
}

// Loopbacks returns the loopback-interface IPs bound to a router, sorted
// by interface name. May be empty.
func (idx *Index) Loopbacks(router string) []string {
	var ips []string
	for _, iface := range idx.byRouter[router] {
		if iface.IsLoopback() {
			ips = append(ips, iface.IP)
		}
	}
	return ips
}

// All returns every binding, ordered by router then interface name.
func (idx *Index) All() []*Interface {
	var out []*Interface
	for _, r := range idx.Routers() {
		out = append(out, idx.byRouter[r]...)
	}
	return out
}
