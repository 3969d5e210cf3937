package collect

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/netutil"
)

// netlinkDriver reads the routing state of the host the daemon runs on,
// letting a Linux box participate in the topology alongside the managed
// devices.
type netlinkDriver struct {
	router string
}

func newNetlinkDriver(router string) *netlinkDriver {
	return &netlinkDriver{router: router}
}

func (d *netlinkDriver) Vendor() string { return "local" }

func (d *netlinkDriver) Collect(ctx context.Context) ([]rib.Entry, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, errors.Wrap(err, "listing links")
	}

	loopback := ""
	type boundAddr struct {
		iface string
		addr  *netlink.Addr
	}
	var addrs []boundAddr
	for _, link := range links {
		name := link.Attrs().Name
		list, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, errors.Wrapf(err, "listing addresses on %s", name)
		}
		for i := range list {
			addrs = append(addrs, boundAddr{iface: name, addr: &list[i]})
			if loopback == "" && netutil.IsLoopbackName(name) && !list[i].IP.IsLoopback() {
				loopback = list[i].IP.String()
			}
		}
	}

	var entries []rib.Entry
	for _, bound := range addrs {
		ones, _ := bound.addr.Mask.Size()
		if ones < 32 {
			network := netutil.NetworkCIDR(bound.addr.IP.String(), ones)
			if network != "" {
				entries = append(entries, rib.Entry{
					Router: d.router, Loopback: loopback,
					Protocol:    rib.ProtocolConnected,
					Destination: network,
					Interface:   bound.iface,
					NextHop:     rib.NextHopDirect,
				})
			}
		}
		entries = append(entries, rib.Entry{
			Router: d.router, Loopback: loopback,
			Protocol:    rib.ProtocolLocal,
			Destination: bound.addr.IP.String() + "/32",
			Interface:   bound.iface,
			NextHop:     rib.NextHopDirect,
		})
	}

	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, errors.Wrap(err, "listing routes")
	}
	linkNames := make(map[int]string, len(links))
	for _, link := range links {
		linkNames[link.Attrs().Index] = link.Attrs().Name
	}
	for _, route := range routes {
		protocol := netlinkProtocol(route.Protocol)
		if protocol == "" || route.Dst == nil {
			continue
		}
		iface := linkNames[route.LinkIndex]
		if iface == "" {
			iface = "N/A"
		}
		nextHop := rib.NextHopDirect
		if route.Gw != nil && !route.Gw.Equal(net.IPv4zero) {
			nextHop = route.Gw.String()
		}
		entries = append(entries, rib.Entry{
			Router: d.router, Loopback: loopback,
			Protocol:    protocol,
			Destination: route.Dst.String(),
			Interface:   iface,
			NextHop:     nextHop,
		})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no IPv4 state on %s", d.router)
	}
	return entries, nil
}

// netlinkProtocol maps kernel route origins to the canonical protocol
// names. Kernel and boot routes are the local machine's own state and
// are covered by the synthesized Connected and Local rows.
func netlinkProtocol(proto netlink.RouteProtocol) rib.Protocol {
	switch int(proto) {
	case unix.RTPROT_STATIC:
		return rib.ProtocolStatic
	case unix.RTPROT_BGP:
		return rib.ProtocolBGP
	case unix.RTPROT_OSPF:
		return rib.ProtocolOSPF
	case unix.RTPROT_ISIS:
		return rib.ProtocolISIS
	case unix.RTPROT_RIP:
		return rib.ProtocolRIP
	case unix.RTPROT_BIRD:
		return rib.ProtocolBGP
	}
	return ""
}
