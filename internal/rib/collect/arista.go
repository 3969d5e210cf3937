package collect

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/netutil"
)

// Arista EOS exposes OpenConfig models over NETCONF: interface addresses
// come from oc-interfaces, protocol routes from oc-network-instance.
const (
	aristaInterfacesFilter = `<interfaces xmlns="http://openconfig.net/yang/interfaces"><interface/></interfaces>`

	aristaNetworkInstanceFilter = `<network-instances xmlns="http://openconfig.net/yang/network-instance">` +
		`<network-instance><name>default</name></network-instance></network-instances>`
)

type aristaInterface struct {
	name string
	ipv4 []string // "ip/prefix"
}

// collectArista retrieves interface and routing state and converges them
// on the canonical schema. Connected and Local rows are synthesized from
// interface addresses, the way EOS itself derives them.
func collectArista(s *netconfSession, router string) ([]rib.Entry, error) {
	ifaceData, err := s.Get(aristaInterfacesFilter)
	if err != nil {
		return nil, errors.Wrap(err, "getting interfaces")
	}
	routeData, err := s.Get(aristaNetworkInstanceFilter)
	if err != nil {
		return nil, errors.Wrap(err, "getting network instance")
	}
	return parseAristaRIB(ifaceData, routeData, router)
}

func parseAristaRIB(ifaceData, routeData, router string) ([]rib.Entry, error) {
	interfaces, err := parseAristaInterfaces(ifaceData)
	if err != nil {
		return nil, err
	}

	loopback := ""
	for _, iface := range interfaces {
		if netutil.IsLoopbackName(iface.name) && len(iface.ipv4) > 0 {
			loopback = strings.Split(iface.ipv4[0], "/")[0]
			break
		}
	}

	var entries []rib.Entry
	for _, iface := range interfaces {
		for _, addr := range iface.ipv4 {
			ip, maskLen, err := netutil.ParseIPWithMask(addr)
			if err != nil {
				continue
			}
			network := netutil.NetworkCIDR(ip.String(), maskLen)
			if network != "" && maskLen < 32 {
				entries = append(entries, rib.Entry{
					Router:      router,
					Loopback:    loopback,
					Protocol:    rib.ProtocolConnected,
					Destination: network,
					Interface:   iface.name,
					NextHop:     rib.NextHopDirect,
				})
			}
			entries = append(entries, rib.Entry{
				Router:      router,
				Loopback:    loopback,
				Protocol:    rib.ProtocolLocal,
				Destination: ip.String() + "/32",
				Interface:   iface.name,
				NextHop:     rib.NextHopDirect,
			})
		}
	}

	routed, err := parseAristaRoutes(routeData, router, loopback, interfaces)
	if err != nil {
		return nil, err
	}
	return append(entries, routed...), nil
}

// parseAristaInterfaces extracts per-interface IPv4 addresses from an
// oc-interfaces reply.
func parseAristaInterfaces(data string) ([]aristaInterface, error) {
	type ocAddress struct {
		IP     string `xml:"ip"`
		Config struct {
			PrefixLength int `xml:"prefix-length"`
		} `xml:"config"`
	}
	type ocInterface struct {
		Name          string      `xml:"name"`
		Subinterfaces struct {
			Subinterface []struct {
				IPv4 struct {
					Addresses struct {
						Address []ocAddress `xml:"address"`
					} `xml:"addresses"`
				} `xml:"ipv4"`
			} `xml:"subinterface"`
		} `xml:"subinterfaces"`
	}

	decoder := xml.NewDecoder(strings.NewReader(data))
	var interfaces []aristaInterface
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing interfaces reply")
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "interface" {
			continue
		}
		var oc ocInterface
		if err := decoder.DecodeElement(&oc, &start); err != nil {
			return nil, errors.Wrap(err, "decoding interface element")
		}
		if oc.Name == "" {
			continue
		}
		iface := aristaInterface{name: oc.Name}
		for _, sub := range oc.Subinterfaces.Subinterface {
			for _, addr := range sub.IPv4.Addresses.Address {
				if addr.IP != "" && addr.Config.PrefixLength > 0 {
					iface.ipv4 = append(iface.ipv4,
						fmt.Sprintf("%s/%d", addr.IP, addr.Config.PrefixLength))
				}
			}
		}
		interfaces = append(interfaces, iface)
	}
	return interfaces, nil
}

// parseAristaRoutes extracts static, OSPF and BGP routes from an
// oc-network-instance reply. BGP next hops are mapped back to an
// outgoing interface by subnet membership when possible.
func parseAristaRoutes(data, router, loopback string, interfaces []aristaInterface) ([]rib.Entry, error) {
	var entries []rib.Entry

	decoder := xml.NewDecoder(strings.NewReader(data))
	inProtocol := ""
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing network instance reply")
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "identifier":
			var id string
			if err := decoder.DecodeElement(&id, &start); err != nil {
				return nil, errors.Wrap(err, "decoding protocol identifier")
			}
			if i := strings.LastIndexByte(id, ':'); i >= 0 {
				id = id[i+1:]
			}
			inProtocol = strings.ToUpper(id)
		case "static":
			var route struct {
				Prefix   string `xml:"prefix"`
				NextHops struct {
					NextHop []struct {
						Config struct {
							NextHop string `xml:"next-hop"`
						} `xml:"config"`
						InterfaceRef struct {
							Config struct {
								Interface string `xml:"interface"`
							} `xml:"config"`
						} `xml:"interface-ref"`
					} `xml:"next-hop"`
				} `xml:"next-hops"`
			}
			if err := decoder.DecodeElement(&route, &start); err != nil {
				return nil, errors.Wrap(err, "decoding static route")
			}
			if route.Prefix == "" {
				continue
			}
			if len(route.NextHops.NextHop) == 0 {
				entries = append(entries, rib.Entry{
					Router: router, Loopback: loopback,
					Protocol:    rib.ProtocolStatic,
					Destination: route.Prefix,
					Interface:   "N/A",
					NextHop:     rib.NextHopDirect,
				})
				continue
			}
			for _, nh := range route.NextHops.NextHop {
				iface := nh.InterfaceRef.Config.Interface
				if iface == "" {
					iface = "N/A"
				}
				entries = append(entries, rib.Entry{
					Router: router, Loopback: loopback,
					Protocol:    rib.ProtocolStatic,
					Destination: route.Prefix,
					Interface:   iface,
					NextHop:     normalizeNextHop(nh.Config.NextHop),
				})
			}
		case "route":
			var route struct {
				Prefix            string `xml:"prefix"`
				NextHop           string `xml:"next-hop"`
				OutgoingInterface string `xml:"outgoing-interface"`
				State             struct {
					NextHop string `xml:"next-hop"`
				} `xml:"state"`
			}
			if err := decoder.DecodeElement(&route, &start); err != nil {
				return nil, errors.Wrap(err, "decoding protocol route")
			}
			nextHop := route.NextHop
			if nextHop == "" {
				nextHop = route.State.NextHop
			}
			if route.Prefix == "" || nextHop == "" {
				continue
			}
			protocol := normalizeProtocol(inProtocol)
			if !protocol.IsDynamic() {
				continue
			}
			iface := route.OutgoingInterface
			if iface == "" {
				iface = interfaceForNextHop(nextHop, interfaces)
			}
			if iface == "" {
				iface = "N/A"
			}
			entries = append(entries, rib.Entry{
				Router: router, Loopback: loopback,
				Protocol:    protocol,
				Destination: route.Prefix,
				Interface:   iface,
				NextHop:     nextHop,
			})
		}
	}
	return entries, nil
}

// interfaceForNextHop finds the interface whose subnet contains the next
// hop address.
func interfaceForNextHop(nextHop string, interfaces []aristaInterface) string {
	for _, iface := range interfaces {
		for _, addr := range iface.ipv4 {
			ip, maskLen, err := netutil.ParseIPWithMask(addr)
			if err != nil || maskLen >= 32 {
				continue
			}
			if netutil.CIDRContains(netutil.NetworkCIDR(ip.String(), maskLen), nextHop) {
				return iface.name
			}
		}
	}
	return ""
}
