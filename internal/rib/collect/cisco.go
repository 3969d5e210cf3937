package collect

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/netutil"
)

// ciscoRIBFilter selects the ietf-routing operational state tree.
const ciscoRIBFilter = `<routing-state xmlns="urn:ietf:params:xml:ns:yang:ietf-routing"/>`

type ietfRoute struct {
	Destination string `xml:"destination-prefix"`
	Protocol    string `xml:"source-protocol"`
	NextHop     struct {
		Interface string `xml:"outgoing-interface"`
		Address   string `xml:"next-hop-address"`
	} `xml:"next-hop"`
}

// collectCisco retrieves and normalizes a Cisco IOS-XE routing table.
func collectCisco(s *netconfSession, router string) ([]rib.Entry, error) {
	data, err := s.Get(ciscoRIBFilter)
	if err != nil {
		return nil, errors.Wrap(err, "getting routing state")
	}
	return parseCiscoRIB(data, router)
}

// parseCiscoRIB walks every <route> element in an ietf-routing reply.
// The loopback IP is the first /32 bound to a loopback interface; it
// tags every row of the router.
func parseCiscoRIB(data, router string) ([]rib.Entry, error) {
	routes, err := decodeRoutes(data)
	if err != nil {
		return nil, err
	}

	loopback := ""
	for _, r := range routes {
		if strings.HasSuffix(r.Destination, "/32") && netutil.IsLoopbackName(r.NextHop.Interface) {
			loopback = strings.TrimSuffix(r.Destination, "/32")
			break
		}
	}

	var entries []rib.Entry
	for _, r := range routes {
		iface := r.NextHop.Interface
		// LIIN0 is the IOS-XE internal LI interface, never topology relevant.
		if strings.ToUpper(strings.TrimSpace(iface)) == "LIIN0" {
			continue
		}
		entries = append(entries, rib.Entry{
			Router:      router,
			Loopback:    loopback,
			Protocol:    normalizeProtocol(r.Protocol),
			Destination: r.Destination,
			Interface:   netutil.StripSubinterface(iface),
			NextHop:     normalizeNextHop(r.NextHop.Address),
		})
	}
	return entries, nil
}

// decodeRoutes collects <route> elements wherever they sit in the reply,
// so RIB replies from different IOS-XE releases parse alike.
func decodeRoutes(data string) ([]ietfRoute, error) {
	decoder := xml.NewDecoder(strings.NewReader(data))
	var routes []ietfRoute
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing reply")
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "route" {
			continue
		}
		var r ietfRoute
		if err := decoder.DecodeElement(&r, &start); err != nil {
			return nil, errors.Wrap(err, "decoding route element")
		}
		if r.Destination != "" {
			routes = append(routes, r)
		}
	}
	return routes, nil
}

// normalizeProtocol maps vendor protocol names, with or without a module
// prefix, onto the canonical enum.
func normalizeProtocol(p string) rib.Protocol {
	if i := strings.LastIndexByte(p, ':'); i >= 0 {
		p = p[i+1:]
	}
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "direct", "connected":
		return rib.ProtocolConnected
	case "local":
		return rib.ProtocolLocal
	case "static":
		return rib.ProtocolStatic
	case "ospf", "ospfv2", "ospfv3":
		return rib.ProtocolOSPF
	case "bgp":
		return rib.ProtocolBGP
	case "isis", "is-is":
		return rib.ProtocolISIS
	case "rip", "ripv2":
		return rib.ProtocolRIP
	case "":
		return ""
	default:
		return rib.Protocol(capitalize(p))
	}
}

func capitalize(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// normalizeNextHop maps absent or zero next hops onto the
// directly-connected sentinel.
func normalizeNextHop(nh string) string {
	nh = strings.TrimSpace(nh)
	if nh == "" || nh == "0.0.0.0" {
		return rib.NextHopDirect
	}
	return nh
}
