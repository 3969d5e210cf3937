package collect

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/pkg/netutil"
)

// Junos ships its own route-information RPC rather than a YANG state
// tree, so the Juniper driver goes through RPC instead of Get.
const juniperRouteRPC = `<get-route-information><table>inet.0</table></get-route-information>`

type junosRoute struct {
	Destination string `xml:"rt-destination"`
	Entries     []struct {
		Protocol string `xml:"protocol-name"`
		NextHops []struct {
			To             string `xml:"to"`
			Via            string `xml:"via"`
			LocalInterface string `xml:"nh-local-interface"`
		} `xml:"nh"`
	} `xml:"rt-entry"`
}

func collectJuniper(s *netconfSession, router string) ([]rib.Entry, error) {
	data, err := s.RPC(juniperRouteRPC)
	if err != nil {
		return nil, errors.Wrap(err, "get-route-information")
	}
	return parseJuniperRIB(data, router)
}

// parseJuniperRIB converts a route-information reply to canonical
// entries. Junos reports Direct and Local protocols natively, matching
// the canonical local set, so they pass through unchanged in meaning.
func parseJuniperRIB(data, router string) ([]rib.Entry, error) {
	routes, err := decodeJunosRoutes(data)
	if err != nil {
		return nil, err
	}

	loopback := junosLoopback(routes)

	var entries []rib.Entry
	for _, route := range routes {
		dest := route.Destination
		if dest == "" {
			continue
		}
		if !strings.Contains(dest, "/") {
			dest += "/32"
		}
		for _, rt := range route.Entries {
			protocol := normalizeJunosProtocol(rt.Protocol)
			if protocol == "" {
				continue
			}
			if len(rt.NextHops) == 0 {
				entries = append(entries, rib.Entry{
					Router: router, Loopback: loopback,
					Protocol:    protocol,
					Destination: dest,
					Interface:   "N/A",
					NextHop:     rib.NextHopDirect,
				})
				continue
			}
			for _, nh := range rt.NextHops {
				iface := nh.Via
				if iface == "" {
					iface = nh.LocalInterface
				}
				if iface == "" {
					iface = "N/A"
				}
				entries = append(entries, rib.Entry{
					Router: router, Loopback: loopback,
					Protocol:    protocol,
					Destination: dest,
					Interface:   netutil.StripSubinterface(iface),
					NextHop:     normalizeNextHop(nh.To),
				})
			}
		}
	}
	return entries, nil
}

func decodeJunosRoutes(data string) ([]junosRoute, error) {
	decoder := xml.NewDecoder(strings.NewReader(data))
	var routes []junosRoute
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing route-information reply")
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "rt" {
			continue
		}
		var route junosRoute
		if err := decoder.DecodeElement(&route, &start); err != nil {
			return nil, errors.Wrap(err, "decoding rt element")
		}
		routes = append(routes, route)
	}
	return routes, nil
}

// junosLoopback finds the first /32 local route bound to lo0.
func junosLoopback(routes []junosRoute) string {
	for _, route := range routes {
		if !strings.HasSuffix(route.Destination, "/32") &&
			strings.Contains(route.Destination, "/") {
			continue
		}
		for _, rt := range route.Entries {
			protocol := normalizeJunosProtocol(rt.Protocol)
			if !protocol.IsLocal() {
				continue
			}
			for _, nh := range rt.NextHops {
				if netutil.IsLoopbackName(nh.LocalInterface) || netutil.IsLoopbackName(nh.Via) {
					return strings.TrimSuffix(route.Destination, "/32")
				}
			}
		}
	}
	return ""
}

// normalizeJunosProtocol keeps Junos Direct and Local names, which are
// already canonical, and routes the rest through the shared mapping.
func normalizeJunosProtocol(name string) rib.Protocol {
	switch strings.ToLower(name) {
	case "direct":
		return rib.ProtocolDirect
	case "local":
		return rib.ProtocolLocal
	case "":
		return ""
	}
	return normalizeProtocol(name)
}
