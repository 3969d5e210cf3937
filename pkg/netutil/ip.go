// Package netutil provides IP and subnet helpers shared by the topology
// inference and collection layers.
package netutil

import (
	"fmt"
	"net"
	"strings"
)

// ParseIPWithMask parses an IP address with CIDR notation.
// Returns the IP, mask length, and any error.
func ParseIPWithMask(cidr string) (net.IP, int, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid CIDR notation: %s", cidr)
	}
	ones, _ := ipNet.Mask.Size()
	return ip, ones, nil
}

// ComputeNetworkAddr returns the network address for a given IP and mask.
func ComputeNetworkAddr(ipStr string, maskLen int) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	ip = ip.To4()
	if ip == nil {
		return ""
	}

	mask := net.CIDRMask(maskLen, 32)
	return ip.Mask(mask).String()
}

// NetworkCIDR returns the containing network in "addr/len" form, or ""
// if the IP does not parse.
func NetworkCIDR(ipStr string, maskLen int) string {
	addr := ComputeNetworkAddr(ipStr, maskLen)
	if addr == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d", addr, maskLen)
}

// CIDRContains reports whether the network in cidr contains ip. A bare
// host address in cidr is treated as a /32.
func CIDRContains(cidr, ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	if !strings.Contains(cidr, "/") {
		cidr += "/32"
	}
	_, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	return ipNet.Contains(ip)
}

// IsLoopbackName reports whether an interface name denotes a loopback.
// Matches the naming used by all supported vendors (Loopback0, lo0, Lb1).
func IsLoopbackName(iface string) bool {
	name := strings.ToLower(iface)
	return strings.HasPrefix(name, "loopback") ||
		strings.HasPrefix(name, "lo") ||
		strings.HasPrefix(name, "lb")
}

// StripSubinterface removes a subinterface suffix ("Gi0/1.100" -> "Gi0/1").
func StripSubinterface(iface string) string {
	if i := strings.IndexByte(iface, '.'); i >= 0 {
		return iface[:i]
	}
	return iface
}
