package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrC0ns0le/net-topo/internal/rib"
)

func connectedRoute(router, dest, iface string) rib.Entry {
	return rib.Entry{
		Router:      router,
		Protocol:    rib.ProtocolConnected,
		Destination: dest,
		Interface:   iface,
		NextHop:     rib.NextHopDirect,
	}
}

func localRoute(router, ip, iface string) rib.Entry {
	return rib.Entry{
		Router:      router,
		Protocol:    rib.ProtocolLocal,
		Destination: ip + "/32",
		Interface:   iface,
		NextHop:     rib.NextHopDirect,
	}
}

func ospfRoute(router, dest, iface, nextHop string) rib.Entry {
	return rib.Entry{
		Router:      router,
		Protocol:    rib.ProtocolOSPF,
		Destination: dest,
		Interface:   iface,
		NextHop:     nextHop,
	}
}

// chainEntries models R1 -- R2 -- R3 over two /30 links, each router with
// a loopback, R1 and R2 exchanging OSPF.
func chainEntries() []rib.Entry {
	return []rib.Entry{
		// R1
		connectedRoute("R1", "1.1.1.1/32", "Loopback0"),
		localRoute("R1", "1.1.1.1", "Loopback0"),
		connectedRoute("R1", "10.0.12.0/30", "Gi0/1"),
		localRoute("R1", "10.0.12.1", "Gi0/1"),
		ospfRoute("R1", "2.2.2.2/32", "Gi0/1", "10.0.12.2"),
		ospfRoute("R1", "10.0.23.0/30", "Gi0/1", "10.0.12.2"),

		// R2
		connectedRoute("R2", "2.2.2.2/32", "Loopback0"),
		localRoute("R2", "2.2.2.2", "Loopback0"),
		connectedRoute("R2", "10.0.12.0/30", "Gi0/1"),
		localRoute("R2", "10.0.12.2", "Gi0/1"),
		connectedRoute("R2", "10.0.23.0/30", "Gi0/2"),
		localRoute("R2", "10.0.23.1", "Gi0/2"),
		ospfRoute("R2", "1.1.1.1/32", "Gi0/1", "10.0.12.1"),

		// R3
		connectedRoute("R3", "3.3.3.3/32", "Loopback0"),
		localRoute("R3", "3.3.3.3", "Loopback0"),
		connectedRoute("R3", "10.0.23.0/30", "Gi0/1"),
		localRoute("R3", "10.0.23.2", "Gi0/1"),
	}
}

func TestBuildIndexBindsInterfaces(t *testing.T) {
	idx := BuildIndex(chainEntries())

	assert.Equal(t, []string{"R1", "R2", "R3"}, idx.Routers())

	iface, ok := idx.Lookup("10.0.12.1")
	require.True(t, ok)
	assert.Equal(t, "R1", iface.Router)
	assert.Equal(t, "Gi0/1", iface.Name)
	assert.Equal(t, 30, iface.MaskLen)
	assert.Equal(t, "10.0.12.0/30", iface.Network())

	r2 := idx.Interfaces("R2")
	require.Len(t, r2, 3)
	assert.Equal(t, "Gi0/1", r2[0].Name)
	assert.Equal(t, "Gi0/2", r2[1].Name)
	assert.Equal(t, "Loopback0", r2[2].Name)
}

func TestBuildIndexLoopbacks(t *testing.T) {
	idx := BuildIndex(chainEntries())

	assert.Equal(t, []string{"1.1.1.1"}, idx.Loopbacks("R1"))
	assert.Equal(t, []string{"2.2.2.2"}, idx.Loopbacks("R2"))
	assert.Empty(t, idx.Loopbacks("R9"))

	lo, ok := idx.Lookup("1.1.1.1")
	require.True(t, ok)
	assert.Equal(t, 32, lo.MaskLen, "loopback keeps host mask")
	assert.True(t, lo.IsLoopback())
}

func TestBuildIndexOmitsUnresolvedInterfaces(t *testing.T) {
	// subnet route without a matching host route never resolves an IP
	idx := BuildIndex([]rib.Entry{
		connectedRoute("R1", "10.0.12.0/30", "Gi0/1"),
	})
	assert.Empty(t, idx.Routers())
	_, ok := idx.Lookup("10.0.12.1")
	assert.False(t, ok)
}

func TestBuildIndexFirstHostRouteWins(t *testing.T) {
	idx := BuildIndex([]rib.Entry{
		connectedRoute("R1", "10.0.12.0/30", "Gi0/1"),
		localRoute("R1", "10.0.12.1", "Gi0/1"),
		localRoute("R1", "10.0.12.2", "Gi0/1"),
	})
	iface, ok := idx.Lookup("10.0.12.1")
	require.True(t, ok)
	assert.Equal(t, "10.0.12.1", iface.IP)
	_, ok = idx.Lookup("10.0.12.2")
	assert.False(t, ok)
}

func TestBuildIndexSkipsReservedHostRoutes(t *testing.T) {
	idx := BuildIndex([]rib.Entry{
		connectedRoute("R1", "10.0.12.0/30", "Gi0/1"),
		localRoute("R1", "0.0.0.0", "Gi0/1"),
		localRoute("R1", "224.0.0.5", "Gi0/1"),
		localRoute("R1", "10.0.12.1", "Gi0/1"),
	})
	iface, ok := idx.Lookup("10.0.12.1")
	require.True(t, ok)
	assert.Equal(t, "10.0.12.1", iface.IP)
}

func TestBuildIndexIgnoresNonLocalAndMalformedRoutes(t *testing.T) {
	idx := BuildIndex([]rib.Entry{
		ospfRoute("R1", "10.0.99.0/30", "Gi0/9", "10.0.12.2"),
		connectedRoute("R1", "not-a-prefix/xx", "Gi0/1"),
		connectedRoute("R1", "10.0.12.0", "Gi0/2"), // no prefix length
	})
	assert.Empty(t, idx.Routers())
}

func TestBuildIndexDeterministic(t *testing.T) {
	a := BuildIndex(chainEntries())
	b := BuildIndex(chainEntries())
	assert.Equal(t, a.All(), b.All())
}
