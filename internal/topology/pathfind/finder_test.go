package pathfind

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/internal/topology"
)

// link emits the Connected and Local rows for one /30 between two
// routers, numbered by n: a gets 10.0.n.1, b gets 10.0.n.2.
func link(a, b string, n int) []rib.Entry {
	subnet := fmt.Sprintf("10.0.%d.0/30", n)
	ipA := fmt.Sprintf("10.0.%d.1", n)
	ipB := fmt.Sprintf("10.0.%d.2", n)
	ifaceA := fmt.Sprintf("Gi0/%d", n)
	ifaceB := fmt.Sprintf("Gi0/%d", n)
	return []rib.Entry{
		{Router: a, Protocol: rib.ProtocolConnected, Destination: subnet, Interface: ifaceA, NextHop: rib.NextHopDirect},
		{Router: a, Protocol: rib.ProtocolLocal, Destination: ipA + "/32", Interface: ifaceA, NextHop: rib.NextHopDirect},
		{Router: b, Protocol: rib.ProtocolConnected, Destination: subnet, Interface: ifaceB, NextHop: rib.NextHopDirect},
		{Router: b, Protocol: rib.ProtocolLocal, Destination: ipB + "/32", Interface: ifaceB, NextHop: rib.NextHopDirect},
	}
}

func loopback(router, ip string) []rib.Entry {
	return []rib.Entry{
		{Router: router, Protocol: rib.ProtocolConnected, Destination: ip + "/32", Interface: "Loopback0", NextHop: rib.NextHopDirect},
		{Router: router, Protocol: rib.ProtocolLocal, Destination: ip + "/32", Interface: "Loopback0", NextHop: rib.NextHopDirect},
	}
}

// chainSnapshot is R1 -- R2 -- R3.
func chainSnapshot() *topology.Snapshot {
	var entries []rib.Entry
	entries = append(entries, loopback("R1", "1.1.1.1")...)
	entries = append(entries, loopback("R2", "2.2.2.2")...)
	entries = append(entries, loopback("R3", "3.3.3.3")...)
	entries = append(entries, link("R1", "R2", 12)...)
	entries = append(entries, link("R2", "R3", 23)...)
	return topology.BuildSnapshot(entries)
}

// squareSnapshot is a 4-cycle: R1 -- R2 -- R3 and R1 -- R4 -- R3.
func squareSnapshot() *topology.Snapshot {
	var entries []rib.Entry
	entries = append(entries, link("R1", "R2", 12)...)
	entries = append(entries, link("R2", "R3", 23)...)
	entries = append(entries, link("R1", "R4", 14)...)
	entries = append(entries, link("R4", "R3", 34)...)
	return topology.BuildSnapshot(entries)
}

func routerSequences(paths []Path) [][]string {
	out := make([][]string, len(paths))
	for i, p := range paths {
		out[i] = p.Routers()
	}
	return out
}

func TestFindShortestChain(t *testing.T) {
	result, err := Find(chainSnapshot(), "10.0.12.1", "10.0.23.2", 0)
	require.NoError(t, err)

	require.NotNil(t, result.Primary)
	assert.Equal(t, []string{"R1", "R2", "R3"}, result.Primary.Routers())
	assert.Empty(t, result.Alternates)
	require.Len(t, result.All, 1)
	assert.Equal(t, "10.0.12.1", result.SourceIP)
	assert.Equal(t, "10.0.23.2", result.DestinationIP)
}

func TestFindAlternatesInSquare(t *testing.T) {
	result, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", -1)
	require.NoError(t, err)

	// both 3-router paths exist; the lexicographically smaller sequence
	// wins the equal-cost tie
	assert.Equal(t, []string{"R1", "R2", "R3"}, result.Primary.Routers())
	require.Len(t, result.Alternates, 1)
	assert.Equal(t, []string{"R1", "R4", "R3"}, result.Alternates[0].Routers())
	assert.Equal(t, [][]string{
		{"R1", "R2", "R3"},
		{"R1", "R4", "R3"},
	}, routerSequences(result.All))
}

func TestFindDirectEdgePreferred(t *testing.T) {
	var entries []rib.Entry
	entries = append(entries, link("R1", "R2", 12)...)
	entries = append(entries, link("R2", "R3", 23)...)
	entries = append(entries, link("R1", "R3", 13)...)
	snap := topology.BuildSnapshot(entries)

	result, err := Find(snap, "10.0.12.1", "10.0.23.2", -1)
	require.NoError(t, err)

	assert.Equal(t, []string{"R1", "R3"}, result.Primary.Routers())
	require.Len(t, result.Alternates, 1)
	assert.Equal(t, []string{"R1", "R2", "R3"}, result.Alternates[0].Routers())
}

func TestFindSameRouter(t *testing.T) {
	result, err := Find(chainSnapshot(), "10.0.12.1", "1.1.1.1", 0)
	require.NoError(t, err)

	require.NotNil(t, result.Primary)
	assert.Equal(t, []string{"R1"}, result.Primary.Routers())
	assert.Empty(t, result.Alternates)

	hop := result.Primary.Hops[0]
	assert.Equal(t, "Gi0/12", hop.EntryInterface)
	assert.Equal(t, "10.0.12.1", hop.EntryIP)
	assert.Empty(t, hop.ExitInterface)
	assert.Empty(t, hop.ConnectionType)
}

func TestFindEndpointNotFound(t *testing.T) {
	snap := chainSnapshot()

	_, err := Find(snap, "192.0.2.1", "10.0.23.2", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, topology.ErrEndpointNotFound)
	assert.Contains(t, err.Error(), "192.0.2.1")

	_, err = Find(snap, "10.0.12.1", "192.0.2.1", 0)
	assert.ErrorIs(t, err, topology.ErrEndpointNotFound)
}

func TestFindNoPath(t *testing.T) {
	var entries []rib.Entry
	entries = append(entries, link("R1", "R2", 12)...)
	entries = append(entries, link("R3", "R4", 34)...)
	snap := topology.BuildSnapshot(entries)

	_, err := Find(snap, "10.0.12.1", "10.0.34.2", 0)
	assert.ErrorIs(t, err, topology.ErrNoPath)
}

func TestFindMaxAlternatesCap(t *testing.T) {
	result, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", -1)
	require.NoError(t, err)
	require.Len(t, result.All, 2)

	capped, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", 1)
	require.NoError(t, err)
	assert.Len(t, capped.All, 2, "primary plus one alternate")

	// an explicit cap below the available alternates truncates
	var entries []rib.Entry
	entries = append(entries, link("R1", "R2", 12)...)
	entries = append(entries, link("R2", "R3", 23)...)
	entries = append(entries, link("R1", "R4", 14)...)
	entries = append(entries, link("R4", "R3", 34)...)
	entries = append(entries, link("R1", "R3", 13)...)
	snap := topology.BuildSnapshot(entries)

	one, err := Find(snap, "10.0.12.1", "10.0.23.2", 1)
	require.NoError(t, err)
	assert.Len(t, one.All, 2)
	assert.Equal(t, []string{"R1", "R3"}, one.Primary.Routers())
}

func TestFindZeroAlternates(t *testing.T) {
	result, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"R1", "R2", "R3"}, result.Primary.Routers())
	assert.Empty(t, result.Alternates, "zero asks for the primary alone")
	assert.Len(t, result.All, 1)
}

func TestFindPathsAreSimple(t *testing.T) {
	result, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", 10)
	require.NoError(t, err)

	for _, path := range result.All {
		seen := make(map[string]bool)
		for _, router := range path.Routers() {
			assert.False(t, seen[router], "router repeated in %v", path.Routers())
			seen[router] = true
		}
	}
}

func TestFindDeterministic(t *testing.T) {
	a, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", 10)
	require.NoError(t, err)
	b, err := Find(squareSnapshot(), "10.0.12.1", "10.0.23.2", 10)
	require.NoError(t, err)

	assert.Equal(t, routerSequences(a.All), routerSequences(b.All))
}
