package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrC0ns0le/net-topo/internal/rib"
)

const ciscoSampleRIB = `
<routing-state xmlns="urn:ietf:params:xml:ns:yang:ietf-routing">
  <routing-instance>
    <name>default</name>
    <ribs>
      <rib>
        <name>ipv4-default</name>
        <routes>
          <route>
            <destination-prefix>1.1.1.1/32</destination-prefix>
            <source-protocol xmlns:rt="urn:ietf:params:xml:ns:yang:ietf-routing">rt:local</source-protocol>
            <next-hop>
              <outgoing-interface>Loopback0</outgoing-interface>
            </next-hop>
          </route>
          <route>
            <destination-prefix>10.0.12.0/30</destination-prefix>
            <source-protocol>direct</source-protocol>
            <next-hop>
              <outgoing-interface>GigabitEthernet1</outgoing-interface>
            </next-hop>
          </route>
          <route>
            <destination-prefix>10.0.12.1/32</destination-prefix>
            <source-protocol>local</source-protocol>
            <next-hop>
              <outgoing-interface>GigabitEthernet1</outgoing-interface>
            </next-hop>
          </route>
          <route>
            <destination-prefix>2.2.2.2/32</destination-prefix>
            <source-protocol>ospf</source-protocol>
            <next-hop>
              <outgoing-interface>GigabitEthernet1.100</outgoing-interface>
              <next-hop-address>10.0.12.2</next-hop-address>
            </next-hop>
          </route>
          <route>
            <destination-prefix>198.51.100.0/24</destination-prefix>
            <source-protocol>static</source-protocol>
            <next-hop>
              <outgoing-interface>LIIN0</outgoing-interface>
            </next-hop>
          </route>
        </routes>
      </rib>
    </ribs>
  </routing-instance>
</routing-state>`

func TestParseCiscoRIB(t *testing.T) {
	entries, err := parseCiscoRIB(ciscoSampleRIB, "R1")
	require.NoError(t, err)
	require.Len(t, entries, 4, "internal LIIN0 route is dropped")

	for _, e := range entries {
		assert.Equal(t, "R1", e.Router)
		assert.Equal(t, "1.1.1.1", e.Loopback, "loopback tag on every row")
	}

	assert.Equal(t, rib.ProtocolLocal, entries[0].Protocol, "module prefix stripped")
	assert.Equal(t, "Loopback0", entries[0].Interface)
	assert.Equal(t, rib.NextHopDirect, entries[0].NextHop)

	assert.Equal(t, rib.ProtocolConnected, entries[1].Protocol, "direct maps to Connected")
	assert.Equal(t, "10.0.12.0/30", entries[1].Destination)

	ospf := entries[3]
	assert.Equal(t, rib.ProtocolOSPF, ospf.Protocol)
	assert.Equal(t, "GigabitEthernet1", ospf.Interface, "subinterface suffix stripped")
	assert.Equal(t, "10.0.12.2", ospf.NextHop)
}

func TestParseCiscoRIBEmpty(t *testing.T) {
	entries, err := parseCiscoRIB(`<routing-state/>`, "R1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseCiscoRIBMalformed(t *testing.T) {
	_, err := parseCiscoRIB(`<routing-state><route><destination-prefix>`, "R1")
	assert.Error(t, err)
}

func TestNormalizeProtocol(t *testing.T) {
	tests := []struct {
		in   string
		want rib.Protocol
	}{
		{"direct", rib.ProtocolConnected},
		{"connected", rib.ProtocolConnected},
		{"local", rib.ProtocolLocal},
		{"rt:local", rib.ProtocolLocal},
		{"ios:static", rib.ProtocolStatic},
		{"OSPF", rib.ProtocolOSPF},
		{"ospfv2", rib.ProtocolOSPF},
		{"bgp", rib.ProtocolBGP},
		{"is-is", rib.ProtocolISIS},
		{"ripv2", rib.ProtocolRIP},
		{"", ""},
		{"eigrp", rib.Protocol("Eigrp")},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, normalizeProtocol(tc.in), tc.in)
	}
}

func TestNormalizeNextHop(t *testing.T) {
	assert.Equal(t, rib.NextHopDirect, normalizeNextHop(""))
	assert.Equal(t, rib.NextHopDirect, normalizeNextHop("0.0.0.0"))
	assert.Equal(t, "10.0.12.2", normalizeNextHop(" 10.0.12.2 "))
}
