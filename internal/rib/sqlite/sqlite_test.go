package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrC0ns0le/net-topo/internal/rib"
)

func openBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rib.db")
	b, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, path
}

func sampleEntries(router string) []rib.Entry {
	return []rib.Entry{
		{Router: router, Loopback: "1.1.1.1", Protocol: rib.ProtocolConnected,
			Destination: "10.0.12.0/30", Interface: "Gi0/1", NextHop: rib.NextHopDirect},
		{Router: router, Loopback: "1.1.1.1", Protocol: rib.ProtocolLocal,
			Destination: "10.0.12.1/32", Interface: "Gi0/1", NextHop: rib.NextHopDirect},
	}
}

func TestReplaceRouterAndLoad(t *testing.T) {
	b, _ := openBackend(t)

	require.NoError(t, b.ReplaceRouter("R1", sampleEntries("R1")))
	require.NoError(t, b.ReplaceRouter("R2", sampleEntries("R2")))

	entries, err := b.Load()
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "R1", entries[0].Router)
	assert.Equal(t, rib.ProtocolConnected, entries[0].Protocol)
	assert.Equal(t, "R2", entries[2].Router)
}

func TestReplaceRouterIsWholesale(t *testing.T) {
	b, _ := openBackend(t)

	require.NoError(t, b.ReplaceRouter("R1", sampleEntries("R1")))
	require.NoError(t, b.ReplaceRouter("R1", []rib.Entry{
		{Router: "R1", Protocol: rib.ProtocolStatic,
			Destination: "0.0.0.0/0", Interface: "Gi0/1", NextHop: "10.0.12.2"},
	}))

	entries, err := b.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0.0.0.0/0", entries[0].Destination)
}

func TestDuplicateRowsIgnored(t *testing.T) {
	b, _ := openBackend(t)

	dup := sampleEntries("R1")
	dup = append(dup, dup[0])
	require.NoError(t, b.ReplaceRouter("R1", dup))

	entries, err := b.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rib.db")

	b, err := New(path)
	require.NoError(t, err)
	require.NoError(t, b.ReplaceRouter("R1", sampleEntries("R1")))
	require.NoError(t, b.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRemoveRouter(t *testing.T) {
	b, _ := openBackend(t)

	require.NoError(t, b.ReplaceRouter("R1", sampleEntries("R1")))
	require.NoError(t, b.RemoveRouter("R1"))

	entries, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
