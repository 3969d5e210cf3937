package collect

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrC0ns0le/net-topo/internal/config"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

func testProber(devices []config.Device, ping func(string) (bool, time.Duration, error)) *Prober {
	p := NewProber(devices, time.Minute, logging.NewDefaultLogger())
	p.ping = ping
	return p
}

func TestProbeAllRecordsStatuses(t *testing.T) {
	devices := []config.Device{
		{Name: "R2", Host: "192.0.2.2"},
		{Name: "R1", Host: "192.0.2.1"},
		{Name: "local", Host: ""},
	}
	p := testProber(devices, func(host string) (bool, time.Duration, error) {
		if host == "192.0.2.1" {
			return true, 3 * time.Millisecond, nil
		}
		return false, 0, nil
	})

	p.probeAll()

	statuses := p.Statuses()
	require.Len(t, statuses, 2, "hostless devices are not probed")
	assert.Equal(t, "R1", statuses[0].Router, "sorted by router name")
	assert.Equal(t, "R2", statuses[1].Router)

	assert.True(t, statuses[0].Reachable)
	assert.Equal(t, 3*time.Millisecond, statuses[0].RTT)
	assert.False(t, statuses[1].Reachable)
	assert.False(t, statuses[0].CheckedAt.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(deviceStatusGauge.WithLabelValues("R1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(deviceStatusGauge.WithLabelValues("R2")))
}

func TestProbeErrorMeansUnreachable(t *testing.T) {
	devices := []config.Device{{Name: "R9", Host: "192.0.2.9"}}
	p := testProber(devices, func(string) (bool, time.Duration, error) {
		return false, 0, errors.New("socket: operation not permitted")
	})

	p.probeAll()

	status, ok := p.Status("R9")
	require.True(t, ok)
	assert.False(t, status.Reachable)
	assert.Equal(t, time.Duration(0), status.RTT)
}

func TestProbeOverwritesPreviousStatus(t *testing.T) {
	devices := []config.Device{{Name: "R8", Host: "192.0.2.8"}}
	up := true
	p := testProber(devices, func(string) (bool, time.Duration, error) {
		return up, time.Millisecond, nil
	})

	p.probeAll()
	status, ok := p.Status("R8")
	require.True(t, ok)
	require.True(t, status.Reachable)

	up = false
	p.probeAll()
	status, ok = p.Status("R8")
	require.True(t, ok)
	assert.False(t, status.Reachable)
	assert.Equal(t, 0.0, testutil.ToFloat64(deviceStatusGauge.WithLabelValues("R8")))
}

func TestStatusUnknownRouter(t *testing.T) {
	p := testProber(nil, nil)
	_, ok := p.Status("nope")
	assert.False(t, ok)
}
