package collect

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	probing "github.com/prometheus-community/pro-bing"

	"github.com/DrC0ns0le/net-topo/internal/config"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var deviceStatusGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "network_device_status",
	Help: "ICMP reachability of a managed device, 1 for up and 0 for down",
}, []string{"router"})

// DeviceStatus is one device's latest reachability result.
type DeviceStatus struct {
	Router    string        `json:"router"`
	Host      string        `json:"host"`
	Reachable bool          `json:"reachable"`
	RTT       time.Duration `json:"rtt_us"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Prober periodically pings every managed device and keeps the latest
// result per device for the API and metrics.
type Prober struct {
	devices  []config.Device
	interval time.Duration
	logger   logging.Logger
	ping     func(host string) (bool, time.Duration, error)

	mu       sync.RWMutex
	statuses map[string]DeviceStatus
}

func NewProber(devices []config.Device, interval time.Duration, logger logging.Logger) *Prober {
	return &Prober{
		devices:  devices,
		interval: interval,
		logger:   logger,
		ping:     pingHost,
		statuses: make(map[string]DeviceStatus, len(devices)),
	}
}

// Run probes all devices immediately and then on every interval tick
// until stopCh closes.
func (p *Prober) Run(stopCh chan struct{}) {
	p.probeAll()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			p.probeAll()
		}
	}
}

func (p *Prober) probeAll() {
	var wg sync.WaitGroup
	for _, device := range p.devices {
		if device.Host == "" {
			continue
		}
		wg.Add(1)
		go func(device config.Device) {
			defer wg.Done()
			p.probe(device)
		}(device)
	}
	wg.Wait()
}

func (p *Prober) probe(device config.Device) {
	status := DeviceStatus{
		Router:    device.Name,
		Host:      device.Host,
		CheckedAt: time.Now(),
	}

	reachable, rtt, err := p.ping(device.Host)
	if err != nil {
		p.logger.Debugf("probe %s (%s): %v", device.Name, device.Host, err)
	}
	status.Reachable = reachable
	status.RTT = rtt

	value := 0.0
	if reachable {
		value = 1.0
	}
	deviceStatusGauge.WithLabelValues(device.Name).Set(value)

	p.mu.Lock()
	p.statuses[device.Name] = status
	p.mu.Unlock()
}

func pingHost(host string) (bool, time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, 0, err
	}
	pinger.SetPrivileged(true)
	pinger.Interval = 250 * time.Millisecond
	pinger.Timeout = 2 * time.Second
	pinger.Count = 3

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pinger.RunWithContext(ctx); err != nil {
		return false, 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketLoss == 100 {
		return false, 0, nil
	}
	return true, stats.AvgRtt, nil
}

// Statuses returns the latest results sorted by router name.
func (p *Prober) Statuses() []DeviceStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	statuses := make([]DeviceStatus, 0, len(p.statuses))
	for _, status := range p.statuses {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Router < statuses[j].Router })
	return statuses
}

// Status returns one device's latest result.
func (p *Prober) Status(router string) (DeviceStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status, ok := p.statuses[router]
	return status, ok
}
