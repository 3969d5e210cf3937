package collect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DrC0ns0le/net-topo/internal/config"
	"github.com/DrC0ns0le/net-topo/internal/rib"
	"github.com/DrC0ns0le/net-topo/internal/rib/sqlite"
	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	collectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_rib_collect_duration_microseconds",
		Help:    "Duration of a routing table collection per device",
		Buckets: prometheus.ExponentialBuckets(1000, 4, 10),
	}, []string{"router"})

	collectErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "network_rib_collect_errors_total",
		Help: "Number of failed routing table collections per device",
	}, []string{"router"})

	collectRoutes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "network_rib_collect_routes",
		Help: "Number of routes collected from a device on its last successful collection",
	}, []string{"router"})
)

// Driver retrieves the full routing table of one device in the
// canonical schema.
type Driver interface {
	Vendor() string
	Collect(ctx context.Context) ([]rib.Entry, error)
}

// netconfDriver collects over NETCONF, dispatching on the configured or
// detected vendor.
type netconfDriver struct {
	device  config.Device
	timeout time.Duration
}

func newNetconfDriver(device config.Device, timeout time.Duration) *netconfDriver {
	return &netconfDriver{device: device, timeout: timeout}
}

func (d *netconfDriver) Vendor() string { return d.device.Vendor }

// Collect dials the device and retrieves its table. The whole exchange
// is bounded by ctx plus the driver timeout; a device that stalls
// mid-reply has its session torn down so the collection goroutine
// returns instead of blocking the cycle.
func (d *netconfDriver) Collect(ctx context.Context) ([]rib.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	session, err := dialNetconf(ctx, d.device, d.timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", d.device.Host)
	}
	defer session.Close()
	stop := session.abortOnCancel(ctx)
	defer stop()

	vendor := d.device.Vendor
	if vendor == "" || vendor == "auto" {
		vendor, err = detectVendor(session.Capabilities())
		if err != nil {
			return nil, err
		}
	}

	var entries []rib.Entry
	switch vendor {
	case "cisco":
		entries, err = collectCisco(session, d.device.Name)
	case "arista":
		entries, err = collectArista(session, d.device.Name)
	case "juniper":
		entries, err = collectJuniper(session, d.device.Name)
	default:
		return nil, fmt.Errorf("unsupported vendor %q for %s", vendor, d.device.Name)
	}
	if err != nil && ctx.Err() != nil {
		return nil, errors.Wrapf(ctx.Err(), "collecting from %s", d.device.Host)
	}
	return entries, err
}

// NewDriver builds the driver for one device based on its vendor.
func NewDriver(device config.Device, timeout time.Duration) (Driver, error) {
	switch device.Vendor {
	case "local":
		return newNetlinkDriver(device.Name), nil
	case "cisco", "arista", "juniper", "auto", "":
		return newNetconfDriver(device, timeout), nil
	}
	return nil, fmt.Errorf("unknown vendor %q for %s", device.Vendor, device.Name)
}

// Collector polls every device's routing table on an interval and
// pushes changes into the store. A topology rebuild is only signalled
// when at least one device's table hash actually changed.
type Collector struct {
	drivers  map[string]Driver
	store    *rib.Store
	backend  *sqlite.Backend
	interval time.Duration
	logger   logging.Logger

	topoUpdateCh chan<- struct{}

	mu      sync.Mutex
	rtCache map[string]uint64
}

func NewCollector(cfg *config.Config, store *rib.Store, backend *sqlite.Backend,
	topoUpdateCh chan<- struct{}, logger logging.Logger) (*Collector, error) {

	drivers := make(map[string]Driver, len(cfg.Devices))
	for _, device := range cfg.Devices {
		driver, err := NewDriver(device, cfg.CollectInterval/2)
		if err != nil {
			return nil, err
		}
		drivers[device.Name] = driver
	}

	return &Collector{
		drivers:      drivers,
		store:        store,
		backend:      backend,
		interval:     cfg.CollectInterval,
		logger:       logger,
		topoUpdateCh: topoUpdateCh,
		rtCache:      make(map[string]uint64, len(drivers)),
	}, nil
}

// Run collects from all devices immediately, then on every interval
// tick until stopCh closes.
func (c *Collector) Run(stopCh chan struct{}) {
	c.CollectAll(context.Background())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.CollectAll(context.Background())
		}
	}
}

// CollectAll polls every device concurrently and signals a topology
// rebuild if anything changed.
func (c *Collector) CollectAll(ctx context.Context) {
	var wg sync.WaitGroup
	var changedMu sync.Mutex
	changed := false

	for router, driver := range c.drivers {
		wg.Add(1)
		go func(router string, driver Driver) {
			defer wg.Done()
			routerChanged, err := c.collectOne(ctx, router, driver)
			if err != nil {
				collectErrors.WithLabelValues(router).Inc()
				c.logger.Errorf("collecting from %s: %v", router, err)
				return
			}
			if routerChanged {
				changedMu.Lock()
				changed = true
				changedMu.Unlock()
			}
		}(router, driver)
	}
	wg.Wait()

	if changed {
		select {
		case c.topoUpdateCh <- struct{}{}:
		default:
		}
	}
}

func (c *Collector) collectOne(ctx context.Context, router string, driver Driver) (bool, error) {
	start := time.Now()
	entries, err := driver.Collect(ctx)
	if err != nil {
		return false, err
	}
	collectDuration.WithLabelValues(router).Observe(float64(time.Since(start).Microseconds()))
	collectRoutes.WithLabelValues(router).Set(float64(len(entries)))

	sum := hashEntries(entries)
	c.mu.Lock()
	previous, seen := c.rtCache[router]
	c.rtCache[router] = sum
	c.mu.Unlock()
	if seen && previous == sum {
		return false, nil
	}

	c.store.ReplaceRouter(router, entries)
	if c.backend != nil {
		if err := c.backend.ReplaceRouter(router, entries); err != nil {
			c.logger.Errorf("persisting %s routes: %v", router, err)
		}
	}
	c.logger.Debugf("collected %d routes from %s in %v", len(entries), router, time.Since(start))
	return true, nil
}

// hashEntries produces a fingerprint of a device's table for cheap
// change detection between collections.
func hashEntries(entries []rib.Entry) uint64 {
	h := xxhash.New()
	for _, entry := range entries {
		h.Write([]byte(entry.Key()))
		h.Write([]byte{'\n'})
	}
	return h.Sum64()
}
