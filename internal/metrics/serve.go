package metrics

import (
	"flag"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DrC0ns0le/net-topo/pkg/logging"
)

var (
	metricsPort = flag.Int("metrics.port", 5120, "port for metrics server")

	metricsPath = flag.String("metrics.path", "/metrics", "path for metrics server")
)

func Serve() {
	http.Handle(*metricsPath, promhttp.Handler())
	logging.Infof("Serving metrics on :%d", *metricsPort)
	http.ListenAndServe(":"+strconv.Itoa(*metricsPort), nil)
}
