package obs

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request collectors. Every series carries a surface
// label so payment, courier, address and webhook traffic can be told apart
// without matching on route patterns.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

var defaultBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// NewHTTPMetrics registers the request collectors on reg, reusing collectors
// that are already registered under the same names.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultBucketsMs
	}
	buckets = append([]float64(nil), buckets...)
	sort.Float64s(buckets)

	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by surface, route and status.",
		}, []string{"surface", "method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"surface", "method", "route"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Requests currently being served, by surface.",
		}, []string{"surface"}),
	}
	mustRegisterCollector(reg, m.ReqTotal, func(e prometheus.Collector) { reuseCounterVec(e, &m.ReqTotal) })
	mustRegisterCollector(reg, m.ReqDur, func(e prometheus.Collector) {
		if v, ok := e.(*prometheus.HistogramVec); ok {
			m.ReqDur = v
		}
	})
	mustRegisterCollector(reg, m.InFlight, func(e prometheus.Collector) {
		if v, ok := e.(*prometheus.GaugeVec); ok {
			m.InFlight = v
		}
	})
	return m
}

// Surface maps a request path or route pattern to the API area it belongs to.
func Surface(path string) string {
	first := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	switch first {
	case "payment", "courier", "addresses", "health", "metrics":
		return first
	case "webhooks":
		return "webhook"
	case "debug":
		return "pprof"
	default:
		return "other"
	}
}

// ParseBucketsCSV reads OBS_METRICS_BUCKETS_MS. Entries that are empty,
// unparsable or not positive are skipped.
func ParseBucketsCSV(csv string) []float64 {
	var out []float64
	for _, part := range strings.Split(csv, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

// DurationMillis converts a duration to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
