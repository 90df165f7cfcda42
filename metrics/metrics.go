// Package metrics exposes Prometheus collectors for the dispatch engine and the HTTP API.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"petsos/sos"
)

// Collector implements sos.Recorder.
type Collector struct {
	// engine
	operationsTotal *prometheus.CounterVec
	broadcastsTotal prometheus.Counter
	deliveriesTotal prometheus.Counter
	observers       prometheus.Gauge
	cases           prometheus.Gauge

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	routes              map[string]bool
}

// UnmatchedRoute is the path label for requests outside the tracked routes.
const UnmatchedRoute = "unmatched"

var _ sos.Recorder = (*Collector)(nil)

// NewCollector registers every collector on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sos_operations_total",
				Help: "SOS operations by name and outcome",
			},
			[]string{"operation", "result"},
		),
		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sos_broadcasts_total",
			Help: "Snapshots broadcast after a committed mutation",
		}),
		deliveriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sos_snapshot_deliveries_total",
			Help: "Snapshots queued to individual observers",
		}),
		observers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sos_observers",
			Help: "Currently registered snapshot observers",
		}),
		cases: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sos_cases",
			Help: "Cases held by the store",
		}),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		routes: make(map[string]bool),
	}
}

// TrackRoutes sets the paths reported verbatim in HTTP metrics. Call it before
// serving; any other path is reported as UnmatchedRoute.
func (c *Collector) TrackRoutes(paths ...string) {
	for _, p := range paths {
		c.routes[p] = true
	}
}

func (c *Collector) ObserveOperation(op string, err error) {
	c.operationsTotal.WithLabelValues(op, resultLabel(err)).Inc()
}

func (c *Collector) ObserveBroadcast(observers int) {
	c.broadcastsTotal.Inc()
	c.deliveriesTotal.Add(float64(observers))
}

func (c *Collector) SetObservers(n int) { c.observers.Set(float64(n)) }

func (c *Collector) SetCases(n int) { c.cases.Set(float64(n)) }

// ObserveHTTP records one finished request.
func (c *Collector) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if !c.routes[path] {
		path = UnmatchedRoute
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sos.ErrCaseNotFound):
		return "not_found"
	case errors.Is(err, sos.ErrCaseClosed):
		return "closed"
	case errors.Is(err, sos.ErrServiceClosed):
		return "shutdown"
	default:
		return "error"
	}
}
