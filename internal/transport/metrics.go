package transport

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the request metrics of instrumented executors
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// NewMetrics creates the request metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apy",
				Name:      "requests_total",
				Help:      "Total number of backend requests",
			},
			[]string{"method", "resource", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "apy",
				Name:      "request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "resource"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "apy",
				Name:      "requests_in_flight",
				Help:      "Number of backend requests currently in flight",
			},
		),
	}
}

// Instrumented records count, duration and in-flight requests. Failed
// transports are counted with status "error". The path of endpoint is
// stripped from request URLs before labelling them by resource.
func Instrumented(m *Metrics, endpoint string) Middleware {
	base := basePath(endpoint)
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			resp, err := next.Do(ctx, req)

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			m.observe(req.Method, resourceLabel(req.URL, base), status, time.Since(start))
			return resp, err
		})
	}
}

// Observe records one finished request. A zero status counts as "error",
// a request that got no response.
func (m *Metrics) Observe(method, rawURL string, status int, elapsed time.Duration) {
	m.observe(method, resourceLabel(rawURL, ""), status, elapsed)
}

func (m *Metrics) observe(method, resource string, status int, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(method, resource).Observe(elapsed.Seconds())

	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.RequestsTotal.WithLabelValues(method, resource, label).Inc()
}

// basePath returns the path of an endpoint URL without surrounding slashes
func basePath(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}

// resourceLabel keeps the first path segment below base so item ids do not
// explode label cardinality
func resourceLabel(raw, base string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "unknown"
	}
	path := strings.Trim(u.Path, "/")
	if base != "" {
		if path == base {
			path = ""
		} else if rest, ok := strings.CutPrefix(path, base+"/"); ok {
			path = rest
		}
	}
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
