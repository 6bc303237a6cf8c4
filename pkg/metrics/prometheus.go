package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultMetricsPath = "/metrics"

var httpLabels = []string{"code", "method", "route"}

var (
	reqCnt = &Metric{Name: "req_total", Help: "HTTP requests processed, partitioned by status code, method and route.", Kind: KindCounterVec, Labels: httpLabels}
	reqDur = &Metric{Name: "req_dur_ms", Help: "HTTP request latencies in milliseconds.", Kind: KindHistogramVec, Labels: httpLabels}
	reqSz  = &Metric{Name: "req_sz_bytes", Help: "Approximate HTTP request sizes in bytes.", Kind: KindSummaryVec, Labels: httpLabels}
	resSz  = &Metric{Name: "resp_sz_bytes", Help: "HTTP response sizes in bytes.", Kind: KindSummaryVec, Labels: httpLabels}
)

// RouteLabelFn maps a request to its route label. It must return a bounded
// set of values; raw paths carry customer and order ids.
type RouteLabelFn func(c *gin.Context) string

// FullPathLabel labels by the matched route template, or "unmatched".
func FullPathLabel(c *gin.Context) string {
	if fp := c.FullPath(); fp != "" {
		return fp
	}
	return "unmatched"
}

type HTTPOptions struct {
	Subsystem   string
	MetricsPath string
	RouteLabel  RouteLabelFn
}

// HTTP records request metrics for a gin engine.
type HTTP struct {
	reqCnt       *prometheus.CounterVec
	reqDur       *prometheus.HistogramVec
	reqSz, resSz *prometheus.SummaryVec

	path  string
	route RouteLabelFn
}

func NewHTTP(reg prometheus.Registerer, opts HTTPOptions) (*HTTP, error) {
	h := &HTTP{path: opts.MetricsPath, route: opts.RouteLabel}
	if h.path == "" {
		h.path = DefaultMetricsPath
	}
	if h.route == nil {
		h.route = FullPathLabel
	}
	for _, def := range []*Metric{reqCnt, reqDur, reqSz, resSz} {
		c, err := register(reg, def, opts.Subsystem)
		if err != nil {
			return nil, err
		}
		switch def {
		case reqCnt:
			h.reqCnt = c.(*prometheus.CounterVec)
		case reqDur:
			h.reqDur = c.(*prometheus.HistogramVec)
		case reqSz:
			h.reqSz = c.(*prometheus.SummaryVec)
		case resSz:
			h.resSz = c.(*prometheus.SummaryVec)
		}
	}
	return h, nil
}

// Path is where the exposition handler is mounted.
func (h *HTTP) Path() string { return h.path }

// Handler serves the default gatherer, which also carries the business metrics.
func (h *HTTP) Handler() http.Handler { return promhttp.Handler() }

// Middleware observes every request except scrapes of the metrics path.
func (h *HTTP) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == h.path {
			c.Next()
			return
		}
		start := time.Now()
		in := requestSize(c.Request)

		c.Next()

		labels := []string{strconv.Itoa(c.Writer.Status()), c.Request.Method, h.route(c)}
		h.reqCnt.WithLabelValues(labels...).Inc()
		h.reqDur.WithLabelValues(labels...).Observe(MillisecondsSince(start))
		h.reqSz.WithLabelValues(labels...).Observe(float64(in))
		h.resSz.WithLabelValues(labels...).Observe(float64(max(c.Writer.Size(), 0)))
	}
}

// Mount installs the middleware on e. When exposeOnEngine is set the
// exposition handler is also served by e; otherwise the caller runs it on a
// separate listener via Handler.
func (h *HTTP) Mount(e *gin.Engine, exposeOnEngine bool) {
	e.Use(h.Middleware())
	if exposeOnEngine {
		e.GET(h.path, gin.WrapH(h.Handler()))
	}
}
