package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certfresh/internal/freshness"
)

const namespace = "certfresh"

// Check results that are not a verdict status.
const (
	ResultTransportError = "transport_error"
	ResultHandshakeError = "handshake_error"
	ResultRejected       = "rejected"
)

type Collector struct {
	Registry *prometheus.Registry

	checks          *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	activeRequests  prometheus.Gauge
	expiry          *prometheus.GaugeVec

	startTime time.Time
}

var Default = NewCollector()

// NewCollector builds a Collector on its own registry, with the Go runtime
// and process collectors attached.
func NewCollector() *Collector {
	c := &Collector{
		Registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Certificate checks by result.",
		}, []string{"result"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Time spent dialing and handshaking, by result.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by status code.",
		}, []string{"code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_active_requests",
			Help:      "Requests currently being served.",
		}),
		expiry: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "certificate_expiry_timestamp_seconds",
			Help:      "notAfter of the leaf certificate of each watched host, as a Unix timestamp.",
		}, []string{"hostname"}),
	}

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the process started.",
	}, func() float64 { return time.Since(c.startTime).Seconds() })

	c.Registry.MustRegister(
		c.checks,
		c.checkDuration,
		c.requests,
		c.requestDuration,
		c.activeRequests,
		c.expiry,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveCheck records one probe outcome.
func (c *Collector) ObserveCheck(result string, d time.Duration) {
	c.checks.WithLabelValues(result).Inc()
	c.checkDuration.WithLabelValues(result).Observe(d.Seconds())
}

// SetExpiry publishes a watched host's notAfter. Only the watcher calls
// this, so the hostname label stays bounded by WATCH_HOSTNAMES.
func (c *Collector) SetExpiry(hostname string, notAfter time.Time) {
	c.expiry.WithLabelValues(hostname).Set(float64(notAfter.Unix()))
}

// ClearExpiry drops the series of a host whose certificate could not be read.
func (c *Collector) ClearExpiry(hostname string) {
	c.expiry.DeleteLabelValues(hostname)
}

// Middleware counts requests by final status code. Errors from the chain
// are passed to the app's error handler here so the code is known.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		c.activeRequests.Inc()
		start := time.Now()

		if err := ctx.Next(); err != nil {
			handleError(ctx, err)
		}

		c.activeRequests.Dec()
		c.requestDuration.Observe(time.Since(start).Seconds())
		c.requests.WithLabelValues(strconv.Itoa(ctx.Response().StatusCode())).Inc()
		return nil
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}))
}

func handleError(ctx *fiber.Ctx, err error) {
	errHandler := ctx.App().Config().ErrorHandler
	if errHandler == nil {
		errHandler = fiber.DefaultErrorHandler
	}
	if herr := errHandler(ctx, err); herr != nil {
		_ = ctx.SendStatus(fiber.StatusInternalServerError)
	}
}

// Instrument wraps p so every call is counted and timed.
func Instrument(p freshness.Prober, c *Collector) freshness.Prober {
	return &instrumented{next: p, c: c}
}

type instrumented struct {
	next freshness.Prober
	c    *Collector
}

func (i *instrumented) Check(ctx context.Context, req freshness.Request) (freshness.Verdict, error) {
	start := time.Now()
	v, err := i.next.Check(ctx, req)
	i.c.ObserveCheck(resultOf(v, err), time.Since(start))
	return v, err
}

func (i *instrumented) CheckOrFail(ctx context.Context, req freshness.Request) (freshness.Verdict, error) {
	start := time.Now()
	v, err := i.next.CheckOrFail(ctx, req)
	i.c.ObserveCheck(resultOf(v, err), time.Since(start))
	return v, err
}

func resultOf(v freshness.Verdict, err error) string {
	switch {
	case err == nil:
		return v.Status.String()
	case freshness.IsHandshakeFailure(err):
		return ResultHandshakeError
	case errors.Is(err, freshness.ErrThresholdOutOfRange):
		return ResultRejected
	default:
		return ResultTransportError
	}
}
