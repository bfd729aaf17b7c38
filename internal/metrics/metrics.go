package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tewo-market/gateway/internal/models"
)

// Metrics holds the gateway collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	calls        *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	rewardSteps  *prometheus.CounterVec
	requests     *prometheus.CounterVec
	sessions     prometheus.Gauge
}

func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "calls_total",
			Help:      "Contract and plugin calls by method and outcome",
		}, []string{"method", "outcome"}),
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "call_seconds",
			Help:      "Contract call latency including receipt wait",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"method"}),
		rewardSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "reward_steps_total",
			Help:      "Bonus flow steps by step and outcome",
		}, []string{"step", "outcome"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "sessions_active",
			Help:      "Open gateway sessions",
		}),
	}
}

// Outcome classifies an error for the outcome label.
func Outcome(err error) string {
	var callErr *models.ContractCallError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, models.ErrUserRejected):
		return "rejected"
	case errors.Is(err, models.ErrTxStatusUnknown):
		return "unknown"
	case errors.As(err, &callErr):
		return "failed"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveCall(method string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, Outcome(err)).Inc()
	m.callDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func (m *Metrics) RewardStep(step string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.rewardSteps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

// Middleware counts requests by matched route, not raw path.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if m == nil {
			return err
		}
		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		m.requests.WithLabelValues(c.Method(), c.Route().Path, strconv.Itoa(status)).Inc()
		return err
	}
}

// Handler serves the registry in the text exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
