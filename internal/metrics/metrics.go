package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garnizeh/simplymeet/internal/agenda"
	"github.com/garnizeh/simplymeet/internal/reminders"
	"github.com/garnizeh/simplymeet/pkg/odoo"
)

const defaultNamespace = "simplymeet"

// Metrics exports backend calls, day cache lookups and reminder scheduling
// outcomes to Prometheus.
type Metrics struct {
	rpcDuration  *prometheus.HistogramVec
	rpcCalls     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	reminders    *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

var (
	_ odoo.Observer        = (*Metrics)(nil)
	_ agenda.CacheObserver = (*Metrics)(nil)
	_ reminders.Observer   = (*Metrics)(nil)
)

// New registers the collectors on reg (the default registry when nil).
// Collectors already registered under the same names are reused.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "odoo",
			Name:      "call_duration_seconds",
			Help:      "Latency of JSON-RPC calls to Odoo, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "odoo",
			Name:      "calls_total",
			Help:      "JSON-RPC calls to Odoo by outcome.",
		}, []string{"service", "method", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "day_cache",
			Name:      "lookups_total",
			Help:      "Day cache lookups by result.",
		}, []string{"result"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "requests_total",
			Help:      "Reminder schedule requests by result.",
		}, []string{"result"}),
		gatherer: prometheus.DefaultGatherer,
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	var err error
	if m.rpcDuration, err = register(reg, m.rpcDuration); err != nil {
		return nil, fmt.Errorf("register odoo call histogram: %w", err)
	}
	if m.rpcCalls, err = register(reg, m.rpcCalls); err != nil {
		return nil, fmt.Errorf("register odoo call counter: %w", err)
	}
	if m.cacheLookups, err = register(reg, m.cacheLookups); err != nil {
		return nil, fmt.Errorf("register day cache counter: %w", err)
	}
	if m.reminders, err = register(reg, m.reminders); err != nil {
		return nil, fmt.Errorf("register reminders counter: %w", err)
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// ObserveCall implements odoo.Observer.
func (m *Metrics) ObserveCall(service, method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(service, method).Observe(d.Seconds())
	m.rpcCalls.WithLabelValues(service, method, Outcome(err)).Inc()
}

// ObserveCacheLookup implements agenda.CacheObserver.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveReminders implements reminders.Observer.
func (m *Metrics) ObserveReminders(scheduled, failed int) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues("scheduled").Add(float64(scheduled))
	m.reminders.WithLabelValues("failed").Add(float64(failed))
}

// Handler serves the registry the collectors were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Outcome names the error class of a backend call for the outcome label.
func Outcome(err error) string {
	var (
		te *odoo.TransportError
		re *odoo.RemoteError
		pe *odoo.ProtocolError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, odoo.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, odoo.ErrTimeout):
		return "timeout"
	case errors.Is(err, odoo.ErrAuthenticationFailed):
		return "auth_failed"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &re):
		return "remote"
	case errors.As(err, &pe):
		return "protocol"
	case errors.As(err, &te):
		return "transport"
	}
	return "error"
}
