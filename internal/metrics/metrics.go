// metrics описывает Prometheus-метрики сервиса.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы операций (значения метки outcome).
const (
	OutcomeSuccess         = "success"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeDuplicate       = "duplicate"
	OutcomeInvalid         = "invalid_credentials"
	OutcomeLocked          = "locked"
	OutcomeInvalidToken    = "invalid_token"
	OutcomeRevoked         = "revoked"
	OutcomeExpired         = "expired"
	OutcomeRisk            = "session_risk"
	OutcomeError           = "error"
)

// Metrics - счётчики auth-потоков и гистограмма HTTP.
// Все методы безопасны для nil-получателя: метрики можно не подключать в тестах.
type Metrics struct {
	registry *prometheus.Registry

	loginTotal    *prometheus.CounterVec
	refreshTotal  *prometheus.CounterVec
	registerTotal *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New создаёт и регистрирует метрики в собственном реестре вместе с Go/process коллекторами.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		loginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_auth_login_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_auth_refresh_total",
				Help: "Refresh token rotations by outcome",
			},
			[]string{"outcome"},
		),
		registerTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_auth_register_total",
				Help: "Registrations by outcome",
			},
			[]string{"outcome"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(
		m.loginTotal,
		m.refreshTotal,
		m.registerTotal,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Login(outcome string) {
	if m != nil {
		m.loginTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Refresh(outcome string) {
	if m != nil {
		m.refreshTotal.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Register(outcome string) {
	if m != nil {
		m.registerTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveHTTP записывает длительность запроса; route - шаблон маршрута chi.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m != nil {
		m.httpDuration.WithLabelValues(method, route, status).Observe(seconds)
	}
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
