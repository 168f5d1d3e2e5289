// Package metricsvc exposes the service's Prometheus collectors.
package metricsvc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

const namespace = "gsrp"

type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	applications  prometheus.Counter
	registrations prometheus.Counter
	logins        *prometheus.CounterVec
	emails        *prometheus.CounterVec
	sheetSyncs    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		applications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "applications_submitted_total",
			Help:      "Total number of enrollment applications accepted.",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of user accounts registered.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts.",
		}, []string{"success"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Total number of emails handed to the mail provider.",
		}, []string{"template"}),
		sheetSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_syncs_total",
			Help:      "Total number of Google Sheets synchronisations.",
		}, []string{"success"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.applications,
		m.registrations,
		m.logins,
		m.emails,
		m.sheetSyncs,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations labelled by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) ApplicationSubmitted() { m.applications.Inc() }
func (m *Metrics) UserRegistered()       { m.registrations.Inc() }

func (m *Metrics) Login(success bool) {
	m.logins.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) EmailSent(template string) {
	m.emails.WithLabelValues(template).Inc()
}

// EmailService counts the messages handed to svc by template name.
func (m *Metrics) EmailService(svc core.EmailService) core.EmailService {
	return countingEmailService{EmailService: svc, metrics: m}
}

type countingEmailService struct {
	core.EmailService
	metrics *Metrics
}

func (svc countingEmailService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.metrics.EmailSent(msg.TemplateName)
	}
	svc.EmailService.SendMessages(messages...)
}

func (m *Metrics) SheetSync(success bool) {
	m.sheetSyncs.WithLabelValues(strconv.FormatBool(success)).Inc()
}
