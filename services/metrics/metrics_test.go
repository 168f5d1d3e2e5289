package metricsvc

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollgsrp/gsrp-enroll/core"
)

func TestMiddleware(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/applications/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/api/applications/1", "/api/applications/2", "/api/applications/missing", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/applications/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/applications/:id", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/boom", "500")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.httpInFlight))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ApplicationSubmitted()
	m.ApplicationSubmitted()
	m.UserRegistered()
	m.Login(true)
	m.Login(false)
	m.Login(false)
	m.EmailSent("user_confirmation")
	m.SheetSync(true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.applications))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.registrations))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.logins.WithLabelValues("false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.emails.WithLabelValues("user_confirmation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sheetSyncs.WithLabelValues("true")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.UserRegistered()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "gsrp_registrations_total 1"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

type nopEmailService struct{ sent int }

func (svc *nopEmailService) SendMessages(messages ...*core.EmailMessage) { svc.sent += len(messages) }

func TestEmailService(t *testing.T) {
	m := New()
	inner := new(nopEmailService)
	svc := m.EmailService(inner)

	svc.SendMessages(
		&core.EmailMessage{TemplateName: "user_confirmation"},
		&core.EmailMessage{TemplateName: "test_message"},
	)
	svc.SendMessages(&core.EmailMessage{TemplateName: "user_confirmation"})

	assert.Equal(t, 3, inner.sent)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.emails.WithLabelValues("user_confirmation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.emails.WithLabelValues("test_message")))
}
