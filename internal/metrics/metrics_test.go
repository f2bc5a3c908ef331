package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"beacon/internal/domain/notification"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDispatch(t *testing.T) {
	m := New(prometheus.NewRegistry())
	cat := notification.MustCategory(notification.SeverityError, "Payment failed")

	m.ObserveDispatch(cat, notification.Report{Outcomes: []notification.Outcome{
		{Transport: "log"},
		{Transport: "slack", Err: errors.New("timeout")},
	}}, 20*time.Millisecond)
	m.ObserveDispatch(cat, notification.Report{Outcomes: []notification.Outcome{
		{Transport: "slack", Err: errors.New("timeout")},
	}}, time.Millisecond)
	m.ObserveDispatch(cat, notification.Report{Outcomes: []notification.Outcome{
		{Transport: "log"},
	}}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("error", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("error", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("error", "delivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transportResults.WithLabelValues("slack", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transportResults.WithLabelValues("log", "ok")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/items/:id", "GET", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")))
}
