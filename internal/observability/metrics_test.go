package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordJoin("offered")
	m.RecordJoin("offered")
	m.RecordJoin("waiting")
	m.RecordPromotions(3)
	m.RecordPromotions(0)
	m.RecordTask("expire_offer", "ok")
	m.RecordRequest("/events/:eventId/availability", "GET", 200, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.joins.WithLabelValues("offered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joins.WithLabelValues("waiting")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.promotions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasks.WithLabelValues("expire_offer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/events/:eventId/availability", "GET", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordJoin("offered")
		m.RecordExpiry("expired")
		m.RecordPurchase()
		m.RecordError("/", "GET", "INTERNAL_ERROR")
	})
	assert.Nil(t, m.Registry())
}
