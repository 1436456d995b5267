package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCount(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.IncPageFetched("detail", "ok")
	m.IncPageFetched("detail", "ok")
	m.IncPageFetched("search", "failed")
	m.AddDiscovered(7)
	m.IncHarvested()
	m.IncErrorsTotal("fetch_failed")
	m.ObserveHarvest(2 * time.Second)
	m.ObserveHTTP("POST", "/crawl", "200", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues("detail", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues("search", "failed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.ListingsDiscovered))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PropertiesHarvested))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("fetch_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/crawl", "200")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncPageFetched("detail", "ok")
		m.AddDiscovered(1)
		m.IncHarvested()
		m.IncErrorsTotal("x")
		m.ObserveHarvest(time.Second)
		m.ObserveHTTP("GET", "/", "200", time.Second)
	})
}
