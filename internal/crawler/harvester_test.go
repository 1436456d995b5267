package crawler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/listing-harvester/internal/domain"
	"github.com/user/listing-harvester/internal/monitoring"
	"go.uber.org/zap/zaptest"
)

func listingPage(title string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><p>Rumah 3 kamar tidur, Rp 750 Juta</p></body></html>`, title)
}

// gatedFetcher tracks how many fetches run at the same time.
type gatedFetcher struct {
	inner   PageFetcher
	active  atomic.Int32
	maxSeen atomic.Int32
	hold    time.Duration
}

func (g *gatedFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		cur := g.maxSeen.Load()
		if n <= cur || g.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(g.hold)
	return g.inner.Fetch(ctx, u)
}

func newTestHarvester(t *testing.T, search, detail PageFetcher, m *monitoring.Metrics) *Harvester {
	t.Helper()
	return NewHarvester(Options{
		BaseURL:       testBase(t),
		SearchFetcher: search,
		DetailFetcher: detail,
		Rules:         DefaultRules,
		PageDelay:     NoDelay,
		DetailDelay:   NoDelay,
		Now:           func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) },
	}, m, zaptest.NewLogger(t))
}

func TestHarvestSkipsFailedListings(t *testing.T) {
	f := newStubFetcher()
	h := newTestHarvester(t, f, f, nil)

	f.set(h.discoverer.SearchURL("kos", 1), searchPage("/properti/depok/a/", "/properti/depok/b/"))
	f.set("https://www.rumah123.com/properti/depok/a/", listingPage("Kos Putri Nyaman Dekat Kampus"))

	summary := h.Harvest(context.Background(), domain.NewHarvestConfig("kos", 1, 5))

	assert.Equal(t, 2, summary.Discovered)
	require.Equal(t, 1, summary.Total)
	require.Len(t, summary.Properties, 1)
	rec := summary.Properties[0]
	assert.Equal(t, "https://www.rumah123.com/properti/depok/a/", rec.URL)
	assert.Equal(t, "Kos Putri Nyaman Dekat Kampus", rec.Title)
	assert.Equal(t, "Rp 750 Juta", rec.Price)
	assert.Equal(t, "3 KT", rec.Bedrooms)
	assert.Equal(t, "2024-01-02 03:04:05", rec.ScrapedAt)
	assert.NotEmpty(t, summary.ID)
}

func TestHarvestDropsPagesWithoutTitle(t *testing.T) {
	f := newStubFetcher()
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	h := newTestHarvester(t, f, f, m)

	f.set(h.discoverer.SearchURL("kos", 1), searchPage("/properti/depok/a/", "/properti/depok/b/"))
	f.set("https://www.rumah123.com/properti/depok/a/", listingPage("Kos"))
	f.set("https://www.rumah123.com/properti/depok/b/", listingPage("Kos Campur Murah Jakarta Selatan"))

	summary := h.Harvest(context.Background(), domain.NewHarvestConfig("kos", 1, 2))

	require.Len(t, summary.Properties, 1)
	assert.Equal(t, "https://www.rumah123.com/properti/depok/b/", summary.Properties[0].URL)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("no_title")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PropertiesHarvested))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetchedTotal.WithLabelValues("detail", "ok")))
}

func TestHarvestEmptyDiscovery(t *testing.T) {
	f := newStubFetcher()
	h := newTestHarvester(t, f, f, nil)

	summary := h.Harvest(context.Background(), domain.NewHarvestConfig("kos", 2, 5))

	assert.Equal(t, 0, summary.Total)
	assert.NotNil(t, summary.Properties)
	assert.Empty(t, summary.Properties)
	assert.Len(t, f.called(), 2)
}

func TestHarvestRespectsWorkerBound(t *testing.T) {
	stub := newStubFetcher()
	h := newTestHarvester(t, stub, nil, nil)

	var hrefs []string
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("/properti/depok/kos-%d/", i)
		hrefs = append(hrefs, path)
		stub.set("https://www.rumah123.com"+path, listingPage(fmt.Sprintf("Kos Nyaman Nomor %d Depok Baru", i)))
	}
	stub.set(h.discoverer.SearchURL("kos", 1), searchPage(hrefs...))

	gated := &gatedFetcher{inner: stub, hold: 20 * time.Millisecond}
	h.fetcher = gated

	summary := h.Harvest(context.Background(), domain.NewHarvestConfig("kos", 1, 3))

	assert.Equal(t, 12, summary.Total)
	assert.LessOrEqual(t, gated.maxSeen.Load(), int32(3))
	assert.GreaterOrEqual(t, gated.maxSeen.Load(), int32(1))

	seen := make(map[string]bool)
	for _, p := range summary.Properties {
		assert.False(t, seen[p.URL], "duplicate %s", p.URL)
		seen[p.URL] = true
	}
}

func TestHarvestSingleWorkerKeepsDiscoveryOrder(t *testing.T) {
	f := newStubFetcher()
	h := newTestHarvester(t, f, f, nil)

	f.set(h.discoverer.SearchURL("kos", 1), searchPage("/properti/a/", "/properti/b/", "/properti/c/"))
	for _, p := range []string{"a", "b", "c"} {
		f.set("https://www.rumah123.com/properti/"+p+"/", listingPage("Listing Rumah Tipe "+p+" Siap Huni"))
	}

	summary := h.Harvest(context.Background(), domain.NewHarvestConfig("kos", 1, 1))

	require.Len(t, summary.Properties, 3)
	assert.Equal(t, "https://www.rumah123.com/properti/a/", summary.Properties[0].URL)
	assert.Equal(t, "https://www.rumah123.com/properti/b/", summary.Properties[1].URL)
	assert.Equal(t, "https://www.rumah123.com/properti/c/", summary.Properties[2].URL)
}

// panicFetcher returns bodies that make the harvester blow up.
type panicFetcher struct{}

func (panicFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	panic("boom")
}

func TestHarvestRecoversFromPanics(t *testing.T) {
	f := newStubFetcher()
	h := newTestHarvester(t, f, panicFetcher{}, nil)
	f.set(h.discoverer.SearchURL("kos", 1), searchPage("/properti/a/"))

	var summary domain.HarvestSummary
	assert.NotPanics(t, func() {
		summary = h.Harvest(context.Background(), domain.NewHarvestConfig("kos", 1, 1))
	})
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 1, summary.Discovered)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
