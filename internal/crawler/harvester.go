package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/listing-harvester/internal/domain"
	"github.com/user/listing-harvester/internal/monitoring"
	"github.com/user/listing-harvester/internal/proxy"
	"go.uber.org/zap"
)

// Options configure a Harvester.
type Options struct {
	BaseURL       *url.URL
	SearchFetcher PageFetcher
	DetailFetcher PageFetcher
	Rules         DiscoveryRules
	PageDelay     Pacer // between search pages
	DetailDelay   Pacer // after each detail page
	MaxListings   int
	Now           func() time.Time
}

// Harvester runs one discovery + fetch + extract pass. It holds no state
// between runs; build a new one per request.
type Harvester struct {
	discoverer  *Discoverer
	fetcher     PageFetcher
	detailDelay Pacer
	now         func() time.Time
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

type scrapeResult struct {
	url    string
	record domain.PropertyRecord
	ok     bool
}

func NewHarvester(opts Options, m *monitoring.Metrics, l *zap.Logger) *Harvester {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Harvester{
		discoverer:  NewDiscoverer(opts.BaseURL, opts.SearchFetcher, opts.Rules, opts.PageDelay, opts.MaxListings, m, l),
		fetcher:     opts.DetailFetcher,
		detailDelay: opts.DetailDelay,
		now:         opts.Now,
		metrics:     m,
		logger:      l,
	}
}

// NewPortalOptions builds Options for the portal at base. Search and detail
// requests carry the same header set, including base as Referer; only the
// timeouts differ. pm may be nil.
func NewPortalOptions(base *url.URL, searchTimeout, detailTimeout time.Duration, pm *proxy.Manager) Options {
	referer := base.String()
	return Options{
		BaseURL:       base,
		SearchFetcher: NewFetcher(searchTimeout, referer, pm),
		DetailFetcher: NewFetcher(detailTimeout, referer, pm),
		Rules:         DefaultRules,
	}
}

// ParseBaseURL validates an absolute portal URL and makes sure its path ends with "/".
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// Harvest discovers listing URLs and scrapes them with cfg.Workers goroutines.
// Records come back in completion order; failed URLs are left out.
func (h *Harvester) Harvest(ctx context.Context, cfg domain.HarvestConfig) domain.HarvestSummary {
	summary := domain.HarvestSummary{
		ID:         uuid.NewString(),
		Query:      cfg.Query,
		Pages:      cfg.Pages,
		Workers:    cfg.Workers,
		StartedAt:  h.now(),
		Properties: []domain.PropertyRecord{},
	}
	logger := h.logger.With(zap.String("harvest_id", summary.ID))
	logger.Info("starting harvest", zap.String("query", cfg.Query), zap.Int("pages", cfg.Pages), zap.Int("workers", cfg.Workers))

	start := time.Now()
	defer func() { h.metrics.ObserveHarvest(time.Since(start)) }()

	urls := h.discoverer.Discover(ctx, cfg.Query, cfg.Pages)
	summary.Discovered = len(urls)
	logger.Info("discovery finished", zap.Int("listings", len(urls)))

	if len(urls) == 0 {
		summary.FinishedAt = h.now()
		return summary
	}

	workerCount := cfg.Workers
	if len(urls) < workerCount {
		workerCount = len(urls)
	}

	jobs := make(chan string, len(urls))
	results := make(chan scrapeResult, len(urls))
	var wg sync.WaitGroup

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go h.worker(ctx, jobs, results, &wg, logger)
	}

	for _, u := range urls {
		jobs <- u
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if !res.ok {
			continue
		}
		summary.Properties = append(summary.Properties, res.record)
		h.metrics.IncHarvested()
		logger.Info("scraped listing", zap.String("url", res.url), zap.String("title", truncate(res.record.Title, 50)))
	}

	summary.Total = len(summary.Properties)
	summary.FinishedAt = h.now()
	logger.Info("harvest finished", zap.Int("total", summary.Total), zap.Int("discovered", summary.Discovered))
	return summary
}

func (h *Harvester) worker(ctx context.Context, jobs <-chan string, results chan<- scrapeResult, wg *sync.WaitGroup, logger *zap.Logger) {
	defer wg.Done()
	for u := range jobs {
		record, ok := h.scrape(ctx, u, logger)
		results <- scrapeResult{url: u, record: record, ok: ok}
	}
}

func (h *Harvester) scrape(ctx context.Context, pageURL string, logger *zap.Logger) (record domain.PropertyRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("extraction panicked", zap.String("url", pageURL), zap.Any("panic", r))
			h.metrics.IncErrorsTotal("extract_panic")
			record, ok = domain.PropertyRecord{}, false
		}
	}()

	body, err := h.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		logger.Warn("failed to fetch listing", zap.String("url", pageURL), zap.Error(err))
		h.metrics.IncPageFetched("detail", "failed")
		h.metrics.IncErrorsTotal("fetch_failed")
		return domain.PropertyRecord{}, false
	}
	h.metrics.IncPageFetched("detail", "ok")

	record, ok = ExtractProperty(pageURL, body, h.now())
	if !ok {
		logger.Info("listing has no title, skipping", zap.String("url", pageURL))
		h.metrics.IncErrorsTotal("no_title")
	}

	_ = h.detailDelay.Wait(ctx)
	return record, ok
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
