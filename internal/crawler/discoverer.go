package crawler

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/listing-harvester/internal/monitoring"
	"github.com/user/listing-harvester/pkg/utils"
	"go.uber.org/zap"
)

// DefaultMaxListings caps the number of detail URLs returned by discovery.
const DefaultMaxListings = 50

// DiscoveryRules decide which hrefs on a search page are listing detail pages.
type DiscoveryRules struct {
	SearchPath    string   // relative to the base URL
	DetailMarkers []string // href must contain one of these
	ExcludeMarker string   // resolved URL must not contain this
}

// DefaultRules match the rumah123 search and detail URL layout.
var DefaultRules = DiscoveryRules{
	SearchPath:    "jual/cari/",
	DetailMarkers: []string{"/properti/", "/jual/"},
	ExcludeMarker: "cari",
}

// Discoverer paginates the portal's search endpoint and collects detail URLs.
type Discoverer struct {
	base        *url.URL
	fetcher     PageFetcher
	rules       DiscoveryRules
	pacer       Pacer
	maxListings int
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

func NewDiscoverer(base *url.URL, f PageFetcher, rules DiscoveryRules, pacer Pacer, maxListings int, m *monitoring.Metrics, l *zap.Logger) *Discoverer {
	if maxListings <= 0 {
		maxListings = DefaultMaxListings
	}
	return &Discoverer{
		base:        base,
		fetcher:     f,
		rules:       rules,
		pacer:       pacer,
		maxListings: maxListings,
		metrics:     m,
		logger:      l,
	}
}

// SearchURL builds the search page URL for a query and 1-based page number.
func (d *Discoverer) SearchURL(query string, page int) string {
	u := d.base.ResolveReference(&url.URL{Path: d.rules.SearchPath})
	// Spaces go out as %20, not "+".
	q := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	u.RawQuery = "q=" + q + "&page=" + strconv.Itoa(page)
	return u.String()
}

// Discover returns up to maxListings unique detail URLs in discovery order.
// A page that fails to fetch is skipped.
func (d *Discoverer) Discover(ctx context.Context, query string, pages int) []string {
	set := newOrderedSet()

	for page := 1; page <= pages; page++ {
		if page > 1 {
			if err := d.pacer.Wait(ctx); err != nil {
				break
			}
		}

		searchURL := d.SearchURL(query, page)
		d.logger.Info("fetching search page", zap.Int("page", page), zap.String("url", searchURL))

		body, err := d.fetcher.Fetch(ctx, searchURL)
		if err != nil {
			d.logger.Warn("search page failed", zap.Int("page", page), zap.Error(err))
			d.metrics.IncPageFetched("search", "failed")
			d.metrics.IncErrorsTotal("fetch_failed")
			continue
		}
		d.metrics.IncPageFetched("search", "ok")

		before := set.Len()
		d.collectLinks(body, set)
		d.logger.Debug("search page scanned", zap.Int("page", page), zap.Int("new_links", set.Len()-before))
	}

	urls := set.Items()
	if len(urls) > d.maxListings {
		urls = urls[:d.maxListings]
	}
	d.metrics.AddDiscovered(len(urls))
	return urls
}

func (d *Discoverer) collectLinks(body []byte, set *orderedSet) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		d.logger.Warn("could not parse search page", zap.Error(err))
		return
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !utils.ContainsAny(href, d.rules.DetailMarkers) {
			return
		}
		full, err := utils.ToAbsoluteURL(d.base, href)
		if err != nil {
			return
		}
		if d.rules.ExcludeMarker != "" && utils.ContainsAny(full, []string{d.rules.ExcludeMarker}) {
			return
		}
		set.Add(full)
	})
}

// orderedSet keeps the first occurrence of each string.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) Add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet) Len() int { return len(s.items) }

func (s *orderedSet) Items() []string { return s.items }
