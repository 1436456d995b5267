package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Sentinels used when a field cannot be extracted from a listing page.
const (
	NotAvailable = "N/A"
	ContactAgent = "Hubungi Agen"
)

// ScrapedAtLayout is the layout of PropertyRecord.ScrapedAt.
const ScrapedAtLayout = "2006-01-02 15:04:05"

// Request bounds and defaults for a harvest run.
const (
	DefaultQuery   = "kos"
	DefaultPages   = 2
	MinPages       = 1
	MaxPages       = 10
	DefaultWorkers = 5
	MinWorkers     = 1
	MaxWorkers     = 20
)

// ErrInvalidRequest is returned when a harvest request body cannot be used.
var ErrInvalidRequest = errors.New("invalid harvest request")

// PropertyRecord holds the fields extracted from one listing detail page.
// Missing values carry a sentinel, never an empty string.
type PropertyRecord struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Price        string   `json:"price"`
	Location     string   `json:"location"`
	Bedrooms     string   `json:"bedrooms"`
	Bathrooms    string   `json:"bathrooms"`
	LandSize     string   `json:"land_size"`
	BuildingSize string   `json:"building_size"`
	Description  string   `json:"description"`
	Agent        string   `json:"agent"`
	Images       []string `json:"images"`
	ScrapedAt    string   `json:"scraped_at"`
}

// HarvestRequest is the payload accepted by the crawl endpoint.
type HarvestRequest struct {
	Query   *string  `json:"query"`
	Pages   *FlexInt `json:"pages"`
	Workers *FlexInt `json:"workers"`
}

// HarvestConfig is a validated, clamped harvest request.
type HarvestConfig struct {
	Query   string
	Pages   int
	Workers int
}

// HarvestSummary describes one finished harvest run.
type HarvestSummary struct {
	ID         string           `json:"id"`
	Query      string           `json:"query"`
	Pages      int              `json:"pages"`
	Workers    int              `json:"workers"`
	Discovered int              `json:"discovered"`
	Total      int              `json:"total"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Properties []PropertyRecord `json:"properties"`
}

// CrawlResponse is the body returned by a successful crawl.
type CrawlResponse struct {
	Success    bool             `json:"success"`
	Properties []PropertyRecord `json:"properties"`
	Total      int              `json:"total"`
	HarvestID  string           `json:"harvest_id,omitempty"`
}

// ErrorResponse is the body returned when a request fails.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FlexInt decodes a JSON number or an integer string into an int.
// Fractional numbers are truncated toward zero and values beyond the int range
// saturate. Strings must hold an integer.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		n, err := atoiSaturating(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrInvalidRequest, s)
		}
		*f = FlexInt(n)
		return nil
	}

	raw := string(data)
	if n, err := atoiSaturating(raw); err == nil {
		*f = FlexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %s is not a number", ErrInvalidRequest, raw)
	}
	if math.IsNaN(v) {
		return fmt.Errorf("%w: %s is not a number", ErrInvalidRequest, raw)
	}
	*f = FlexInt(saturate(v))
	return nil
}

// atoiSaturating parses a base-10 integer, clamping out-of-range values to the int bounds.
func atoiSaturating(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return n, nil
}

func saturate(v float64) int {
	switch {
	case v >= math.MaxInt:
		return math.MaxInt
	case v <= math.MinInt:
		return math.MinInt
	}
	return int(v)
}

// DecodeHarvestRequest reads a request body. An empty body yields the zero request.
func DecodeHarvestRequest(body []byte) (HarvestRequest, error) {
	var req HarvestRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return HarvestRequest{}, err
		}
		return HarvestRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

// Config applies defaults and bounds to the request.
func (r HarvestRequest) Config() HarvestConfig {
	query := DefaultQuery
	if r.Query != nil && strings.TrimSpace(*r.Query) != "" {
		query = strings.TrimSpace(*r.Query)
	}

	pages := DefaultPages
	if r.Pages != nil {
		pages = int(*r.Pages)
	}
	workers := DefaultWorkers
	if r.Workers != nil {
		workers = int(*r.Workers)
	}

	return NewHarvestConfig(query, pages, workers)
}

// NewHarvestConfig clamps pages to [1,10] and workers to [1,20].
func NewHarvestConfig(query string, pages, workers int) HarvestConfig {
	return HarvestConfig{
		Query:   query,
		Pages:   clamp(pages, MinPages, MaxPages),
		Workers: clamp(workers, MinWorkers, MaxWorkers),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
