// Package scraper fetches product pages and extracts the tracked fields from
// their static markup.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

var (
	// ErrFetch covers transport failures and non-2xx responses.
	ErrFetch = errors.New("fetch failed")
	// ErrParse covers documents the HTML parser rejects.
	ErrParse = errors.New("parse failed")
)

const defaultTimeout = 15 * time.Second

// browserHeaders makes the request look like a regular desktop browser. Some
// stores serve stripped-down or blocked pages to obvious bots.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Cache-Control":             "no-cache",
	"Pragma":                    "no-cache",
}

// Selectors carries the optional explicit selectors for a scrape. An empty
// field means auto-detect.
type Selectors struct {
	Name  string
	Stock string
	Image string
}

// Service fetches and extracts product data from store pages.
type Service struct {
	client *resty.Client
	logger *slog.Logger
}

// NewService creates a scraper with the given request timeout. A zero timeout
// falls back to the default.
func NewService(timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeaders(browserHeaders)

	return &Service{
		client: client,
		logger: logger.With("component", "scraper"),
	}
}

// Scrape fetches the page at url and extracts name, stock status, image and
// product code. Extraction never fails: fields that could not be found carry
// the sentinel value. Only fetch and parse errors are returned.
func (s *Service) Scrape(ctx context.Context, url string, sel Selectors) (*models.ScrapeResult, error) {
	start := time.Now()

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		s.logger.Warn("page fetch failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		s.logger.Warn("page fetch returned error status", "url", url, "status", resp.StatusCode())
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, url, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, url, err)
	}

	result := &models.ScrapeResult{
		ProductName: extractName(doc, sel.Name),
		StockStatus: extractStock(doc, sel.Stock),
		ImageURL:    extractImage(doc, sel.Image, url),
		ProductCode: extractProductCode(doc),
		UpdatedAt:   time.Now().UTC(),
	}

	s.logger.Info("scraped product page",
		"url", url,
		"name", result.ProductName,
		"stock", result.StockStatus,
		"duration", time.Since(start))

	return result, nil
}
