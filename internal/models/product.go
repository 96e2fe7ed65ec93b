package models

import (
	"time"
)

// NotFound is the sentinel returned for any field the extraction cascade
// could not resolve. It is stored verbatim so the dashboard can render it.
const NotFound = "Not found"

// SelectorAuto marks a selector column as "no explicit selector supplied";
// the extraction cascade picks the value instead.
const SelectorAuto = "auto-detected"

type TrackedProduct struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	StockSelector string    `json:"stock_selector"`
	NameSelector  string    `json:"name_selector"`
	ImageSelector string    `json:"image_selector"`
	BeedspeedCode *string   `json:"beedspeed_code"`
	ProductName   string    `json:"product_name"`
	StockStatus   string    `json:"stock_status"`
	ImageURL      string    `json:"image_url"`
	ProductCode   *string   `json:"product_code"`
	Price         *float64  `json:"price,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScrapeResult is the outcome of a single page scrape. It is merged into a
// TrackedProduct on success, or returned as-is by the test-scrape endpoint.
type ScrapeResult struct {
	ProductName string    `json:"product_name"`
	StockStatus string    `json:"stock_status"`
	ImageURL    string    `json:"image_url"`
	ProductCode *string   `json:"product_code"`
	Price       *float64  `json:"price,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExplicitSelector returns the stored selector, or "" when the column holds
// the auto-detect sentinel.
func ExplicitSelector(stored string) string {
	if stored == SelectorAuto {
		return ""
	}
	return stored
}

func NewTrackedProduct(url string) *TrackedProduct {
	now := time.Now()
	return &TrackedProduct{
		URL:           url,
		StockSelector: SelectorAuto,
		NameSelector:  SelectorAuto,
		ImageSelector: SelectorAuto,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Apply merges a scrape result into the product record (full field replacement).
func (p *TrackedProduct) Apply(res *ScrapeResult) {
	p.ProductName = res.ProductName
	p.StockStatus = res.StockStatus
	p.ImageURL = res.ImageURL
	p.ProductCode = res.ProductCode
	if res.Price != nil {
		p.Price = res.Price
	}
	p.UpdatedAt = res.UpdatedAt
}
