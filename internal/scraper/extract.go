package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

const (
	maxNameLength  = 200
	maxStockLength = 100

	productCodeSelector = "#cat-store-product-stock-code"
)

// nameSelectors is the auto-detect cascade for product names. The order is a
// strict priority: the first candidate with usable text wins, regardless of
// how good a later match would be.
var nameSelectors = []string{
	// Store-specific IDs
	"#cat-store-product-title",
	"#product-title",
	"#product-name",
	"#title",

	// Meta tags
	`meta[property="og:title"]`,
	`meta[name="twitter:title"]`,
	`meta[property="product:name"]`,
	`meta[name="title"]`,
	`meta[property="og:site_name"]`,

	// Common product title selectors
	"h1.product-title",
	`h1[class*="product"]`,
	`h1[class*="title"]`,
	".product-name",
	".product-title",
	".item-name",
	".product-name h1",
	".product-title h1",
	".product h1",
	".item h1",

	// Generic but common
	"h1",
	".title",
	`[data-testid*="product-name"]`,
	`[data-testid*="title"]`,
	`[class*="product-name"]`,
	`[class*="product-title"]`,

	// E-commerce specific
	".product-details h1",
	".product-info h1",
	".product-header h1",
	".product-main h1",
	".product-content h1",

	// Additional common patterns
	`[id*="product"]`,
	`[id*="title"]`,
	`[id*="name"]`,
	".main-title",
	".page-title",
	".product-header .title",
}

// stockSelectors is the auto-detect cascade for stock-status text.
var stockSelectors = []string{
	// Store-specific IDs
	"#cat-store-product-stock",
	"#product-stock",
	"#stock-status",
	"#availability",

	// Common stock status selectors
	".availability",
	".stock-status",
	".stock-indicator",
	".inventory-status",
	".product-availability",
	".product-stock",
	".stock",
	".status",
	".product-status",

	// Class-based selectors
	`[class*="stock"]`,
	`[class*="availability"]`,
	`[class*="inventory"]`,
	`[class*="status"]`,

	// Data attributes
	`[data-testid*="stock"]`,
	`[data-testid*="availability"]`,
	`[data-testid*="status"]`,

	// Button and span selectors
	`button[class*="stock"]`,
	`span[class*="stock"]`,
	`div[class*="stock"]`,

	// E-commerce specific
	".add-to-cart",
	".buy-now",
	".purchase",
	".order",
	".checkout",

	// Additional patterns
	`[id*="stock"]`,
	`[id*="availability"]`,
	`[id*="status"]`,
	".product-actions .stock",
	".product-info .stock",
}

// imageSelectors is the auto-detect cascade for the product image.
var imageSelectors = []string{
	// Store-specific
	"#cat-store-product-main img",
	"#cat-store-product-main",

	// Meta tags
	`meta[property="og:image"]`,
	`meta[name="twitter:image"]`,
	`meta[property="product:image"]`,

	// Common product image selectors
	".product-image img",
	".product-image img[src]",
	".main-image img",
	".product-photo img",
	".product-img img",
	".item-image img",
	".product-thumbnail img",
	".product-gallery img",
	".gallery img",
	".product-picture img",

	// Class-based selectors
	`img[class*="product"]`,
	`img[class*="main"]`,
	`img[class*="primary"]`,
	`img[class*="hero"]`,

	// Alt text based
	`img[alt*="product"]`,
	`img[alt*="main"]`,
	`img[alt*="primary"]`,

	// Data attributes
	`img[data-testid*="product"]`,
	`img[data-testid*="image"]`,
	`img[data-src*="product"]`,

	// Generic but common
	".product img",
	".item img",
	".main img",
	".hero img",
}

// stockKeywords are scanned over the whole document text when no selector in
// the cascade matched. Order matters: the first keyword found is returned.
var stockKeywords = []string{
	"in stock", "out of stock", "available", "unavailable",
	"sold out", "backorder", "pre-order", "coming soon",
	"add to cart", "buy now", "purchase", "order now",
	"stock", "availability", "quantity", "inventory",
}

// h1Denylist disqualifies headings that are clearly not product names.
var h1Denylist = []string{"home", "welcome", "login", "sign in"}

// normalizeSelector turns a bare identifier into an ID selector. Anything
// already carrying CSS syntax is passed through untouched.
func normalizeSelector(sel string) string {
	if sel != "" && !strings.HasPrefix(sel, "#") && !strings.HasPrefix(sel, ".") && !strings.Contains(sel, " ") {
		return "#" + sel
	}
	return sel
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractText extracts trimmed, whitespace-collapsed text using an explicit
// selector. A selector that matches nothing (including a malformed one, which
// goquery treats as matching nothing) degrades to the sentinel.
func extractText(doc *goquery.Document, selector string) string {
	el := doc.Find(normalizeSelector(selector)).First()
	if el.Length() == 0 {
		return models.NotFound
	}
	text := collapseWhitespace(el.Text())
	if text == "" {
		return models.NotFound
	}
	return text
}

// extractImageWithSelector extracts and resolves an image URL using an
// explicit selector. A descendant <img> is preferred; the selected element is
// used directly only when it is itself an image.
func extractImageWithSelector(doc *goquery.Document, selector, baseURL string) string {
	el := doc.Find(normalizeSelector(selector)).First()
	if el.Length() == 0 {
		return models.NotFound
	}

	img := el.Find("img").First()
	if img.Length() == 0 {
		if !el.Is("img") {
			return models.NotFound
		}
		img = el
	}

	// Prefer the direct source over lazy-load attributes.
	src, ok := img.Attr("src")
	if !ok || src == "" {
		for _, attr := range []string{"data-src", "data-original"} {
			if v, found := img.Attr(attr); found && v != "" {
				src = v
				break
			}
		}
	}
	if src == "" {
		return models.NotFound
	}

	return resolveImageURL(src, baseURL)
}

// autoDetectName walks the name cascade, then falls back to scanning h1
// elements in document order, skipping denylisted headings.
func autoDetectName(doc *goquery.Document) string {
	for _, selector := range nameSelectors {
		el := doc.Find(selector)
		if el.Length() == 0 {
			continue
		}

		var text string
		if strings.Contains(selector, "meta") {
			text, _ = el.Attr("content")
		} else {
			text = strings.TrimSpace(el.First().Text())
		}

		if text != "" && len(text) < maxNameLength {
			return text
		}
	}

	var name string
	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" || len(text) >= maxNameLength {
			return true
		}
		lower := strings.ToLower(text)
		for _, deny := range h1Denylist {
			if strings.Contains(lower, deny) {
				return true
			}
		}
		name = text
		return false
	})
	if name != "" {
		return name
	}

	return models.NotFound
}

// autoDetectStock walks the stock cascade, then three fallback stages: a
// whole-document keyword scan, an add-to-cart/buy-now scan over interactive
// elements, and an out-of-stock indicator scan over every element. Each stage
// runs only when the previous one found nothing.
func autoDetectStock(doc *goquery.Document) string {
	for _, selector := range stockSelectors {
		el := doc.Find(selector)
		if el.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(el.First().Text())
		if text != "" && len(text) < maxStockLength {
			return collapseWhitespace(text)
		}
	}

	allText := strings.ToLower(doc.Text())
	for _, keyword := range stockKeywords {
		if strings.Contains(allText, keyword) {
			return strings.ToUpper(keyword[:1]) + keyword[1:]
		}
	}

	inStock := false
	doc.Find(`button, a, input[type="submit"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(s.Text())
		value := strings.ToLower(s.AttrOr("value", ""))
		class := strings.ToLower(s.AttrOr("class", ""))
		id := strings.ToLower(s.AttrOr("id", ""))

		if strings.Contains(text, "add to cart") || strings.Contains(text, "buy now") ||
			strings.Contains(value, "add to cart") || strings.Contains(value, "buy now") ||
			strings.Contains(class, "add-to-cart") || strings.Contains(class, "buy-now") ||
			strings.Contains(id, "add-to-cart") || strings.Contains(id, "buy-now") {
			inStock = true
			return false
		}
		return true
	})
	if inStock {
		return "In Stock"
	}

	outOfStock := false
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(s.Text())
		class := strings.ToLower(s.AttrOr("class", ""))
		id := strings.ToLower(s.AttrOr("id", ""))

		if strings.Contains(text, "out of stock") || strings.Contains(text, "sold out") ||
			strings.Contains(class, "out-of-stock") || strings.Contains(class, "sold-out") ||
			strings.Contains(id, "out-of-stock") || strings.Contains(id, "sold-out") {
			outOfStock = true
			return false
		}
		return true
	})
	if outOfStock {
		return "Out of Stock"
	}

	return models.NotFound
}

// autoDetectImage walks the image cascade, then scans every sourced image,
// skipping icons, logos, banners, ads and images with very long alt text.
func autoDetectImage(doc *goquery.Document, baseURL string) string {
	for _, selector := range imageSelectors {
		el := doc.Find(selector)
		if el.Length() == 0 {
			continue
		}

		if strings.Contains(selector, "meta") {
			if content, ok := el.Attr("content"); ok && content != "" {
				return resolveImageURL(content, baseURL)
			}
			continue
		}

		img := el
		if !strings.HasSuffix(selector, " img") && !strings.HasSuffix(selector, "img[src]") {
			img = el.Find("img").First()
			if img.Length() == 0 {
				img = el
			}
		}

		src := firstAttr(img, "src", "data-src", "data-lazy-src")
		if src != "" {
			return resolveImageURL(src, baseURL)
		}
	}

	var found string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		class, _ := s.Attr("class")

		if src == "" || containsAny(src, "icon", "logo", "banner", "ad") ||
			containsAny(class, "icon", "logo", "banner", "ad") ||
			len(alt) >= 100 ||
			containsAny(strings.ToLower(alt), "icon", "logo") {
			return true
		}
		found = src
		return false
	})
	if found != "" {
		return resolveImageURL(found, baseURL)
	}

	return models.NotFound
}

// extractProductCode reads the fixed product-code element. No cascade and no
// sentinel: an absent code is nil.
func extractProductCode(doc *goquery.Document) *string {
	code := strings.TrimSpace(doc.Find(productCodeSelector).Text())
	if code == "" {
		return nil
	}
	return &code
}

func extractName(doc *goquery.Document, selector string) string {
	if selector == "" {
		return autoDetectName(doc)
	}
	return extractText(doc, selector)
}

func extractStock(doc *goquery.Document, selector string) string {
	if selector == "" {
		return autoDetectStock(doc)
	}
	return extractText(doc, selector)
}

func extractImage(doc *goquery.Document, selector, baseURL string) string {
	if selector == "" {
		return autoDetectImage(doc, baseURL)
	}
	return extractImageWithSelector(doc, selector, baseURL)
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
