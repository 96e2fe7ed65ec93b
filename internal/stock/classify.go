// Package stock interprets raw stock-status text scraped from store pages.
//
// Two interpretations coexist. Classify is lenient and quantity-aware, used
// for display and for deciding which products still need watching. IsInStock
// and IsOutOfStock are strict exact-vocabulary checks, used for change
// detection so that noisy status text never fires a notification.
package stock

import (
	"strings"
	"unicode"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

// State is the display-level stock interpretation.
type State string

const (
	StateInStock    State = "in_stock"
	StateOutOfStock State = "out_of_stock"
	StateUnknown    State = "unknown"
)

// QuantityUnspecified marks an in-stock status whose text carried no number.
const QuantityUnspecified = -1

// Classification is the lenient reading of a status string.
type Classification struct {
	State    State
	Quantity int
}

var negativePhrases = []string{
	"0 in stock",
	"0 stock",
	"out of stock",
	"unavailable",
	"no stock",
}

var positivePhrases = []string{
	"in stock",
	"available",
	"yes",
}

// Classify reads a status string leniently. The first digit run anywhere in
// the text is taken as a quantity and decides by itself; otherwise negative
// phrases are checked before positive ones, so "no stock available" reads as
// out of stock.
func Classify(status string) Classification {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" || status == models.NotFound {
		return Classification{State: StateUnknown}
	}

	if qty, ok := firstQuantity(s); ok {
		if qty > 0 {
			return Classification{State: StateInStock, Quantity: qty}
		}
		return Classification{State: StateOutOfStock}
	}

	for _, phrase := range negativePhrases {
		if strings.Contains(s, phrase) {
			return Classification{State: StateOutOfStock}
		}
	}
	for _, phrase := range positivePhrases {
		if strings.Contains(s, phrase) {
			return Classification{State: StateInStock, Quantity: QuantityUnspecified}
		}
	}

	return Classification{State: StateUnknown}
}

// maxQuantity caps parsed quantities so an absurd digit run cannot overflow
// and flip a positive count negative.
const maxQuantity = 1_000_000_000

func firstQuantity(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	qty := 0
	for _, r := range s[start:] {
		if !unicode.IsDigit(r) {
			break
		}
		if qty >= maxQuantity/10 {
			return maxQuantity, true
		}
		qty = qty*10 + int(r-'0')
	}
	return qty, true
}

var strictInStock = map[string]bool{
	"in stock":      true,
	"available":     true,
	"yes":           true,
	"true":          true,
	"instock":       true,
	"available now": true,
	"ready to ship": true,
}

var strictOutOfStock = map[string]bool{
	"out of stock": true,
	"unavailable":  true,
	"no":           true,
	"false":        true,
}

// IsInStock reports whether the status matches the strict in-stock
// vocabulary exactly, or carries an affirmative check mark.
func IsInStock(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	if strictInStock[s] {
		return true
	}
	return strings.Contains(s, "✓") || strings.Contains(s, "check")
}

// IsOutOfStock reports whether the status matches the strict out-of-stock
// vocabulary exactly, or carries a negative mark.
func IsOutOfStock(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	if strictOutOfStock[s] {
		return true
	}
	return strings.Contains(s, "✗") || strings.Contains(s, "sold out")
}
