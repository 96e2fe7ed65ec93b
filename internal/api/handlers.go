// Package api exposes the tracker's HTTP surface: product CRUD, manual
// scrapes, settings and the Slack webhook test.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/database"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/notify"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/scraper"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/settings"
)

// SlackTester sends a plain test message to a webhook.
type SlackTester interface {
	SendText(ctx context.Context, webhook, channel, text string) error
}

// OutboxGauges reports outbox depth for the health endpoint.
type OutboxGauges interface {
	PendingCount(ctx context.Context) (int64, error)
	DeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	products *database.ProductRepository
	scraper  *scraper.Service
	notifier *notify.Notifier
	slack    SlackTester
	settings *settings.Store
	gauges   OutboxGauges
	logger   *slog.Logger
}

func NewHandlers(
	products *database.ProductRepository,
	scraperSvc *scraper.Service,
	notifier *notify.Notifier,
	slack SlackTester,
	settingsStore *settings.Store,
	gauges OutboxGauges,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		products: products,
		scraper:  scraperSvc,
		notifier: notifier,
		slack:    slack,
		settings: settingsStore,
		gauges:   gauges,
		logger:   logger.With("component", "api"),
	}
}

// Routes mounts every handler on a chi router.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Post("/products/{id}/scrape", h.ScrapeProduct)

		r.Get("/test-scrape", h.TestScrape)

		r.Get("/settings", h.GetSettings)
		r.Post("/settings", h.UpdateSettings)
		r.Post("/test-slack", h.TestSlack)
	})
	r.Get("/health", h.Health)
}

// ProductRequest carries the user-supplied fields for create and update.
// Empty selectors mean auto-detect.
type ProductRequest struct {
	URL           string  `json:"url"`
	StockSelector string  `json:"stock_selector"`
	NameSelector  string  `json:"name_selector"`
	ImageSelector string  `json:"image_selector"`
	BeedspeedCode *string `json:"beedspeed_code"`
}

func (req *ProductRequest) selectors() scraper.Selectors {
	return scraper.Selectors{
		Name:  req.NameSelector,
		Stock: req.StockSelector,
		Image: req.ImageSelector,
	}
}

func selectorOrAuto(s string) string {
	if s == "" {
		return models.SelectorAuto
	}
	return s
}

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*models.TrackedProduct{}
	}
	h.respondJSON(w, http.StatusOK, products)
}

// CreateProduct scrapes the URL first, so a product always lands with fresh
// data, then persists it.
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), req.URL, req.selectors())
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	product := models.NewTrackedProduct(req.URL)
	product.StockSelector = selectorOrAuto(req.StockSelector)
	product.NameSelector = selectorOrAuto(req.NameSelector)
	product.ImageSelector = selectorOrAuto(req.ImageSelector)
	product.BeedspeedCode = req.BeedspeedCode
	product.Apply(result)

	if err := h.products.Create(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", "url", req.URL, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	h.respondJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces the URL and selectors, then re-scrapes with the new
// configuration before persisting.
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondNotFoundOrError(w, err, "failed to get product")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), req.URL, req.selectors())
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	previous := *product
	product.URL = req.URL
	product.StockSelector = selectorOrAuto(req.StockSelector)
	product.NameSelector = selectorOrAuto(req.NameSelector)
	product.ImageSelector = selectorOrAuto(req.ImageSelector)
	if req.BeedspeedCode != nil {
		product.BeedspeedCode = req.BeedspeedCode
	}
	product.Apply(result)

	if err := h.products.Update(r.Context(), product); err != nil {
		h.respondNotFoundOrError(w, err, "failed to update product")
		return
	}

	h.notifier.Process(r.Context(), previous, *product, h.settings.Get().Slack)
	h.respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.products.Delete(r.Context(), id); err != nil {
		h.respondNotFoundOrError(w, err, "failed to delete product")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ScrapeProduct re-scrapes one product with its stored selectors and runs
// change detection on the transition.
func (h *Handlers) ScrapeProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.respondNotFoundOrError(w, err, "failed to get product")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), product.URL, scraper.Selectors{
		Name:  models.ExplicitSelector(product.NameSelector),
		Stock: models.ExplicitSelector(product.StockSelector),
		Image: models.ExplicitSelector(product.ImageSelector),
	})
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	previous := *product
	product.Apply(result)

	if err := h.products.Update(r.Context(), product); err != nil {
		h.respondNotFoundOrError(w, err, "failed to update product")
		return
	}

	h.notifier.Process(r.Context(), previous, *product, h.settings.Get().Slack)
	h.respondJSON(w, http.StatusOK, product)
}

// TestScrape runs a scrape without persisting anything, for trying out
// selectors before tracking a product.
func (h *Handlers) TestScrape(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.scraper.Scrape(r.Context(), url, scraper.Selectors{
		Name:  r.URL.Query().Get("name_selector"),
		Stock: r.URL.Query().Get("stock_selector"),
		Image: r.URL.Query().Get("image_selector"),
	})
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.settings.Get())
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.settings.Update(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, req)
}

// TestSlackRequest is the webhook test payload.
type TestSlackRequest struct {
	Webhook string `json:"webhook"`
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (h *Handlers) TestSlack(w http.ResponseWriter, r *http.Request) {
	var req TestSlackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Webhook == "" {
		h.respondError(w, http.StatusBadRequest, "webhook URL is required")
		return
	}

	if err := h.slack.SendText(r.Context(), req.Webhook, req.Channel, req.Message); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Slack notification sent successfully"})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}

	if h.gauges != nil {
		if pending, err := h.gauges.PendingCount(r.Context()); err == nil {
			resp["outbox_pending"] = pending
		}
		if dead, err := h.gauges.DeadLetterCount(r.Context()); err == nil {
			resp["outbox_dead_letter"] = dead
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) respondNotFoundOrError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, database.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	h.logger.Error(message, "error", err)
	h.respondError(w, http.StatusInternalServerError, message)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
