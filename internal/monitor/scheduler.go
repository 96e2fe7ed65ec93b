// Package monitor runs the recurring stock-refresh loop over the tracked
// product set.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/scraper"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/stock"
)

// initialTickDelay is how long after arming the first refresh fires, so
// freshly-enabled monitoring does not wait a full interval for data.
const initialTickDelay = 30 * time.Second

// ProductStore is the subset of the product repository the scheduler needs
// (for testing).
type ProductStore interface {
	List(ctx context.Context) ([]*models.TrackedProduct, error)
	Update(ctx context.Context, p *models.TrackedProduct) error
}

// PageScraper re-scrapes a single product page (for testing).
type PageScraper interface {
	Scrape(ctx context.Context, url string, sel scraper.Selectors) (*models.ScrapeResult, error)
}

// TransitionNotifier handles stock transitions after a merge (for testing).
type TransitionNotifier interface {
	Process(ctx context.Context, previous, updated models.TrackedProduct, settings models.SlackSettings) []models.NotificationEvent
}

// BatchResult aggregates one refresh tick. Failures are counted, never fatal.
type BatchResult struct {
	Selected int
	Updated  int
	Failed   int
	Events   int
}

// Scheduler drives periodic re-scrapes. It is armed or disarmed by settings
// updates and never runs two batches at once: a tick that fires while a batch
// is still draining is skipped.
type Scheduler struct {
	store       ProductStore
	scraper     PageScraper
	notifier    TransitionNotifier
	logger      *slog.Logger
	concurrency int
	pacer       *Pacer

	initialDelay time.Duration
	now          func() time.Time

	inFlight atomic.Bool
}

type Option func(*Scheduler)

// WithPacer staggers fetch starts within a batch.
func WithPacer(p *Pacer) Option {
	return func(s *Scheduler) { s.pacer = p }
}

// WithInitialDelay overrides the first-tick delay.
func WithInitialDelay(d time.Duration) Option {
	return func(s *Scheduler) { s.initialDelay = d }
}

func NewScheduler(store ProductStore, pageScraper PageScraper, notifier TransitionNotifier, concurrency int, logger *slog.Logger, opts ...Option) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	s := &Scheduler{
		store:        store,
		scraper:      pageScraper,
		notifier:     notifier,
		logger:       logger.With("component", "scheduler"),
		concurrency:  concurrency,
		initialDelay: initialTickDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled, re-arming its timer on every settings
// update received from updates. Reconfiguration replaces the previous timer,
// so repeated updates never leak a duplicate.
func (s *Scheduler) Run(ctx context.Context, initial models.Settings, updates <-chan models.Settings) {
	settings := initial

	var timer *time.Timer
	var tick <-chan time.Time

	arm := func(d time.Duration) {
		if timer != nil {
			timer.Stop()
		}
		if !settings.AutoRefresh.Enabled {
			timer = nil
			tick = nil
			s.logger.Info("auto refresh disabled")
			return
		}
		timer = time.NewTimer(d)
		tick = timer.C
		s.logger.Info("auto refresh armed",
			"next_tick", d,
			"interval", refreshInterval(settings.AutoRefresh),
			"only_out_of_stock", settings.AutoRefresh.OnlyOutOfStock)
	}

	arm(s.initialDelay)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return

		case updated, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			wasEnabled := settings.AutoRefresh.Enabled
			settings = updated
			if settings.AutoRefresh.Enabled && !wasEnabled {
				arm(s.initialDelay)
			} else {
				arm(refreshInterval(settings.AutoRefresh))
			}

		case <-tick:
			s.tick(ctx, settings)
			arm(refreshInterval(settings.AutoRefresh))
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, settings models.Settings) {
	if !withinActiveHours(s.now(), settings.AutoRefresh.ActiveHours) {
		s.logger.Info("tick skipped outside active hours",
			"start", settings.AutoRefresh.ActiveHours.StartTime,
			"end", settings.AutoRefresh.ActiveHours.EndTime)
		return
	}

	result, err := s.RunBatch(ctx, settings)
	if err != nil {
		s.logger.Error("refresh batch failed", "error", err)
		return
	}
	if result == nil {
		return
	}

	s.logger.Info("refresh batch complete",
		"selected", result.Selected,
		"updated", result.Updated,
		"failed", result.Failed,
		"events", result.Events)
}

// RunBatch re-scrapes the current working set once. A nil result means a
// batch was already in flight and this one was skipped. Per-item scrape
// failures are counted and isolated; they never cancel sibling scrapes.
func (s *Scheduler) RunBatch(ctx context.Context, settings models.Settings) (*BatchResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("tick skipped, previous batch still running")
		return nil, nil
	}
	defer s.inFlight.Store(false)

	products, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	selected := selectWorkingSet(products, settings.AutoRefresh.OnlyOutOfStock)
	result := &BatchResult{Selected: len(selected)}
	if len(selected) == 0 {
		return result, nil
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for _, p := range selected {
		wg.Add(1)
		go func(p *models.TrackedProduct) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if s.pacer != nil {
				if err := s.pacer.Wait(ctx); err != nil {
					mu.Lock()
					result.Failed++
					mu.Unlock()
					return
				}
			}

			events, err := s.refreshOne(ctx, p, settings.Slack)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				return
			}
			result.Updated++
			result.Events += events
		}(p)
	}

	wg.Wait()
	return result, nil
}

// refreshOne scrapes a single product, merges the result and runs change
// detection. Each product writes a disjoint id, so concurrent completions
// never conflict.
func (s *Scheduler) refreshOne(ctx context.Context, p *models.TrackedProduct, slack models.SlackSettings) (int, error) {
	res, err := s.scraper.Scrape(ctx, p.URL, scraper.Selectors{
		Name:  models.ExplicitSelector(p.NameSelector),
		Stock: models.ExplicitSelector(p.StockSelector),
		Image: models.ExplicitSelector(p.ImageSelector),
	})
	if err != nil {
		s.logger.Warn("product refresh failed", "product_id", p.ID, "url", p.URL, "error", err)
		return 0, err
	}

	previous := *p
	p.Apply(res)

	if err := s.store.Update(ctx, p); err != nil {
		s.logger.Error("failed to persist refreshed product", "product_id", p.ID, "error", err)
		return 0, err
	}

	events := s.notifier.Process(ctx, previous, *p, slack)
	return len(events), nil
}

// selectWorkingSet picks the products a tick should refresh. With
// onlyOutOfStock set, anything whose last known status does not read as
// in-stock (including unknown) stays in the set.
func selectWorkingSet(products []*models.TrackedProduct, onlyOutOfStock bool) []*models.TrackedProduct {
	if !onlyOutOfStock {
		return products
	}
	var selected []*models.TrackedProduct
	for _, p := range products {
		if stock.Classify(p.StockStatus).State != stock.StateInStock {
			selected = append(selected, p)
		}
	}
	return selected
}

func refreshInterval(cfg models.RefreshConfig) time.Duration {
	unit := time.Minute
	if cfg.Unit == "hours" {
		unit = time.Hour
	}
	interval := cfg.Interval
	if interval < 1 {
		interval = 1
	}
	return time.Duration(interval) * unit
}

// withinActiveHours reports whether now falls inside the configured window.
// A window whose end precedes its start wraps past midnight ("22:00"-"06:00"
// covers late evening and early morning). Malformed times disable the check
// rather than silence the scheduler.
func withinActiveHours(now time.Time, window models.ActiveHours) bool {
	if !window.Enabled {
		return true
	}

	start, okStart := parseClock(window.StartTime)
	end, okEnd := parseClock(window.EndTime)
	if !okStart || !okEnd {
		return true
	}

	cur := now.Hour()*60 + now.Minute()
	if start <= end {
		return cur >= start && cur < end
	}
	return cur >= start || cur < end
}

func parseClock(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
