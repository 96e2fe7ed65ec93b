package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
	"github.com/V0rt3xRP/beedspeed-tracker/internal/scraper"
)

type fakeStore struct {
	mu       sync.Mutex
	products []*models.TrackedProduct
	updated  map[string]models.TrackedProduct
}

func newFakeStore(products ...*models.TrackedProduct) *fakeStore {
	return &fakeStore{products: products, updated: make(map[string]models.TrackedProduct)}
}

func (s *fakeStore) List(ctx context.Context) ([]*models.TrackedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products, nil
}

func (s *fakeStore) Update(ctx context.Context, p *models.TrackedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated[p.ID] = *p
	return nil
}

type fakeScraper struct {
	mu      sync.Mutex
	results map[string]*models.ScrapeResult
	failing map[string]error
	calls   []string
	block   chan struct{}
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{
		results: make(map[string]*models.ScrapeResult),
		failing: make(map[string]error),
	}
}

func (f *fakeScraper) Scrape(ctx context.Context, url string, sel scraper.Selectors) (*models.ScrapeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failing[url]; ok {
		return nil, err
	}
	if res, ok := f.results[url]; ok {
		out := *res
		return &out, nil
	}
	return &models.ScrapeResult{
		ProductName: "scraped",
		StockStatus: "In Stock",
		UpdatedAt:   time.Now(),
	}, nil
}

func (f *fakeScraper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeNotifier) Process(ctx context.Context, previous, updated models.TrackedProduct, settings models.SlackSettings) []models.NotificationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func trackedProduct(id, status string) *models.TrackedProduct {
	p := models.NewTrackedProduct("https://x.com/p/" + id)
	p.ID = id
	p.StockStatus = status
	return p
}

func testSettings(onlyOutOfStock bool) models.Settings {
	s := models.DefaultSettings()
	s.AutoRefresh.Enabled = true
	s.AutoRefresh.OnlyOutOfStock = onlyOutOfStock
	s.AutoRefresh.ActiveHours.Enabled = false
	return s
}

func TestSelectWorkingSet(t *testing.T) {
	products := []*models.TrackedProduct{
		trackedProduct("1", "In Stock"),
		trackedProduct("2", "Out of Stock"),
		trackedProduct("3", "3 in stock"),
		trackedProduct("4", "Not found"),
		trackedProduct("5", "0 in stock"),
	}

	t.Run("full set", func(t *testing.T) {
		assert.Len(t, selectWorkingSet(products, false), 5)
	})

	t.Run("only not-in-stock, unknown included", func(t *testing.T) {
		selected := selectWorkingSet(products, true)
		require.Len(t, selected, 3)

		var ids []string
		for _, p := range selected {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, []string{"2", "4", "5"}, ids)
	})
}

func TestRunBatch(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("refreshes full set and merges results", func(t *testing.T) {
		store := newFakeStore(
			trackedProduct("1", "In Stock"),
			trackedProduct("2", "Out of Stock"),
		)
		fs := newFakeScraper()
		notifier := &fakeNotifier{}

		s := NewScheduler(store, fs, notifier, 4, logger)
		result, err := s.RunBatch(ctx, testSettings(false))
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, 2, result.Selected)
		assert.Equal(t, 2, result.Updated)
		assert.Equal(t, 0, result.Failed)
		assert.Len(t, store.updated, 2)
		assert.Equal(t, "scraped", store.updated["1"].ProductName)
		assert.Equal(t, 2, notifier.calls)
	})

	t.Run("one failure does not cancel siblings", func(t *testing.T) {
		store := newFakeStore(
			trackedProduct("1", "Out of Stock"),
			trackedProduct("2", "Out of Stock"),
			trackedProduct("3", "Out of Stock"),
		)
		fs := newFakeScraper()
		fs.failing["https://x.com/p/2"] = errors.New("fetch failed: status 503")
		notifier := &fakeNotifier{}

		s := NewScheduler(store, fs, notifier, 4, logger)
		result, err := s.RunBatch(ctx, testSettings(false))
		require.NoError(t, err)

		assert.Equal(t, 3, result.Selected)
		assert.Equal(t, 2, result.Updated)
		assert.Equal(t, 1, result.Failed)
		assert.Len(t, store.updated, 2)
		assert.NotContains(t, store.updated, "2")
	})

	t.Run("only out-of-stock filter", func(t *testing.T) {
		store := newFakeStore(
			trackedProduct("1", "In Stock"),
			trackedProduct("2", "Out of Stock"),
		)
		fs := newFakeScraper()

		s := NewScheduler(store, fs, &fakeNotifier{}, 4, logger)
		result, err := s.RunBatch(ctx, testSettings(true))
		require.NoError(t, err)

		assert.Equal(t, 1, result.Selected)
		assert.Equal(t, []string{"https://x.com/p/2"}, fs.calls)
	})

	t.Run("empty working set is a no-op", func(t *testing.T) {
		store := newFakeStore(trackedProduct("1", "In Stock"))
		fs := newFakeScraper()

		s := NewScheduler(store, fs, &fakeNotifier{}, 4, logger)
		result, err := s.RunBatch(ctx, testSettings(true))
		require.NoError(t, err)

		assert.Equal(t, 0, result.Selected)
		assert.Equal(t, 0, fs.callCount())
	})

	t.Run("overlapping batch is skipped", func(t *testing.T) {
		store := newFakeStore(trackedProduct("1", "Out of Stock"))
		fs := newFakeScraper()
		fs.block = make(chan struct{})

		s := NewScheduler(store, fs, &fakeNotifier{}, 4, logger)

		done := make(chan *BatchResult)
		go func() {
			res, _ := s.RunBatch(ctx, testSettings(false))
			done <- res
		}()

		// Wait for the first batch to be in flight.
		require.Eventually(t, func() bool {
			return fs.callCount() == 1
		}, time.Second, 5*time.Millisecond)

		skipped, err := s.RunBatch(ctx, testSettings(false))
		require.NoError(t, err)
		assert.Nil(t, skipped)

		close(fs.block)
		first := <-done
		require.NotNil(t, first)
		assert.Equal(t, 1, first.Updated)
	})
}

func TestWithinActiveHours(t *testing.T) {
	at := func(hhmm string) time.Time {
		ts, err := time.Parse("15:04", hhmm)
		require.NoError(t, err)
		return ts
	}
	window := func(start, end string) models.ActiveHours {
		return models.ActiveHours{Enabled: true, StartTime: start, EndTime: end}
	}

	t.Run("disabled window always active", func(t *testing.T) {
		assert.True(t, withinActiveHours(at("03:00"), models.ActiveHours{StartTime: "09:00", EndTime: "18:00"}))
	})

	t.Run("daytime window", func(t *testing.T) {
		w := window("09:00", "18:00")
		assert.True(t, withinActiveHours(at("09:00"), w))
		assert.True(t, withinActiveHours(at("12:30"), w))
		assert.False(t, withinActiveHours(at("18:00"), w))
		assert.False(t, withinActiveHours(at("03:00"), w))
	})

	t.Run("overnight window wraps midnight", func(t *testing.T) {
		w := window("22:00", "06:00")
		assert.True(t, withinActiveHours(at("23:00"), w))
		assert.True(t, withinActiveHours(at("02:00"), w))
		assert.False(t, withinActiveHours(at("12:00"), w))
	})

	t.Run("zero-length window never active", func(t *testing.T) {
		w := window("09:00", "09:00")
		assert.False(t, withinActiveHours(at("09:00"), w))
		assert.False(t, withinActiveHours(at("15:00"), w))
	})

	t.Run("malformed times disable the check", func(t *testing.T) {
		assert.True(t, withinActiveHours(at("03:00"), window("soon", "later")))
	})
}

func TestSchedulerRunInitialTick(t *testing.T) {
	store := newFakeStore(trackedProduct("1", "Out of Stock"))
	fs := newFakeScraper()

	s := NewScheduler(store, fs, &fakeNotifier{}, 2, slog.Default(),
		WithInitialDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan models.Settings)
	go s.Run(ctx, testSettings(false), updates)

	assert.Eventually(t, func() bool {
		return fs.callCount() >= 1
	}, time.Second, 5*time.Millisecond)
}

func TestSchedulerRunDisabledThenEnabled(t *testing.T) {
	store := newFakeStore(trackedProduct("1", "Out of Stock"))
	fs := newFakeScraper()

	s := NewScheduler(store, fs, &fakeNotifier{}, 2, slog.Default(),
		WithInitialDelay(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disabled := testSettings(false)
	disabled.AutoRefresh.Enabled = false

	updates := make(chan models.Settings)
	go s.Run(ctx, disabled, updates)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, fs.callCount())

	updates <- testSettings(false)

	assert.Eventually(t, func() bool {
		return fs.callCount() >= 1
	}, time.Second, 5*time.Millisecond)
}
