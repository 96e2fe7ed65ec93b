package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewStore(path)
	require.NoError(t, err)
	return store, path
}

func TestStoreDefaults(t *testing.T) {
	store, path := tempStore(t)

	got := store.Get()
	assert.Equal(t, models.DefaultSettings(), got)

	// Nothing written until the first update.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStoreUpdatePersistsAndReloads(t *testing.T) {
	store, path := tempStore(t)

	next := models.DefaultSettings()
	next.AutoRefresh.Enabled = true
	next.AutoRefresh.Interval = 2
	next.AutoRefresh.Unit = "hours"
	next.Slack.Enabled = true
	next.Slack.Webhook = "https://hooks.slack.com/test"

	require.NoError(t, store.Update(next))
	assert.Equal(t, next, store.Get())

	reloaded, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, next, reloaded.Get())
}

func TestStoreSubscribe(t *testing.T) {
	store, _ := tempStore(t)
	ch := store.Subscribe()

	next := models.DefaultSettings()
	next.AutoRefresh.Interval = 5
	require.NoError(t, store.Update(next))

	select {
	case got := <-ch:
		assert.Equal(t, 5, got.AutoRefresh.Interval)
	case <-time.After(time.Second):
		t.Fatal("expected settings update on subscription channel")
	}
}

func TestStoreSubscribeCoalescesToNewest(t *testing.T) {
	store, _ := tempStore(t)
	ch := store.Subscribe()

	// Two updates land before the subscriber drains anything; the stale
	// buffered value must be replaced, not the new one dropped.
	first := models.DefaultSettings()
	first.AutoRefresh.Interval = 5
	require.NoError(t, store.Update(first))

	second := models.DefaultSettings()
	second.AutoRefresh.Interval = 99
	require.NoError(t, store.Update(second))

	select {
	case got := <-ch:
		assert.Equal(t, 99, got.AutoRefresh.Interval)
	case <-time.After(time.Second):
		t.Fatal("expected settings update on subscription channel")
	}
}

func TestStoreRejectsInvalidUpdate(t *testing.T) {
	store, _ := tempStore(t)
	before := store.Get()

	bad := models.DefaultSettings()
	bad.Slack.Enabled = true
	bad.Slack.Webhook = ""

	assert.Error(t, store.Update(bad))
	assert.Equal(t, before, store.Get())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Settings)
		wantErr bool
	}{
		{"defaults valid", func(s *models.Settings) {}, false},
		{"slack enabled without webhook", func(s *models.Settings) {
			s.Slack.Enabled = true
		}, true},
		{"slack enabled with webhook", func(s *models.Settings) {
			s.Slack.Enabled = true
			s.Slack.Webhook = "https://hooks.slack.com/x"
		}, false},
		{"zero interval", func(s *models.Settings) {
			s.AutoRefresh.Enabled = true
			s.AutoRefresh.Interval = 0
		}, true},
		{"bad unit", func(s *models.Settings) {
			s.AutoRefresh.Enabled = true
			s.AutoRefresh.Unit = "days"
		}, true},
		{"disabled refresh skips interval checks", func(s *models.Settings) {
			s.AutoRefresh.Enabled = false
			s.AutoRefresh.Interval = 0
			s.AutoRefresh.Unit = "days"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := models.DefaultSettings()
			tt.mutate(&s)
			err := Validate(s)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
