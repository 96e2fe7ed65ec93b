// Package settings stores the dashboard configuration in a JSON file and
// notifies subscribers when it changes.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

// Store holds the current settings in memory, backed by a JSON file. Writes
// go to a temp file first so a crash mid-save never corrupts the settings.
type Store struct {
	mu       sync.RWMutex
	current  models.Settings
	filename string
	subs     []chan models.Settings
}

func NewStore(filename string) (*Store, error) {
	s := &Store{
		current:  models.DefaultSettings(),
		filename: filename,
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return s, nil
}

func (s *Store) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and persists new settings, then notifies subscribers.
func (s *Store) Update(settings models.Settings) error {
	if err := Validate(settings); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = settings
	err := s.save()
	subs := make([]chan models.Settings, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	// Coalesce to newest: a subscriber that has fallen behind loses the
	// stale buffered value, never the update being delivered now.
	for _, ch := range subs {
		select {
		case ch <- settings:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- settings:
		default:
		}
	}

	return nil
}

// Subscribe returns a channel that receives each settings update. The channel
// is buffered; slow consumers drop intermediate updates rather than block.
func (s *Store) Subscribe() <-chan models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan models.Settings, 1)
	s.subs = append(s.subs, ch)
	return ch
}

// Validate rejects settings combinations the rest of the system cannot act
// on. Rejection targets the update only, never the running process.
func Validate(settings models.Settings) error {
	if settings.Slack.Enabled && settings.Slack.Webhook == "" {
		return fmt.Errorf("slack notifications enabled but webhook URL is empty")
	}
	if settings.AutoRefresh.Enabled {
		if settings.AutoRefresh.Interval < 1 {
			return fmt.Errorf("auto-refresh interval must be at least 1, got %d", settings.AutoRefresh.Interval)
		}
		if unit := settings.AutoRefresh.Unit; unit != "minutes" && unit != "hours" {
			return fmt.Errorf("auto-refresh unit must be minutes or hours, got %q", unit)
		}
	}
	return nil
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, s.filename)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, &s.current)
}
