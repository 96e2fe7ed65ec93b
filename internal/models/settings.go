package models

// EventKind identifies a stock-change notification.
type EventKind string

const (
	EventOutOfStock  EventKind = "out_of_stock"
	EventBackInStock EventKind = "back_in_stock"
	EventPriceChange EventKind = "price_change"
)

// NotificationEvent is emitted when a tracked product transitions stock state.
// It carries a snapshot of the product after the triggering scrape and is
// never persisted.
type NotificationEvent struct {
	Kind    EventKind      `json:"event"`
	Product TrackedProduct `json:"product"`
}

type NotificationFlags struct {
	OutOfStock  bool `json:"outOfStock"`
	BackInStock bool `json:"backInStock"`
	PriceChange bool `json:"priceChange"`
}

type SlackSettings struct {
	Enabled       bool              `json:"enabled"`
	Webhook       string            `json:"webhook"`
	Channel       string            `json:"channel"`
	Notifications NotificationFlags `json:"notifications"`
}

// ActiveHours is a time-of-day window outside which scheduled refreshes are
// skipped. Times are "HH:MM" in the local timezone; a window whose end is
// before its start wraps past midnight.
type ActiveHours struct {
	Enabled   bool   `json:"enabled"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type RefreshConfig struct {
	Enabled           bool        `json:"enabled"`
	Interval          int         `json:"interval"`
	Unit              string      `json:"unit"` // "minutes" or "hours"
	OnlyOutOfStock    bool        `json:"onlyOutOfStock"`
	ShowNotifications bool        `json:"showNotifications"`
	ActiveHours       ActiveHours `json:"activeHours"`
}

type Settings struct {
	Slack       SlackSettings `json:"slack"`
	AutoRefresh RefreshConfig `json:"autoRefresh"`
}

// DefaultSettings mirrors the dashboard defaults: refresh disabled, half-hour
// interval, only out-of-stock products, 09:00-18:00 window left disabled.
func DefaultSettings() Settings {
	return Settings{
		Slack: SlackSettings{
			Notifications: NotificationFlags{OutOfStock: true},
		},
		AutoRefresh: RefreshConfig{
			Interval:       30,
			Unit:           "minutes",
			OnlyOutOfStock: true,
			ActiveHours: ActiveHours{
				StartTime: "09:00",
				EndTime:   "18:00",
			},
		},
	}
}
