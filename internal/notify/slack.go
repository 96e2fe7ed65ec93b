package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/V0rt3xRP/beedspeed-tracker/internal/models"
)

const defaultChannel = "#general"

type slackMessage struct {
	Text        string            `json:"text,omitempty"`
	Channel     string            `json:"channel"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color   string        `json:"color"`
	Text    string        `json:"text"`
	Fields  []slackField  `json:"fields"`
	Actions []slackAction `json:"actions,omitempty"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAction struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Style string `json:"style"`
}

// SlackClient delivers notifications to a Slack incoming webhook.
type SlackClient struct {
	client *resty.Client
}

func NewSlackClient() *SlackClient {
	return &SlackClient{
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

// SendEvent posts a stock-change notification as a colored attachment.
func (c *SlackClient) SendEvent(ctx context.Context, webhook, channel string, event models.NotificationEvent) error {
	var text, color string
	switch event.Kind {
	case models.EventOutOfStock:
		text = fmt.Sprintf("🚨 *Product Out of Stock*\n*%s* is now out of stock!", event.Product.ProductName)
		color = "#ff0000"
	case models.EventBackInStock:
		text = fmt.Sprintf("✅ *Product Back in Stock*\n*%s* is back in stock!", event.Product.ProductName)
		color = "#36a64f"
	case models.EventPriceChange:
		text = fmt.Sprintf("💰 *Price Change*\n*%s* price has changed!", event.Product.ProductName)
		color = "#ffa500"
	default:
		text = fmt.Sprintf("ℹ️ *Product Update*\n*%s* has been updated.", event.Product.ProductName)
		color = "#0000ff"
	}

	code := "N/A"
	if event.Product.ProductCode != nil && *event.Product.ProductCode != "" {
		code = *event.Product.ProductCode
	}

	msg := slackMessage{
		Channel: orDefault(channel, defaultChannel),
		Attachments: []slackAttachment{{
			Color: color,
			Text:  text,
			Fields: []slackField{
				{Title: "Product Name", Value: orDefault(event.Product.ProductName, "Unknown"), Short: true},
				{Title: "Stock Status", Value: orDefault(event.Product.StockStatus, "Unknown"), Short: true},
				{Title: "Product Code", Value: code, Short: true},
				{Title: "Last Updated", Value: event.Product.UpdatedAt.Format(time.RFC1123), Short: true},
			},
			Actions: []slackAction{{
				Type:  "button",
				Text:  "View Product",
				URL:   event.Product.URL,
				Style: "primary",
			}},
		}},
	}

	return c.post(ctx, webhook, msg)
}

// SendText posts a plain-text message, used by the webhook test endpoint.
func (c *SlackClient) SendText(ctx context.Context, webhook, channel, text string) error {
	msg := slackMessage{
		Text:    orDefault(text, "🧪 Test notification from Beedspeed Tracker!"),
		Channel: orDefault(channel, defaultChannel),
	}
	return c.post(ctx, webhook, msg)
}

func (c *SlackClient) post(ctx context.Context, webhook string, msg slackMessage) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(webhook)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
