package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Slack sends notifications via Slack incoming webhook.
type Slack struct {
	client     *http.Client
	webhookURL string
}

// NewSlack creates a new Slack notifier.
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, n *Notification) error {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{
				"type": "plain_text",
				"text": fmt.Sprintf("🏆 %s", n.Title),
			},
		},
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*User:* %s\n%s", n.UserID, n.Body),
			},
		},
	}

	if len(n.Badges) > 0 {
		var elements []map[string]any
		for _, b := range n.Badges {
			elements = append(elements, map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf(":%s: *%s* (%s)", b.Icon, b.Title, b.ID),
			})
		}
		blocks = append(blocks, map[string]any{
			"type":     "context",
			"elements": elements,
		})
	}

	if err := postJSON(ctx, s.client, s.webhookURL, map[string]any{"blocks": blocks}, nil); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
