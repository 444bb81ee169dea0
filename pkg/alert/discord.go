package alert

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, b := range n.Badges {
		lines = append(lines, fmt.Sprintf("• **%s** %s", b.Title, b.Description))
	}

	embed := map[string]any{
		"title":       fmt.Sprintf("🏆 %s", n.Title),
		"description": fmt.Sprintf("**User:** %s\n\n%s", n.UserID, strings.Join(lines, "\n")),
		"color":       0xF1C40F,
		"timestamp":   n.EarnedAt.Format(time.RFC3339),
	}

	payload := map[string]any{
		"embeds": []map[string]any{embed},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload, nil); err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	return nil
}
