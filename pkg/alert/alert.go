package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/patternradar/pkg/achievement"
)

// Notification is the data sent to alert destinations.
type Notification struct {
	UserID   string              `json:"user_id"`
	Title    string              `json:"title"`
	Body     string              `json:"body"`
	EarnedAt time.Time           `json:"earned_at"`
	Badges   []achievement.Badge `json:"badges"`
}

// BadgesEarned builds the notification for a batch of newly earned badges.
func BadgesEarned(userID string, badges []achievement.Badge, at time.Time) *Notification {
	title := "New badge earned"
	if len(badges) > 1 {
		title = fmt.Sprintf("%d new badges earned", len(badges))
	}
	body := ""
	for i, b := range badges {
		if i > 0 {
			body += "\n"
		}
		body += fmt.Sprintf("%s: %s", b.Title, b.Description)
	}
	return &Notification{
		UserID:   userID,
		Title:    title,
		Body:     body,
		EarnedAt: at.UTC(),
		Badges:   badges,
	}
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, header http.Header) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
