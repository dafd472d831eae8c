// Package notify forwards engagement events to the downstream automation
// system. Delivery is best-effort: at most one attempt per event, issued on
// a detached goroutine so tracking responses never wait on the downstream.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/email-tracker/internal/config"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

// Doer is the interface for executing HTTP requests.
// Satisfied by *http.Client; tests substitute their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Notifier posts engagement events to the automation system's webhooks.
type Notifier struct {
	baseURL string
	secret  string
	client  Doer
}

// webhookPayload is the wire format the automation system expects.
type webhookPayload struct {
	EventID      string `json:"event_id"`
	QueueID      string `json:"queue_id"`
	CampaignID   string `json:"campaign_id"`
	ContactEmail string `json:"contact_email,omitempty"`
	TargetURL    string `json:"target_url,omitempty"`
	OpenedAt     string `json:"opened_at,omitempty"`
	ClickedAt    string `json:"clicked_at,omitempty"`
	UserAgent    string `json:"user_agent"`
	IPAddress    string `json:"ip_address"`
}

// New creates a Notifier from automation settings.
func New(cfg config.AutomationConfig) *Notifier {
	return &Notifier{
		baseURL: cfg.BaseURL,
		secret:  cfg.WebhookSecret,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// SetClient sets a custom HTTP client (useful for testing).
func (n *Notifier) SetClient(c Doer) { n.client = c }

// Notify dispatches the event without waiting for completion. Failures are
// logged and swallowed; they never surface to the caller. The dispatch runs
// on context.Background so a disconnecting tracking client cannot cancel it.
func (n *Notifier) Notify(evt Event) {
	go func() {
		if err := n.Send(context.Background(), evt); err != nil {
			logger.Error("notify: webhook delivery failed",
				"kind", string(evt.Kind),
				"queue_id", evt.QueueID,
				"campaign_id", evt.CampaignID,
				"error", err.Error())
		}
	}()
}

// Send posts the event synchronously. Notify is the normal entry point;
// Send exists so tests can observe the outcome.
func (n *Notifier) Send(ctx context.Context, evt Event) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}

	payload := webhookPayload{
		EventID:    evt.EventID,
		QueueID:    evt.QueueID,
		CampaignID: evt.CampaignID,
		UserAgent:  evt.UserAgent,
		IPAddress:  evt.IPAddress,
	}

	var path string
	switch evt.Kind {
	case KindOpened:
		path = "/webhook/email-opened"
		payload.ContactEmail = evt.RecipientEmail
		payload.OpenedAt = evt.OccurredAt.UTC().Format(time.RFC3339)
	case KindClicked:
		path = "/webhook/email-clicked"
		payload.TargetURL = evt.TargetURL
		payload.ClickedAt = evt.OccurredAt.UTC().Format(time.RFC3339)
	default:
		return fmt.Errorf("unknown event kind %q", evt.Kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.secret)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	return nil
}
