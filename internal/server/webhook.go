package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deckguard/deckguard/internal/config"
	"github.com/deckguard/deckguard/internal/urlguard"
)

// WebhookEvent is the payload sent to webhook endpoints.
type WebhookEvent struct {
	Event     string `json:"event"`
	URL       string `json:"url"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// URLValidator vets webhook endpoints. *urlguard.Validator satisfies it.
type URLValidator interface {
	ValidateURL(ctx context.Context, raw string) urlguard.Verdict
}

// WebhookNotifier sends notifications to configured webhooks.
type WebhookNotifier struct {
	webhooks []config.Webhook
	client   *http.Client
	logger   *slog.Logger
}

// NewWebhookNotifier creates a notifier from config. Endpoints are held to
// the same rules as image URLs; any that fail are logged and skipped. The
// transport should dial through a urlguard.GuardedDialer so a rebound
// endpoint is still refused at connect time.
func NewWebhookNotifier(webhooks []config.Webhook, validator URLValidator, transport http.RoundTripper, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if transport == nil {
		transport = urlguard.NewGuardedTransport(urlguard.NewGuardedDialer(nil, urlguard.DefaultDNSTimeout))
	}
	var valid []config.Webhook
	for _, wh := range webhooks {
		if validator != nil {
			if v := validator.ValidateURL(context.Background(), wh.URL); !v.Valid {
				logger.Warn("skipping invalid webhook URL", "url", wh.URL, "reason", v.Reason)
				continue
			}
		}
		valid = append(valid, wh)
	}
	return &WebhookNotifier{
		webhooks: valid,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: transport,
			// Redirects would need the full chain validation; webhooks don't get one.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Len reports how many endpoints survived validation.
func (n *WebhookNotifier) Len() int {
	return len(n.webhooks)
}

// NotifyRejected sends a url_rejected event to every subscribed endpoint
// (fire-and-forget).
func (n *WebhookNotifier) NotifyRejected(rawURL string, reason urlguard.Reason, source string) {
	n.Notify(WebhookEvent{
		Event:     config.EventURLRejected,
		URL:       rawURL,
		Reason:    string(reason),
		Message:   reason.Message(),
		Source:    source,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Notify sends the event to all matching webhooks (fire-and-forget).
func (n *WebhookNotifier) Notify(event WebhookEvent) {
	for _, wh := range n.webhooks {
		if !matchesEvent(wh.Events, event.Event) {
			continue
		}
		if wh.Template != "" {
			go n.sendRaw(wh.URL, RenderTemplate(wh.Template, event))
			continue
		}
		go n.send(wh.URL, event)
	}
}

// RenderTemplate replaces {{TAG}} placeholders in a plain-text template,
// then wraps the result in Slack-compatible JSON: {"text":"..."}.
func RenderTemplate(tmpl string, event WebhookEvent) string {
	r := strings.NewReplacer(
		"{{URL}}", event.URL,
		"{{REASON}}", event.Reason,
		"{{MESSAGE}}", event.Message,
		"{{SOURCE}}", event.Source,
		"{{EVENT}}", event.Event,
		"{{TIMESTAMP}}", event.Timestamp,
	)
	payload, _ := json.Marshal(map[string]string{"text": r.Replace(tmpl)})
	return string(payload)
}

// DefaultWebhookTemplate is a Slack-friendly starting point for config files.
const DefaultWebhookTemplate = "Image URL rejected: {{URL}}\n• Reason: {{REASON}} ({{MESSAGE}})\n• Source: {{SOURCE}}"

func (n *WebhookNotifier) sendRaw(url, body string) {
	n.post(url, []byte(body))
}

func (n *WebhookNotifier) send(url string, event WebhookEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("webhook marshal failed", "error", err)
		return
	}
	n.post(url, body)
}

func (n *WebhookNotifier) post(url string, body []byte) {
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("webhook delivery failed", "url", url, "error", err)
		return
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Warn("webhook returned error", "url", url, "status", resp.StatusCode)
	}
}

func matchesEvent(configured []string, event string) bool {
	if len(configured) == 0 {
		return true // no filter = all events
	}
	for _, e := range configured {
		if e == event {
			return true
		}
	}
	return false
}
