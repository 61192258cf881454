package external

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// NotifyProvider selects the outbound channel for Notify.
type NotifyProvider string

const (
	NotifySlack   NotifyProvider = "slack"
	NotifyTeams   NotifyProvider = "teams"
	NotifyEmail   NotifyProvider = "email"
	NotifyWebhook NotifyProvider = "webhook"
)

// NotifyRequest is the input to Notify.
type NotifyRequest struct {
	Provider    NotifyProvider `json:"provider"`
	Target      map[string]any `json:"target"`
	Message     string         `json:"message"`
	Title       string         `json:"title"`
	Attachments []any          `json:"attachments"`
	Options     map[string]any `json:"options"`
}

// NotifyResult is the output of Notify.
type NotifyResult struct {
	OK       bool           `json:"ok"`
	Response map[string]any `json:"response"`
}

// Notify posts a message through the configured provider. Slack and Teams
// resolve their webhook URL from target.webhook_key (default
// SLACK_WEBHOOK_URL / TEAMS_WEBHOOK_URL) or target.url; email resolves
// EMAIL_WEBHOOK_URL; the generic webhook provider accepts target.url or
// target.webhook_key (default WEBHOOK_URL). A provider with no resolvable
// URL fails CONFIG_MISSING.
func Notify(ctx context.Context, req NotifyRequest) (NotifyResult, error) {
	provider := req.Provider
	if provider == "" {
		provider = NotifyWebhook
	}

	switch provider {
	case NotifySlack:
		url := resolveURL(req.Target, "webhook_key", "SLACK_WEBHOOK_URL")
		if url == "" {
			return NotifyResult{}, blockerr.New(blockerr.ConfigMissing, "Slack webhook URL not provided")
		}
		return postJSON(ctx, url, map[string]any{"text": titledMessage(req.Title, req.Message)}, nil)

	case NotifyTeams:
		url := resolveURL(req.Target, "webhook_key", "TEAMS_WEBHOOK_URL")
		if url == "" {
			return NotifyResult{}, blockerr.New(blockerr.ConfigMissing, "Teams webhook URL not provided")
		}
		return postJSON(ctx, url, map[string]any{"text": titledMessage(req.Title, req.Message)}, nil)

	case NotifyEmail:
		url := os.Getenv("EMAIL_WEBHOOK_URL")
		if url == "" {
			url = strField(req.Target, "url")
		}
		if url == "" {
			return NotifyResult{}, blockerr.New(blockerr.ConfigMissing, "EMAIL_WEBHOOK_URL not configured")
		}
		payload := map[string]any{"title": req.Title, "message": req.Message, "to": req.Target["to"], "attachments": req.Attachments}
		return postJSON(ctx, url, payload, nil)

	default:
		url := strField(req.Target, "url")
		if url == "" {
			url = os.Getenv(webhookKey(req.Target))
		}
		if url == "" {
			return NotifyResult{}, blockerr.New(blockerr.ConfigMissing, "Webhook URL not provided")
		}
		payload := map[string]any{"title": req.Title, "message": req.Message, "attachments": req.Attachments, "options": req.Options}
		return postJSON(ctx, url, payload, nil)
	}
}

func titledMessage(title, message string) string {
	if title == "" {
		return message
	}
	return title + "\n" + message
}

func resolveURL(target map[string]any, keyField, defaultEnvKey string) string {
	envKey := defaultEnvKey
	if k := strField(target, keyField); k != "" {
		envKey = k
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return strField(target, "url")
}

func webhookKey(target map[string]any) string {
	if k := strField(target, "webhook_key"); k != "" {
		return k
	}
	return "WEBHOOK_URL"
}

func strField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

func postJSON(ctx context.Context, url string, payload map[string]any, headers map[string]string) (NotifyResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return NotifyResult{}, blockerr.NewInputError("payload", "JSON-serializable map", payload)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NotifyResult{}, blockerr.Wrap(err, blockerr.ExternalAPIError, nil)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return NotifyResult{}, blockerr.NewExternalError(false, url, err)
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(resp.Body)

	return NotifyResult{
		OK:       resp.StatusCode >= 200 && resp.StatusCode < 300,
		Response: map[string]any{"status": resp.StatusCode, "text": string(text)},
	}, nil
}
