package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Webhook payload formats.
const (
	FormatDiscord  = "discord"
	FormatSlack    = "slack"
	FormatPushover = "pushover"
)

const webhookMaxRetries = 3

type WebhookSender struct {
	URL    string
	Format string
	// Token and User are the pushover application and user keys.
	Token  string
	User   string
	Client *http.Client
	Log    logrus.FieldLogger
	// NewBackOff returns the retry policy for one delivery.
	NewBackOff func() backoff.BackOff
}

func NewWebhookSender(url, format, token, user string, log logrus.FieldLogger) *WebhookSender {
	return &WebhookSender{
		URL:    url,
		Format: format,
		Token:  token,
		User:   user,
		Client: &http.Client{Timeout: 10 * time.Second},
		Log:    log,
		NewBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), webhookMaxRetries)
		},
	}
}

func (ws *WebhookSender) SendAlert(ctx context.Context, hostname string, failures int, detail string) error {
	if ws.URL == "" {
		return nil
	}

	title := fmt.Sprintf("Certificate Alert: %s", hostname)
	var text string
	if failures > 1 {
		text = fmt.Sprintf("%s\n%d consecutive failed checks", detail, failures)
	} else {
		text = detail
	}

	switch ws.Format {
	case FormatSlack:
		return ws.postJSON(ctx, map[string]string{
			"text": fmt.Sprintf("*%s*\n%s", title, text),
		})
	case FormatPushover:
		return ws.postForm(ctx, title, text)
	default:
		return ws.postJSON(ctx, map[string]any{
			"embeds": []map[string]any{
				{
					"title":       title,
					"description": text,
					"color":       16711680,
					"timestamp":   time.Now().UTC().Format(time.RFC3339),
				},
			},
		})
	}
}

func (ws *WebhookSender) SendRecovery(ctx context.Context, hostname string) error {
	if ws.URL == "" {
		return nil
	}

	title := fmt.Sprintf("Certificate Recovered: %s", hostname)
	text := fmt.Sprintf("The certificate of %s is fresh again.", hostname)

	switch ws.Format {
	case FormatSlack:
		return ws.postJSON(ctx, map[string]string{
			"text": fmt.Sprintf("*%s*\n%s", title, text),
		})
	case FormatPushover:
		return ws.postForm(ctx, title, text)
	default:
		return ws.postJSON(ctx, map[string]any{
			"embeds": []map[string]any{
				{
					"title":       title,
					"description": text,
					"color":       65280,
					"timestamp":   time.Now().UTC().Format(time.RFC3339),
				},
			},
		})
	}
}

func (ws *WebhookSender) postJSON(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	return ws.deliver(ctx, "application/json", body)
}

func (ws *WebhookSender) postForm(ctx context.Context, title, message string) error {
	form := url.Values{}
	form.Set("token", ws.Token)
	form.Set("user", ws.User)
	form.Set("title", title)
	form.Set("message", message)
	return ws.deliver(ctx, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

// deliver posts body, retrying network errors and 5xx answers. A 4xx answer
// will not get better by retrying and stops at once.
func (ws *WebhookSender) deliver(ctx context.Context, contentType string, body []byte) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := ws.client().Do(req)
		if err != nil {
			return fmt.Errorf("webhook request failed: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		if ws.Log != nil {
			ws.Log.WithError(err).WithField("retry_in", wait.String()).Warn("webhook delivery failed")
		}
	}

	return backoff.RetryNotify(operation, backoff.WithContext(ws.backOff(), ctx), notify)
}

func (ws *WebhookSender) backOff() backoff.BackOff {
	if ws.NewBackOff != nil {
		return ws.NewBackOff()
	}
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), webhookMaxRetries)
}

func (ws *WebhookSender) client() *http.Client {
	if ws.Client != nil {
		return ws.Client
	}
	return http.DefaultClient
}
