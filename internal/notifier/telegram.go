package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"

	"SignalSentinel/internal/breaker"
	"SignalSentinel/internal/observability"
)

const telegramBaseURL = "https://api.telegram.org"

// Delivery outcomes recorded in metrics.
const (
	DeliverySent     = "sent"
	DeliveryFailed   = "failed"
	DeliveryRejected = "rejected"
)

// TelegramNotifier sends messages via the Telegram Bot API. Failed sends are not retried.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client

	cb      *gobreaker.CircuitBreaker[struct{}]
	metrics *observability.Metrics
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, metrics *observability.Metrics) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if metrics == nil {
		metrics = observability.GetMetrics()
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  telegramBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		cb:      breaker.New[struct{}](breaker.Telegram, breaker.DefaultConfig, metrics),
		metrics: metrics,
	}
}

// Send delivers text to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	return t.Deliver(ctx, text, t.ChatID)
}

// Deliver sends an HTML message to chatID.
func (t *TelegramNotifier) Deliver(ctx context.Context, text, chatID string) error {
	_, err := t.cb.Execute(func() (struct{}, error) {
		return struct{}{}, t.post(ctx, text, chatID)
	})
	if err != nil {
		err = breaker.Wrap(breaker.Telegram, err)
		status := DeliveryFailed
		if errors.Is(err, breaker.ErrUnavailable) {
			status = DeliveryRejected
		}
		t.metrics.RecordNotification(status)
		return err
	}
	t.metrics.RecordNotification(DeliverySent)
	return nil
}

func (t *TelegramNotifier) post(ctx context.Context, text, chatID string) error {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, t.BotToken)
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
