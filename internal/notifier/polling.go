package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SignalSentinel/internal/observability"
)

// Command is an inbound bot message.
type Command struct {
	UserID string
	ChatID string
	Text   string
}

// CommandHandler is called for each received command. A non-empty reply is sent back to the command's chat.
type CommandHandler func(ctx context.Context, cmd Command) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		From *struct {
			ID int64 `json:"id"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	offset := 0
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	for {
		if ctx.Err() != nil {
			observability.Info("telegram polling stopped")
			return
		}

		updates, err := t.getUpdates(ctx, client, offset, 30)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			observability.Warn("polling request failed", "error", err)
			sleep(ctx, 5*time.Second)
			continue
		}

		for _, cmd := range commands(updates, &offset) {
			observability.Info("received command", "text", cmd.Text, "user_id", cmd.UserID)
			if reply := handler(ctx, cmd); reply != "" {
				if err := t.Deliver(ctx, reply, cmd.ChatID); err != nil {
					observability.Error("send reply failed", "error", err)
				}
			}
		}
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset, timeoutSec int) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d", t.BaseURL, t.BotToken, offset, timeoutSec)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read polling response: %w", err)
	}
	var result struct {
		OK          bool             `json:"ok"`
		Description string           `json:"description"`
		Result      []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode polling response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates: %s", result.Description)
	}
	return result.Result, nil
}

// commands extracts text commands and advances offset past every update seen.
func commands(updates []telegramUpdate, offset *int) []Command {
	var out []Command
	for _, u := range updates {
		*offset = u.UpdateID + 1
		if u.Message == nil || strings.TrimSpace(u.Message.Text) == "" {
			continue
		}
		cmd := Command{
			ChatID: strconv.FormatInt(u.Message.Chat.ID, 10),
			Text:   strings.TrimSpace(u.Message.Text),
		}
		if u.Message.From != nil {
			cmd.UserID = strconv.FormatInt(u.Message.From.ID, 10)
		}
		out = append(out, cmd)
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
