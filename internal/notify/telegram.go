package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// telegramAPIBase is the production Bot API endpoint. Tests point senders
// and the listener at a local server instead.
const telegramAPIBase = "https://api.telegram.org"

// TelegramSender delivers notifications to a list of Telegram chats via the
// Bot API. Chats are independent recipients: a blocked bot or a bad chat ID
// fails that recipient only.
type TelegramSender struct {
	token   string
	chatIDs []string
	apiBase string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender broadcasting to the given chat
// IDs. It uses a default HTTP client with a 10-second timeout.
func NewTelegramSender(token string, chatIDs []string) *TelegramSender {
	return &TelegramSender{
		token:   token,
		chatIDs: chatIDs,
		apiBase: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message to every configured chat concurrently. Per-chat
// failures are collected into one combined error; delivery to the remaining
// chats is unaffected.
func (t *TelegramSender) Send(ctx context.Context, message string) error {
	g, ctx := errgroup.WithContext(ctx)
	errCh := make(chan error, len(t.chatIDs))

	for _, chatID := range t.chatIDs {
		g.Go(func() error {
			if err := t.sendTo(ctx, chatID, message); err != nil {
				errCh <- fmt.Errorf("chat %s: %w", chatID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(errCh)

	var errs []string
	for err := range errCh {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegram: %d recipient(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// sendTo posts one message to one chat using the sendMessage API.
func (t *TelegramSender) sendTo(ctx context.Context, chatID, message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)

	payload := map[string]string{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
