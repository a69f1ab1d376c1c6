package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CommandHandler processes one operator command and returns the reply text
// for the issuing chat.
type CommandHandler func(ctx context.Context) (reply string, err error)

// TelegramListener long-polls the Bot API for operator commands and
// dispatches them to registered handlers. Only chats on the allow list may
// issue commands; anyone else receives a rejection reply.
type TelegramListener struct {
	token    string
	allowed  map[string]bool
	handlers map[string]CommandHandler
	apiBase  string
	client   *http.Client
	logger   *slog.Logger
	offset   int64
}

// NewTelegramListener creates a listener authorizing only the given chat
// IDs. Handlers are registered with OnCommand before Run is started.
func NewTelegramListener(token string, chatIDs []string, logger *slog.Logger) *TelegramListener {
	allowed := make(map[string]bool, len(chatIDs))
	for _, id := range chatIDs {
		allowed[strings.TrimSpace(id)] = true
	}
	return &TelegramListener{
		token:    token,
		allowed:  allowed,
		handlers: make(map[string]CommandHandler),
		apiBase:  telegramAPIBase,
		// Client timeout must outlast the long-poll window.
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger.With(slog.String("component", "telegram_listener")),
	}
}

// OnCommand registers the handler for a command name (without the leading
// slash). Not safe to call after Run has started.
func (l *TelegramListener) OnCommand(name string, handler CommandHandler) {
	l.handlers[strings.ToLower(name)] = handler
}

// Run long-polls getUpdates until the context is cancelled. Poll failures
// are logged and retried after a short backoff; they never stop the
// listener.
func (l *TelegramListener) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "command listener starting",
		slog.Int("authorized_chats", len(l.allowed)),
	)

	for {
		updates, err := l.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.WarnContext(ctx, "poll failed, retrying",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= l.offset {
				l.offset = u.UpdateID + 1
			}
			l.handleUpdate(ctx, u)
		}
	}
}

func (l *TelegramListener) handleUpdate(ctx context.Context, u apiUpdate) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}

	text := strings.TrimSpace(u.Message.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)

	// "/status@botname extra" -> "status"
	name := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	name = strings.ToLower(name)

	if !l.allowed[chatID] {
		l.logger.WarnContext(ctx, "unauthorized command attempt",
			slog.String("chat_id", chatID),
			slog.String("command", name),
		)
		l.reply(ctx, chatID, "Sorry, you are not authorized to use this bot.")
		return
	}

	handler, ok := l.handlers[name]
	if !ok {
		return
	}

	l.logger.InfoContext(ctx, "command received",
		slog.String("chat_id", chatID),
		slog.String("command", name),
	)

	replyText, err := handler(ctx)
	if err != nil {
		l.logger.ErrorContext(ctx, "command handler failed",
			slog.String("command", name),
			slog.String("error", err.Error()),
		)
		l.reply(ctx, chatID, fmt.Sprintf("Command /%s failed: %v", name, err))
		return
	}
	if replyText != "" {
		l.reply(ctx, chatID, replyText)
	}
}

// reply sends text to a single chat; failures are logged only.
func (l *TelegramListener) reply(ctx context.Context, chatID, text string) {
	sender := &TelegramSender{token: l.token, apiBase: l.apiBase, client: l.client}
	if err := sender.sendTo(ctx, chatID, text); err != nil {
		l.logger.ErrorContext(ctx, "reply failed",
			slog.String("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

type apiUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *apiMessage `json:"message"`
}

type apiMessage struct {
	Text string  `json:"text"`
	Chat apiChat `json:"chat"`
}

type apiChat struct {
	ID int64 `json:"id"`
}

type apiUpdatesResponse struct {
	OK     bool        `json:"ok"`
	Result []apiUpdate `json:"result"`
}

// poll issues one getUpdates long poll.
func (l *TelegramListener) poll(ctx context.Context) ([]apiUpdate, error) {
	params := url.Values{}
	params.Set("timeout", "50")
	params.Set("offset", strconv.FormatInt(l.offset, 10))
	params.Set("allowed_updates", `["message"]`)

	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", l.apiBase, l.token, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: get updates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read updates: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed apiUpdatesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram: api returned ok=false")
	}
	return parsed.Result, nil
}
