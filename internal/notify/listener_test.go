package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// botAPI is a fake Telegram Bot API recording sendMessage calls and serving
// an empty getUpdates response.
type botAPI struct {
	srv *httptest.Server

	mu   sync.Mutex
	sent []map[string]string
}

func newBotAPI(t *testing.T) *botAPI {
	t.Helper()
	api := &botAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			var p map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			api.mu.Lock()
			api.sent = append(api.sent, p)
			api.mu.Unlock()
		}
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func (a *botAPI) replies() []map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]map[string]string(nil), a.sent...)
}

func newTestListener(t *testing.T, api *botAPI, chatIDs ...string) *TelegramListener {
	t.Helper()
	l := NewTelegramListener("tok", chatIDs, testLogger())
	l.apiBase = api.srv.URL
	return l
}

func update(chatID int64, text string) apiUpdate {
	return apiUpdate{
		UpdateID: 1,
		Message:  &apiMessage{Text: text, Chat: apiChat{ID: chatID}},
	}
}

func TestHandleUpdate_UnauthorizedChatRejected(t *testing.T) {
	api := newBotAPI(t)
	l := newTestListener(t, api, "111")

	fired := false
	l.OnCommand("close", func(ctx context.Context) (string, error) {
		fired = true
		return "done", nil
	})

	l.handleUpdate(context.Background(), update(999, "/close"))

	assert.False(t, fired, "unauthorized chats must never reach a handler")
	replies := api.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "999", replies[0]["chat_id"])
	assert.Contains(t, replies[0]["text"], "not authorized")
}

func TestHandleUpdate_AuthorizedCommandDispatches(t *testing.T) {
	api := newBotAPI(t)
	l := newTestListener(t, api, "111")

	fired := false
	l.OnCommand("close", func(ctx context.Context) (string, error) {
		fired = true
		return "Shutdown sequence finished.", nil
	})

	// Group-chat form with bot mention and trailing arguments.
	l.handleUpdate(context.Background(), update(111, "/close@trendbot now"))

	assert.True(t, fired)
	replies := api.replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "111", replies[0]["chat_id"])
	assert.Equal(t, "Shutdown sequence finished.", replies[0]["text"])
}

func TestHandleUpdate_HandlerErrorReported(t *testing.T) {
	api := newBotAPI(t)
	l := newTestListener(t, api, "111")

	l.OnCommand("close", func(ctx context.Context) (string, error) {
		return "", errors.New("withdraw reverted")
	})

	l.handleUpdate(context.Background(), update(111, "/close"))

	replies := api.replies()
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0]["text"], "Command /close failed")
	assert.Contains(t, replies[0]["text"], "withdraw reverted")
}

func TestHandleUpdate_IgnoresNonCommands(t *testing.T) {
	api := newBotAPI(t)
	l := newTestListener(t, api, "111")

	fired := false
	l.OnCommand("status", func(ctx context.Context) (string, error) {
		fired = true
		return "ok", nil
	})

	l.handleUpdate(context.Background(), update(111, "just chatting"))
	l.handleUpdate(context.Background(), apiUpdate{UpdateID: 2})
	l.handleUpdate(context.Background(), update(111, "/unknown"))

	assert.False(t, fired)
	assert.Empty(t, api.replies(), "plain text and unknown commands get no reply")
}

func TestRun_AdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int64
	offsets := make(chan string, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			w.Write([]byte(`{"ok":true,"result":[]}`))
			return
		}
		select {
		case offsets <- r.URL.Query().Get("offset"):
		default:
		}
		if polls.Add(1) == 1 {
			w.Write([]byte(`{"ok":true,"result":[{"update_id":7,"message":{"text":"/status","chat":{"id":111}}}]}`))
			return
		}
		cancel()
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer srv.Close()

	l := NewTelegramListener("tok", []string{"111"}, testLogger())
	l.apiBase = srv.URL
	l.OnCommand("status", func(ctx context.Context) (string, error) { return "ok", nil })

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	assert.Equal(t, "0", <-offsets)
	assert.Equal(t, "8", <-offsets, "next poll must acknowledge past the consumed update")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}
