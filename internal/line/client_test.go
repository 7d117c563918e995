package line

import (
	"context"
	"encoding/json"
	"io"
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

func newTestClient(t *testing.T, server *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = server.URL
	if cfg.ChannelAccessToken == "" {
		cfg.ChannelAccessToken = "token"
	}
	if cfg.ChannelSecret == "" {
		cfg.ChannelSecret = "secret"
	}
	cfg.HTTPClient = server.Client()
	cfg.Backoff = time.Millisecond
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func TestNewClientDefaultsAndValidation(t *testing.T) {
	_, err := New(Config{ChannelSecret: "s"})
	assert.Error(t, err)
	_, err = New(Config{ChannelAccessToken: "t"})
	assert.Error(t, err)

	client, err := New(Config{ChannelAccessToken: "t", ChannelSecret: "s", MaxRetries: -3})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
	assert.Zero(t, client.maxRetries)
	assert.NotNil(t, client.logger)
}

func TestReplySendsTextMessages(t *testing.T) {
	var got struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []textMessage `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{})
	require.NoError(t, client.Reply(context.Background(), "rt-1", "hello", "  ", strings.Repeat("あ", MaxTextRunes+10)))

	assert.Equal(t, "rt-1", got.ReplyToken)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, textMessage{Type: "text", Text: "hello"}, got.Messages[0])
	assert.Equal(t, MaxTextRunes, len([]rune(got.Messages[1].Text)))
}

func TestReplyValidation(t *testing.T) {
	client, err := New(Config{ChannelAccessToken: "t", ChannelSecret: "s"})
	require.NoError(t, err)
	assert.Error(t, client.Reply(context.Background(), "", "x"))
	assert.Error(t, client.Reply(context.Background(), "rt", " "))
	assert.Error(t, client.Push(context.Background(), "", "x"))
	assert.Error(t, client.Push(context.Background(), "U1", "1", "2", "3", "4", "5", "6"))
}

func TestReplyBadRequestIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Line-Request-Id", "req-9")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	err := client.Reply(context.Background(), "rt", "x")
	require.Error(t, err)
	assert.True(t, IsBadRequest(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid reply token", apiErr.Message)
	assert.Equal(t, "req-9", apiErr.RequestID)
	assert.Contains(t, apiErr.Error(), "status=400")
}

func TestPushRetriesWithStableKey(t *testing.T) {
	var (
		calls int32
		mu    sync.Mutex
		keys  []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		mu.Lock()
		keys = append(keys, r.Header.Get("X-Line-Retry-Key"))
		mu.Unlock()
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"internal"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 1})
	require.NoError(t, client.Push(context.Background(), "U1", "hi"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
}

func TestPushConflictAfterRetryIsSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"The retry key is already accepted"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 1})
	assert.NoError(t, client.Push(context.Background(), "U1", "hi"))
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := newTestClient(t, server, Config{MaxRetries: 2})
	err := client.Reply(context.Background(), "rt", "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "not json", apiErr.Message)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := Sign("secret", body)

	assert.NoError(t, VerifySignature("secret", body, sig))
	assert.Error(t, VerifySignature("other", body, sig))
	assert.Error(t, VerifySignature("secret", []byte(`{"events":[1]}`), sig))
	assert.Error(t, VerifySignature("secret", body, ""))
	assert.Error(t, VerifySignature("secret", body, "%%%"))
	assert.Error(t, VerifySignature("", body, sig))

	client, err := New(Config{ChannelAccessToken: "t", ChannelSecret: "secret"})
	require.NoError(t, err)
	assert.NoError(t, client.VerifySignature(body, sig))
}
