// Package line adapts the LINE Messaging API to the conversation engine.
package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

const (
	defaultBaseURL   = "https://api.line.me"
	defaultUserAgent = "ai-mail-assistant/0.1"

	// MaxTextRunes is the LINE limit for one text message.
	MaxTextRunes = 5000
	// maxMessages is the LINE limit per reply or push call.
	maxMessages = 5
)

// Config controls how the LINE client behaves.
type Config struct {
	BaseURL            string
	ChannelAccessToken string
	ChannelSecret      string
	Timeout            time.Duration
	MaxRetries         int
	Backoff            time.Duration
	HTTPClient         *http.Client
	Logger             *logging.Logger
	UserAgent          string
}

// Client wraps the Messaging API endpoints the bot needs.
type Client struct {
	accessToken   string
	channelSecret string
	baseURL       string
	httpClient    *http.Client
	maxRetries    int
	backoff       time.Duration
	logger        *logging.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ChannelAccessToken) == "" {
		return nil, errors.New("line: channel access token is required")
	}
	if strings.TrimSpace(cfg.ChannelSecret) == "" {
		return nil, errors.New("line: channel secret is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &Client{
		accessToken:   cfg.ChannelAccessToken,
		channelSecret: cfg.ChannelSecret,
		baseURL:       baseURL,
		httpClient:    httpClient,
		maxRetries:    maxRetries,
		backoff:       backoff,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Reply answers an event with its one-shot reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, texts ...string) error {
	if strings.TrimSpace(replyToken) == "" {
		return errors.New("line: reply token is required")
	}
	messages, err := buildMessages(texts)
	if err != nil {
		return err
	}
	body, err := json.Marshal(struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []textMessage `json:"messages"`
	}{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return fmt.Errorf("line: marshal reply body: %w", err)
	}
	_, err = c.invoke(ctx, "/v2/bot/message/reply", body, nil)
	return err
}

// Push sends messages to a user, group or room without a reply token.
func (c *Client) Push(ctx context.Context, to string, texts ...string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("line: push target is required")
	}
	messages, err := buildMessages(texts)
	if err != nil {
		return err
	}
	body, err := json.Marshal(struct {
		To       string        `json:"to"`
		Messages []textMessage `json:"messages"`
	}{To: to, Messages: messages})
	if err != nil {
		return fmt.Errorf("line: marshal push body: %w", err)
	}
	// Same retry key on every attempt; LINE drops accepted duplicates.
	headers := map[string]string{"X-Line-Retry-Key": uuid.NewString()}
	_, err = c.invoke(ctx, "/v2/bot/message/push", body, headers)
	return err
}

// VerifySignature checks X-Line-Signature: base64(HMAC-SHA256(secret, body)).
func (c *Client) VerifySignature(body []byte, signature string) error {
	return VerifySignature(c.channelSecret, body, signature)
}

// VerifySignature checks a webhook body against its X-Line-Signature header.
func VerifySignature(channelSecret string, body []byte, signature string) error {
	if channelSecret == "" {
		return errors.New("line: channel secret not configured")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("line: missing signature header")
	}
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("line: malformed signature: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return errors.New("line: signature mismatch")
	}
	return nil
}

// Sign computes the signature LINE would send for body.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func buildMessages(texts []string) ([]textMessage, error) {
	var messages []textMessage
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		messages = append(messages, textMessage{Type: "text", Text: truncate(text, MaxTextRunes)})
	}
	if len(messages) == 0 {
		return nil, errors.New("line: at least one non-empty message is required")
	}
	if len(messages) > maxMessages {
		return nil, fmt.Errorf("line: at most %d messages per call", maxMessages)
	}
	return messages, nil
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit-1]) + "…"
}

func (c *Client) invoke(ctx context.Context, path string, body []byte, headers map[string]string) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("line: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("line: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("line: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		// 409 means the retry key was already accepted.
		if resp.StatusCode == http.StatusConflict && headers["X-Line-Retry-Key"] != "" && attempt > 0 {
			return data, nil
		}

		apiErr := decodeAPIError(resp.StatusCode, data, resp.Header.Get("X-Line-Request-Id"))
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("line: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("line retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// APIError is a non-2xx answer from the Messaging API.
type APIError struct {
	StatusCode int           `json:"-"`
	RequestID  string        `json:"-"`
	Message    string        `json:"message,omitempty"`
	Details    []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail points at the offending request property.
type ErrorDetail struct {
	Message  string `json:"message"`
	Property string `json:"property"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("line: %s (status=%d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("line: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte, requestID string) error {
	var parsed APIError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &APIError{StatusCode: status, RequestID: requestID, Message: strings.TrimSpace(string(body))}
	}
	parsed.StatusCode = status
	parsed.RequestID = requestID
	return &parsed
}

// IsBadRequest reports a 400 answer, which for replies means the token has
// expired or was already used.
func IsBadRequest(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}
