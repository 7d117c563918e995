package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/ai-mail-assistant/internal/http/handlers"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

type staticResponder struct{}

func (staticResponder) Handle(_ context.Context, _, text string) string {
	return "ack: " + text
}

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()

	logger := logging.Default()
	webhook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})

	return New(&Config{
		Logger:            logger,
		Chat:              handlers.NewChatHandler(staticResponder{}, logger),
		LineWebhook:       webhook,
		MetricsHandler:    metrics,
		OperatorJWTSecret: secret,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterLineWebhookIsPostOnly(t *testing.T) {
	router := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/line", strings.NewReader("{}")))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/line", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rr.Code)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterChatOpenWithoutSecret(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"identifier":"ops","text":"help"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp handlers.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode chat response: %v", err)
	}
	if resp.Reply != "ack: help" {
		t.Errorf("unexpected reply %q", resp.Reply)
	}
}

func TestRouterChatRequiresTokenWhenConfigured(t *testing.T) {
	router := newTestRouter(t, "operator-secret")

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"identifier":"ops","text":"help"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterChatOmittedWithoutHandler(t *testing.T) {
	router := New(&Config{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{}")))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
