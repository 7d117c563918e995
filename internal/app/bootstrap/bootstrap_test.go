package bootstrap

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/ai-mail-assistant/internal/config"
	"github.com/wolfman30/ai-mail-assistant/internal/conversation"
	"github.com/wolfman30/ai-mail-assistant/internal/drafts"
	"github.com/wolfman30/ai-mail-assistant/internal/line"
	"github.com/wolfman30/ai-mail-assistant/internal/llm"
	"github.com/wolfman30/ai-mail-assistant/internal/mail"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

var testAWS = aws.Config{Region: "us-east-1"}

type scriptedLLM struct {
	text string
}

func (s scriptedLLM) Complete(context.Context, llm.Request) (llm.Response, error) {
	return llm.PlainText{Text: s.text}, nil
}

func TestBuildLLMClientRequiresConfig(t *testing.T) {
	if _, _, err := BuildLLMClient(context.Background(), nil, testAWS, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildLLMClientProviderErrors(t *testing.T) {
	cases := map[string]*appconfig.Config{
		"unknown provider":      {LLMProvider: "llama"},
		"gemini without key":    {LLMProvider: "gemini"},
		"bedrock without model": {LLMProvider: "bedrock"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := BuildLLMClient(context.Background(), cfg, testAWS, logging.New("error")); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestBuildLLMClientBedrock(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "anthropic.claude-3-haiku"}

	client, cleanup, err := BuildLLMClient(context.Background(), cfg, testAWS, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if _, ok := client.(*llm.BedrockClient); !ok {
		t.Fatalf("expected BedrockClient, got %T", client)
	}
}

func TestBuildLLMClientFallbackUnavailableKeepsPrimary(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "bedrock", BedrockModelID: "anthropic.claude-3-haiku", LLMFallback: true}

	client, cleanup, err := BuildLLMClient(context.Background(), cfg, testAWS, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if _, ok := client.(*llm.BedrockClient); !ok {
		t.Fatalf("expected BedrockClient without a usable fallback, got %T", client)
	}
}

func TestBuildDispatcherProviders(t *testing.T) {
	cases := []struct {
		name     string
		cfg      appconfig.Config
		provider string
	}{
		{name: "stub", cfg: appconfig.Config{MailProvider: "stub"}, provider: "stub"},
		{name: "smtp", cfg: appconfig.Config{MailProvider: "smtp", SMTPAddr: "smtp.example.com:587", MailFromAddress: "bot@example.com"}, provider: "smtp"},
		{name: "default smtp", cfg: appconfig.Config{SMTPUsername: "bot@example.com"}, provider: "smtp"},
		{name: "ses", cfg: appconfig.Config{MailProvider: "ses", MailFromAddress: "bot@example.com"}, provider: "ses"},
		{name: "sendgrid", cfg: appconfig.Config{MailProvider: "sendgrid", SendGridAPIKey: "SG.key", MailFromAddress: "bot@example.com"}, provider: "sendgrid"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			dispatcher, err := BuildDispatcher(&cfg, testAWS, logging.New("error"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dispatcher.Provider() != tc.provider {
				t.Fatalf("expected provider %q, got %q", tc.provider, dispatcher.Provider())
			}
		})
	}
}

func TestBuildDispatcherErrors(t *testing.T) {
	cases := map[string]appconfig.Config{
		"unknown provider":     {MailProvider: "pigeon"},
		"smtp without sender":  {MailProvider: "smtp"},
		"ses without sender":   {MailProvider: "ses"},
		"sendgrid without key": {MailProvider: "sendgrid", MailFromAddress: "bot@example.com"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := BuildDispatcher(&cfg, testAWS, logging.New("error")); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestBuildRedisClient(t *testing.T) {
	if client := BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true); client != nil {
		t.Fatalf("expected nil client without address")
	}

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected client for reachable redis")
	}
	defer client.Close()

	addr := mr.Addr()
	mr.Close()
	if unreachable := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: addr}, logging.New("error"), true); unreachable != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := BuildStore(ctx, &appconfig.Config{StateBackend: "memory", SessionTTL: time.Minute}, nil, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*conversation.MemoryStore); !ok {
		t.Fatalf("expected MemoryStore, got %T", store)
	}

	if _, err := BuildStore(ctx, &appconfig.Config{StateBackend: "redis"}, nil, logging.New("error")); err == nil {
		t.Fatalf("expected error for redis backend without client")
	}
	if _, err := BuildStore(ctx, &appconfig.Config{StateBackend: "etcd"}, nil, logging.New("error")); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store, err = BuildStore(ctx, &appconfig.Config{StateBackend: "redis", SessionTTL: time.Minute}, client, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*conversation.RedisStore); !ok {
		t.Fatalf("expected RedisStore, got %T", store)
	}
}

func TestBuildProcessed(t *testing.T) {
	if _, ok := BuildProcessed(nil, time.Hour).(*line.MemoryProcessed); !ok {
		t.Fatalf("expected in-memory tracker without redis")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	if _, ok := BuildProcessed(client, time.Hour).(*line.RedisProcessed); !ok {
		t.Fatalf("expected redis tracker")
	}
}

func TestJanitorInterval(t *testing.T) {
	if got := janitorInterval(time.Minute); got != 30*time.Second {
		t.Fatalf("expected 30s, got %s", got)
	}
	if got := janitorInterval(time.Millisecond); got != time.Second {
		t.Fatalf("expected floor of 1s, got %s", got)
	}
}

func TestBuildEngineRequiresDependencies(t *testing.T) {
	if _, err := BuildEngine(nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := BuildEngine(&appconfig.Config{}, conversation.NewMemoryStore(), nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing llm client")
	}
}

func TestBuildEngineEndToEnd(t *testing.T) {
	logger := logging.New("error")
	cfg := &appconfig.Config{
		MailProvider:  "stub",
		TriggerPhrase: "send mail",
		SessionTTL:    time.Minute,
		LLMTimeout:    time.Second,
	}
	stub := mail.NewStubSender(logger)
	dispatcher := mail.NewDispatcher(stub, time.Second, logger)
	raw := strings.Join([]string{
		"Subject: Lunch on Friday\nShall we have lunch on Friday?",
		"Subject: Lunch?\nHey, lunch Friday?",
		"Subject: Friday lunch\nLunch Friday.",
	}, "\n"+drafts.Delimiter+"\n")

	engine, err := BuildEngine(cfg, conversation.NewMemoryStore(), scriptedLLM{text: raw}, dispatcher, nil, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	for _, msg := range []string{"please send mail", "bob@example.com", "invite Bob to lunch on Friday"} {
		engine.Handle(ctx, "user-1", msg)
	}
	reply := engine.Handle(ctx, "user-1", "2")
	if !strings.Contains(reply, "Lunch?") || !strings.Contains(reply, "bob@example.com") {
		t.Fatalf("unexpected reply %q", reply)
	}

	sent := stub.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].To != "bob@example.com" || sent[0].Subject != "Lunch?" {
		t.Fatalf("unexpected message %+v", sent[0])
	}
}
