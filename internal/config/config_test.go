package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "LLM_PROVIDER", "MAIL_PROVIDER", "SESSION_TTL", "CANCEL_KEYWORDS", "GMAIL_USER", "GMAIL_PASS", "SMTP_USERNAME", "MAIL_FROM_ADDRESS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "3000" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected gemini provider by default, got %s", cfg.LLMProvider)
	}
	if cfg.MailProvider != "smtp" || cfg.SMTPAddr != "smtp.gmail.com:587" {
		t.Fatalf("expected smtp via gmail by default, got %s %s", cfg.MailProvider, cfg.SMTPAddr)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected default session ttl, got %s", cfg.SessionTTL)
	}
	if len(cfg.CancelKeywords) != 1 || cfg.CancelKeywords[0] != "cancel" {
		t.Fatalf("unexpected cancel keywords %v", cfg.CancelKeywords)
	}
	if cfg.StateBackend != "memory" {
		t.Fatalf("expected memory backend, got %s", cfg.StateBackend)
	}
	if cfg.LineReplyWindow != 50*time.Second {
		t.Fatalf("expected default reply window, got %s", cfg.LineReplyWindow)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", " Bedrock ")
	t.Setenv("LLM_TIMEOUT", "10s")
	t.Setenv("MAIL_PROVIDER", "SES")
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("CANCEL_KEYWORDS", "cancel, stop ,,取消")
	t.Setenv("DRAFT_PREVIEW_RUNES", "60")
	t.Setenv("LLM_TOOL_FINALIZE", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "bedrock" {
		t.Fatalf("expected normalized provider, got %q", cfg.LLMProvider)
	}
	if cfg.LLMTimeout != 10*time.Second {
		t.Fatalf("expected llm timeout override, got %s", cfg.LLMTimeout)
	}
	if cfg.MailProvider != "ses" {
		t.Fatalf("expected ses, got %s", cfg.MailProvider)
	}
	if cfg.StateBackend != "redis" || cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("unexpected state config %s %s", cfg.StateBackend, cfg.SessionTTL)
	}
	if len(cfg.CancelKeywords) != 3 || cfg.CancelKeywords[1] != "stop" || cfg.CancelKeywords[2] != "取消" {
		t.Fatalf("unexpected cancel keywords %v", cfg.CancelKeywords)
	}
	if cfg.DraftPreviewRunes != 60 {
		t.Fatalf("expected preview override, got %d", cfg.DraftPreviewRunes)
	}
	if !cfg.LLMToolFinalize {
		t.Fatalf("expected tool finalize enabled")
	}
}

func TestLoadGmailCompatibility(t *testing.T) {
	t.Setenv("SMTP_USERNAME", "")
	t.Setenv("SMTP_PASSWORD", "")
	t.Setenv("MAIL_FROM_ADDRESS", "")
	t.Setenv("GMAIL_USER", "me@gmail.com")
	t.Setenv("GMAIL_PASS", "app-password")
	cfg := Load()
	if cfg.SMTPUsername != "me@gmail.com" || cfg.MailFromAddress != "me@gmail.com" {
		t.Fatalf("expected gmail user to populate smtp identity, got %q %q", cfg.SMTPUsername, cfg.MailFromAddress)
	}
	if cfg.SMTPPassword != "app-password" {
		t.Fatalf("expected gmail pass to populate smtp password")
	}
}
