package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Generative text provider
	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	BedrockModelID  string
	LLMFallback     bool
	LLMTimeout      time.Duration
	LLMToolFinalize bool

	// Mail transport
	MailProvider    string
	MailFromAddress string
	MailFromName    string
	MailTimeout     time.Duration
	SMTPAddr        string
	SMTPUsername    string
	SMTPPassword    string
	SendGridAPIKey  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Conversation state
	StateBackend      string
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	SessionTTL        time.Duration
	TriggerPhrase     string
	CancelKeywords    []string
	DraftPreviewRunes int

	// LINE Messaging API
	LineChannelSecret      string
	LineChannelAccessToken string
	LineAPIBaseURL         string
	LineReplyWindow        time.Duration

	// OperatorJWTSecret guards /api/chat when set.
	OperatorJWTSecret string
}

// Load reads configuration from environment variables
func Load() *Config {
	// GMAIL_USER / GMAIL_PASS are honoured so existing .env files keep working.
	gmailUser := getEnv("GMAIL_USER", "")

	return &Config{
		Port:     getEnv("PORT", "3000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		LLMProvider:     strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "gemini"))),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),
		LLMFallback:     getEnvAsBool("LLM_FALLBACK", false),
		LLMTimeout:      getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		LLMToolFinalize: getEnvAsBool("LLM_TOOL_FINALIZE", false),

		MailProvider:    strings.ToLower(strings.TrimSpace(getEnv("MAIL_PROVIDER", "smtp"))),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", gmailUser),
		MailFromName:    getEnv("MAIL_FROM_NAME", "AI Mail Assistant"),
		MailTimeout:     getEnvAsDuration("MAIL_TIMEOUT", 30*time.Second),
		SMTPAddr:        getEnv("SMTP_ADDR", "smtp.gmail.com:587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", gmailUser),
		SMTPPassword:    getEnv("SMTP_PASSWORD", getEnv("GMAIL_PASS", "")),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StateBackend:      strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "memory"))),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		TriggerPhrase:     getEnv("TRIGGER_PHRASE", "send mail"),
		CancelKeywords:    getEnvAsList("CANCEL_KEYWORDS", []string{"cancel"}),
		DraftPreviewRunes: getEnvAsInt("DRAFT_PREVIEW_RUNES", 200),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineAPIBaseURL:         getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		LineReplyWindow:        getEnvAsDuration("LINE_REPLY_WINDOW", 50*time.Second),

		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blank entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
