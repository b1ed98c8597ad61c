package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Text generation provider
	OpenAIAPIKey  string // 未設定の場合はフォールバックプランのみで動作する
	OpenAIBaseURL string
	OpenAIModel   string
	LLMTimeout    time.Duration
	LLMMaxRetries int

	// Telephony provider
	TelephonyAPIKey  string
	TelephonyBaseURL string
	TelephonyPhoneID string

	// Webhook
	WebhookSecret string

	// Dispatch
	DispatchInterval      time.Duration
	DispatchMaxConcurrent int
	DispatchLocalHour     int

	// SMTP
	SMTPAddr string
	SMTPFrom string

	// Rate Limit
	RateLimitGeneral int
	RateLimitPlanGen int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// テキスト生成・テレフォニープロバイダの認証情報は任意で、
// 未設定時はそれぞれフォールバック動作・エラー応答になる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "https://api.openai.com")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)
	cfg.LLMMaxRetries = getEnvInt("LLM_MAX_RETRIES", 3)

	cfg.TelephonyAPIKey = os.Getenv("TELEPHONY_API_KEY")
	cfg.TelephonyBaseURL = getEnvString("TELEPHONY_BASE_URL", "https://api.vapi.ai")
	cfg.TelephonyPhoneID = os.Getenv("TELEPHONY_PHONE_ID")

	cfg.DispatchInterval = getEnvDuration("DISPATCH_INTERVAL", time.Hour)
	cfg.DispatchMaxConcurrent = getEnvInt("DISPATCH_MAX_CONCURRENT", 10)
	cfg.DispatchLocalHour = getEnvInt("DISPATCH_LOCAL_HOUR", 8)

	cfg.SMTPAddr = getEnvString("SMTP_ADDR", "")
	cfg.SMTPFrom = getEnvString("SMTP_FROM", "noreply@coachman.example.com")

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPlanGen = getEnvInt("RATE_LIMIT_PLAN_GEN", 5)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
