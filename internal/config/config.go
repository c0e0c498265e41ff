package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        int
	LogLevel    string
	APIKey      string
	CallbackURL string

	GeminiAPIKeys []string
	GeminiModel   string

	NatsURL     string
	NatsToken   string
	DatabaseURL string

	PanicTurns       int // last turn of the panic stage
	TrustTurns       int // last turn of the trust stage
	ReportAfter      int // turn count at which a suspected-scam session gets reported
	HistoryWindow    int // messages of history included in the prompt
	SessionTTL       time.Duration
	SlotCooldown     time.Duration
	FailureThreshold int // consecutive transient failures before a slot cools down
	RequestTimeout   time.Duration
}

func Load() Config {
	return Config{
		Port:        envInt("GRIFT_PORT", 8460),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIKey:      envStr("GRIFT_API_KEY", ""),
		CallbackURL: envStr("CALLBACK_URL", ""),

		GeminiAPIKeys: envList("GEMINI_API_KEYS"),
		GeminiModel:   envStr("GEMINI_MODEL", "gemini-2.5-flash"),

		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),

		PanicTurns:       envInt("GRIFT_PANIC_TURNS", 3),
		TrustTurns:       envInt("GRIFT_TRUST_TURNS", 7),
		ReportAfter:      envInt("GRIFT_REPORT_AFTER", 8),
		HistoryWindow:    envInt("GRIFT_HISTORY_WINDOW", 10),
		SessionTTL:       envDuration("GRIFT_SESSION_TTL", 30*time.Minute),
		SlotCooldown:     envDuration("GRIFT_SLOT_COOLDOWN", 60*time.Second),
		FailureThreshold: envInt("GRIFT_FAILURE_THRESHOLD", 3),
		RequestTimeout:   envDuration("GRIFT_REQUEST_TIMEOUT", 8*time.Second),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
