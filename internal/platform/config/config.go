package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the gateway reads from its environment. Components
// receive the values they need through constructors; nothing below main should
// touch os.Getenv.
type Config struct {
	Addr string

	// Operator auth for the gateway's own callers.
	JWTSigningKey string
	AdminKeyHash  string
	TokenTTL      time.Duration

	// Core stores.
	LedgerPath    string
	AuditFilePath string
	PlanTTL       time.Duration

	// Guardrail thresholds.
	Guardrails Guardrails

	// Optional external backends.
	RedisURL     string
	PostgresDSN  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Guardrails holds the static policy thresholds the guardrail engine enforces.
type Guardrails struct {
	MaxBulkRecords     int
	MaxCouponQty       int
	MaxDiscountPercent float64
	PriceWarnPercent   float64
	PurgeWindow        time.Duration
	PurgeMaxPerWindow  int
}

// DefaultGuardrails mirrors the platform team's standing limits.
func DefaultGuardrails() Guardrails {
	return Guardrails{
		MaxBulkRecords:     500,
		MaxCouponQty:       1000,
		MaxDiscountPercent: 80,
		PriceWarnPercent:   50,
		PurgeWindow:        time.Minute,
		PurgeMaxPerWindow:  10,
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("STOREGATE_ADDR", ":8080"),
		JWTSigningKey: envOr("STOREGATE_JWT_KEY", "dev-secret-key-change-in-production"),
		AdminKeyHash:  os.Getenv("STOREGATE_ADMIN_KEY_HASH"),
		TokenTTL:      envDuration("STOREGATE_TOKEN_TTL", 8*time.Hour),
		LedgerPath:    envOr("STOREGATE_LEDGER_PATH", "idempotency.json"),
		AuditFilePath: envOr("STOREGATE_AUDIT_PATH", "audit.log"),
		PlanTTL:       envDuration("STOREGATE_PLAN_TTL", 15*time.Minute),
		Guardrails:    DefaultGuardrails(),
		RedisURL:      os.Getenv("STOREGATE_REDIS_URL"),
		PostgresDSN:   os.Getenv("STOREGATE_POSTGRES_DSN"),
		KafkaTopic:    envOr("STOREGATE_KAFKA_TOPIC", "storegate.audit"),
	}
	if brokers := os.Getenv("STOREGATE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitComma(brokers)
	}
	if v, err := strconv.Atoi(os.Getenv("STOREGATE_MAX_BULK_RECORDS")); err == nil && v > 0 {
		cfg.Guardrails.MaxBulkRecords = v
	}
	if v, err := strconv.Atoi(os.Getenv("STOREGATE_MAX_COUPON_QTY")); err == nil && v > 0 {
		cfg.Guardrails.MaxCouponQty = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("STOREGATE_MAX_DISCOUNT_PCT"), 64); err == nil && v > 0 {
		cfg.Guardrails.MaxDiscountPercent = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("STOREGATE_PRICE_WARN_PCT"), 64); err == nil && v > 0 {
		cfg.Guardrails.PriceWarnPercent = v
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
