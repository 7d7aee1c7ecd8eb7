// Package config builds process configuration from environment variables so
// main stays lean. Misconfiguration of weights or key material is a
// deployment error: Validate is called once at startup and is fatal.
package config

import (
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// DatabaseURL is a lib/pq connection string. Empty selects the in-memory
	// stores (dev and test only).
	DatabaseURL string

	Redis     RedisConfig
	Kafka     KafkaConfig
	Ledger    LedgerConfig
	Pinning   PinningConfig
	Extractor ExtractorConfig

	// MasterKeyHex is the hex-encoded 256-bit key protecting stored
	// embeddings.
	MasterKeyHex string

	// JWTSigningKey signs and validates bearer tokens for the history
	// surface.
	JWTSigningKey string

	Fusion FusionConfig

	MaxUploadBytes int64
	ModelVersion   string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds audit-pipeline settings. Empty brokers disables the
// Kafka sink; audit events still land in the local store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// LedgerConfig points at the anchoring gateway. FallbackURL is optional; when
// set, anchoring degrades to it instead of failing outright.
type LedgerConfig struct {
	PrimaryURL  string
	FallbackURL string
	Timeout     time.Duration
}

// PinningConfig points at the content-addressed storage pinning gateway.
type PinningConfig struct {
	URL   string
	Token string
}

// ExtractorConfig points at the embedding inference sidecar.
type ExtractorConfig struct {
	URL     string
	Timeout time.Duration
}

// FusionConfig carries the score-fusion weights and decision threshold.
type FusionConfig struct {
	FaceWeight  float64
	VoiceWeight float64
	DocWeight   float64
	Threshold   float64
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envString("ANCHORID_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_AUDIT_TOPIC", "anchorid.audit"),
		},
		Ledger: LedgerConfig{
			PrimaryURL:  os.Getenv("LEDGER_URL"),
			FallbackURL: os.Getenv("LEDGER_FALLBACK_URL"),
			Timeout:     envDuration("LEDGER_TIMEOUT", 30*time.Second),
		},
		Pinning: PinningConfig{
			URL:   os.Getenv("PINNING_URL"),
			Token: os.Getenv("PINNING_TOKEN"),
		},
		Extractor: ExtractorConfig{
			URL:     os.Getenv("EXTRACTOR_URL"),
			Timeout: envDuration("EXTRACTOR_TIMEOUT", 20*time.Second),
		},
		MasterKeyHex:  os.Getenv("MASTER_KEY"),
		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Fusion: FusionConfig{
			FaceWeight:  envFloat("FACE_WEIGHT", 0.40),
			VoiceWeight: envFloat("VOICE_WEIGHT", 0.35),
			DocWeight:   envFloat("DOC_WEIGHT", 0.25),
			Threshold:   envFloat("VERIFICATION_THRESHOLD", 0.75),
		},
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10<<20),
		ModelVersion:   envString("MODEL_VERSION", "1.0.0"),
	}
}

// Validate rejects configurations that must never reach request handling.
func (c Config) Validate() error {
	sum := c.Fusion.FaceWeight + c.Fusion.VoiceWeight + c.Fusion.DocWeight
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("fusion weights must sum to 1.0 (got %.4f)", sum)
	}
	if c.Fusion.Threshold <= 0 || c.Fusion.Threshold > 1 {
		return fmt.Errorf("verification threshold must be in (0, 1] (got %.4f)", c.Fusion.Threshold)
	}
	if c.MasterKeyHex == "" {
		return fmt.Errorf("MASTER_KEY is required")
	}
	key, err := hex.DecodeString(c.MasterKeyHex)
	if err != nil {
		return fmt.Errorf("MASTER_KEY must be hex encoded: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("MASTER_KEY must be 32 bytes (256 bits), got %d", len(key))
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func envString(key, fallback string) string {
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

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
