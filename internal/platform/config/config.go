// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server         Server
	Classification Classification
	Extraction     Extraction
	DocumentAI     DocumentAI
	Inference      Inference
	Redis          RedisConfig
	Postgres       PostgresConfig
	Audit          Audit
	Blob           Blob
	RateLimit      RateLimit
	// DefinitionsFile is an optional YAML file overriding built-in
	// document definitions.
	DefinitionsFile string
	LogLevel        string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	// AdminToken guards the audit routes. Empty leaves them unmounted.
	AdminToken string
}

// Classification configures the classifier and its cache.
type Classification struct {
	Threshold float64
	Attempts  int
	Timeout   time.Duration
	// CacheBackend is "memory", "redis" or "none".
	CacheBackend string
	CacheTTL     time.Duration
}

// Extraction configures per-template backend calls.
type Extraction struct {
	MaxConcurrency         int
	FieldTimeout           time.Duration
	CapabilityTimeout      time.Duration
	CapabilityAttempts     int
	InitialBackoff         time.Duration
	MaxBackoff             time.Duration
	MinDetectionConfidence float64
	BoxVariance            float64
}

// DocumentAI locates the Document AI processors.
type DocumentAI struct {
	ProjectID             string
	Location              string
	ClassifierProcessorID string
	// ExtractorProcessors maps model IDs to processor IDs.
	ExtractorProcessors map[string]string
	CredentialsFile     string
	Timeout             time.Duration
}

// Inference locates the landmark and liveness service.
type Inference struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// BreakerFailures consecutive outages open the circuit. Zero disables it.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// RedisConfig configures the shared Redis client. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the pgx pool. An empty DSN disables Postgres.
type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Audit configures the audit trail.
type Audit struct {
	// Store is "memory" or "postgres".
	Store         string
	AsyncBuffer   int
	BatchSize     int
	FlushInterval time.Duration
	OpsSampleRate float64
}

// Blob configures extract-by-reference.
type Blob struct {
	Dir     string
	MaxSize int64
}

// RateLimit bounds extraction requests per client IP.
type RateLimit struct {
	// Extract is the number of extraction requests allowed per Window.
	// Zero disables limiting.
	Extract int
	Window  time.Duration
	// Store is "memory" or "redis".
	Store string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Malformed values are reported rather than silently defaulted.
func FromEnv() (Config, error) {
	e := &env{}
	cfg := Config{
		Server: Server{
			Addr:            e.str("EKYC_ADDR", ":8080"),
			RequestTimeout:  e.duration("REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxUploadBytes:  e.int64("MAX_UPLOAD_BYTES", 10<<20),
			AdminToken:      e.str("ADMIN_TOKEN", ""),
		},
		Classification: Classification{
			Threshold:    e.float("CLASSIFICATION_THRESHOLD", 0.8),
			Attempts:     e.int("CLASSIFICATION_ATTEMPTS", 3),
			Timeout:      e.duration("CLASSIFICATION_TIMEOUT", 10*time.Second),
			CacheBackend: e.str("CLASSIFICATION_CACHE", "memory"),
			CacheTTL:     e.duration("CLASSIFICATION_CACHE_TTL", 10*time.Minute),
		},
		Extraction: Extraction{
			MaxConcurrency:         e.int("EXTRACTION_MAX_CONCURRENCY", 4),
			FieldTimeout:           e.duration("FIELD_TIMEOUT", 10*time.Second),
			CapabilityTimeout:      e.duration("LIVENESS_TIMEOUT", 15*time.Second),
			CapabilityAttempts:     e.int("LIVENESS_ATTEMPTS", 2),
			InitialBackoff:         e.duration("RETRY_INITIAL_BACKOFF", 200*time.Millisecond),
			MaxBackoff:             e.duration("RETRY_MAX_BACKOFF", 2*time.Second),
			MinDetectionConfidence: e.float("MIN_DETECTION_CONFIDENCE", 0),
			BoxVariance:            e.float("BOX_VARIANCE", 0.05),
		},
		DocumentAI: DocumentAI{
			ProjectID:             e.str("DOCUMENTAI_PROJECT_ID", ""),
			Location:              e.str("DOCUMENTAI_LOCATION", "us"),
			ClassifierProcessorID: e.str("DOCUMENTAI_CLASSIFIER_PROCESSOR", ""),
			ExtractorProcessors:   e.pairs("DOCUMENTAI_EXTRACTORS"),
			CredentialsFile:       e.str("GOOGLE_APPLICATION_CREDENTIALS", ""),
			Timeout:               e.duration("DOCUMENTAI_TIMEOUT", 30*time.Second),
		},
		Inference: Inference{
			URL:     e.str("INFERENCE_URL", ""),
			APIKey:  e.str("INFERENCE_API_KEY", ""),
			Timeout: e.duration("INFERENCE_TIMEOUT", 20*time.Second),

			BreakerFailures: e.int("INFERENCE_BREAKER_FAILURES", 5),
			BreakerCooldown: e.duration("INFERENCE_BREAKER_COOLDOWN", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:              e.str("DATABASE_URL", ""),
			MaxConns:         int32(e.int("DB_MAX_CONNS", 10)),
			MinConns:         int32(e.int("DB_MIN_CONNS", 1)),
			MaxConnLifetime:  e.duration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  e.duration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      e.duration("DB_DIAL_TIMEOUT", 5*time.Second),
			StatementTimeout: e.duration("DB_STATEMENT_TIMEOUT", 0),
		},
		Audit: Audit{
			Store:         e.str("AUDIT_STORE", "memory"),
			AsyncBuffer:   e.int("AUDIT_ASYNC_BUFFER", 1024),
			BatchSize:     e.int("AUDIT_BATCH_SIZE", 50),
			FlushInterval: e.duration("AUDIT_FLUSH_INTERVAL", 250*time.Millisecond),
			OpsSampleRate: e.float("AUDIT_OPS_SAMPLE_RATE", 1),
		},
		Blob: Blob{
			Dir:     e.str("BLOB_DIR", ""),
			MaxSize: e.int64("BLOB_MAX_BYTES", 10<<20),
		},
		RateLimit: RateLimit{
			Extract: e.int("RATE_LIMIT_EXTRACT", 0),
			Window:  e.duration("RATE_LIMIT_WINDOW", time.Minute),
			Store:   e.str("RATE_LIMIT_STORE", "memory"),
		},
		DefinitionsFile: e.str("DOCUMENT_DEFINITIONS_FILE", ""),
		LogLevel:        e.str("LOG_LEVEL", "info"),
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	if c.Classification.Threshold < 0 || c.Classification.Threshold > 1 {
		errs = append(errs, fmt.Errorf("CLASSIFICATION_THRESHOLD must be within [0,1], got %v", c.Classification.Threshold))
	}
	if c.Classification.Attempts < 1 {
		errs = append(errs, fmt.Errorf("CLASSIFICATION_ATTEMPTS must be at least 1"))
	}
	if c.Extraction.CapabilityAttempts < 1 {
		errs = append(errs, fmt.Errorf("LIVENESS_ATTEMPTS must be at least 1"))
	}
	if c.Extraction.BoxVariance <= 0 || c.Extraction.BoxVariance > 1 {
		errs = append(errs, fmt.Errorf("BOX_VARIANCE must be within (0,1]"))
	}
	switch c.Classification.CacheBackend {
	case "memory", "none":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("CLASSIFICATION_CACHE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CLASSIFICATION_CACHE %q", c.Classification.CacheBackend))
	}
	switch c.Audit.Store {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("AUDIT_STORE=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_STORE %q", c.Audit.Store))
	}
	if c.RateLimit.Extract < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_EXTRACT must not be negative"))
	}
	if c.RateLimit.Extract > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive"))
	}
	switch c.RateLimit.Store {
	case "memory":
	case "redis":
		if c.RateLimit.Extract > 0 && c.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_STORE %q", c.RateLimit.Store))
	}
	if c.DocumentAI.ProjectID == "" || c.DocumentAI.ClassifierProcessorID == "" {
		errs = append(errs, fmt.Errorf("DOCUMENTAI_PROJECT_ID and DOCUMENTAI_CLASSIFIER_PROCESSOR are required"))
	}
	if c.Inference.URL == "" {
		errs = append(errs, fmt.Errorf("INFERENCE_URL is required"))
	}
	return errors.Join(errs...)
}

// env reads typed values and collects parse failures.
type env struct {
	errs []error
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) int64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

// pairs parses "a=1,b=2".
func (e *env) pairs(key string) map[string]string {
	out := make(map[string]string)
	v := os.Getenv(key)
	if v == "" {
		return out
	}
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, val, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(k) == "" {
			e.errs = append(e.errs, fmt.Errorf("%s: malformed pair %q", key, item))
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return out
}
