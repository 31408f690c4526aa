// Package config provides centralized configuration management for pocketnotes.
// It loads configuration from CLI flags and environment variables (optionally
// seeded from a .env file), validates it, and provides sensible defaults.
//
// CLI flags select the listen address and storage backend (--addr, --backend, --test).
// Environment variables provide secrets and backend settings.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kuitang/pocketnotes/internal/crypto"
	"github.com/kuitang/pocketnotes/internal/logutil"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/kuitang/pocketnotes/internal/ratelimit"
	"github.com/kuitang/pocketnotes/internal/s3client"
	"github.com/kuitang/pocketnotes/internal/storage"
)

const (
	defaultListenAddr = ":8080"
	defaultDataDir    = "./data"
	defaultS3Region   = "auto"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	ListenAddr string
	LogLevel   slog.Level

	// Storage
	StorageBackend storage.Kind
	DataDir        string        // file and sqlite backends
	RecordName     string        // storage key of the note collection
	SQLiteKey      string        // optional, 64 hex characters
	MasterKey      string        // optional, 64 hex characters; enables encryption at rest
	PersistTimeout time.Duration // bound on each flush
	WatchStorage   bool          // reload the store when the record changes externally (file, s3)

	// Rate limiting
	RateLimitConfig ratelimit.Config

	// S3-compatible storage (AWS_ env vars, as set by `fly storage create`)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	S3Prefix           string // S3_PREFIX

	S3PollInterval time.Duration // S3_POLL_INTERVAL, how often WATCH_STORAGE checks the object
}

// Flags are the command-line overrides applied on top of the environment.
type Flags struct {
	Addr    string // overrides LISTEN_ADDR
	Backend string // overrides STORAGE_BACKEND
	Test    bool   // in-memory storage, no watcher
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// ParseFlags registers and parses --addr, --backend and --test on the default flag set.
// Call before LoadConfig.
func ParseFlags() Flags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet registers the server flags on fs and parses args.
func ParseFlagSet(fs *flag.FlagSet, args []string) Flags {
	var f Flags
	fs.StringVar(&f.Addr, "addr", "", "Listen address (default :8080, overrides LISTEN_ADDR env var)")
	fs.StringVar(&f.Backend, "backend", "", "Storage backend: memory, file, sqlite or s3 (overrides STORAGE_BACKEND)")
	fs.BoolVar(&f.Test, "test", false, "Use in-memory storage")
	_ = fs.Parse(args)
	return f
}

// LoadDotEnv seeds the environment from the given .env files (".env" when none are given).
// Variables already set in the environment win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		obs.Pkg("config").Info("config.dotenv_loaded", "path", path)
	}
	return nil
}

// LoadConfig loads configuration from environment variables and CLI flag values.
func LoadConfig(flags Flags) (*Config, error) {
	cfg := &Config{}
	var problems []string

	// Server settings
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", defaultListenAddr)
	if flags.Addr != "" {
		cfg.ListenAddr = flags.Addr
	}
	level, err := obs.ParseLevel(getEnvOrDefault("LOG_LEVEL", "info"))
	if err != nil {
		problems = append(problems, "LOG_LEVEL must be one of debug, info, warn, error")
	}
	cfg.LogLevel = level

	// Storage
	cfg.StorageBackend = storage.Kind(strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", string(storage.KindFile))))
	if flags.Backend != "" {
		cfg.StorageBackend = storage.Kind(strings.ToLower(flags.Backend))
	}
	if flags.Test {
		cfg.StorageBackend = storage.KindMemory
	}
	cfg.DataDir = getEnvOrDefault("DATA_DIR", defaultDataDir)
	cfg.RecordName = getEnvOrDefault("RECORD_NAME", notes.DefaultRecordName)
	cfg.SQLiteKey = strings.TrimSpace(os.Getenv("SQLITE_KEY"))
	cfg.MasterKey = strings.TrimSpace(os.Getenv("MASTER_KEY"))
	cfg.PersistTimeout = parseDurationOrDefault("PERSIST_TIMEOUT", notes.DefaultPersistTimeout)
	cfg.WatchStorage = parseBoolOrDefault("WATCH_STORAGE", true) && !flags.Test

	// Rate limiting
	cfg.RateLimitConfig = ratelimit.Config{
		RPS:             parseFloat64OrDefault("RATE_LIMIT_RPS", ratelimit.DefaultConfig.RPS),
		Burst:           parseIntOrDefault("RATE_LIMIT_BURST", ratelimit.DefaultConfig.Burst),
		WriteCost:       parseIntOrDefault("RATE_LIMIT_WRITE_COST", ratelimit.DefaultConfig.WriteCost),
		CleanupInterval: parseDurationOrDefault("RATE_LIMIT_CLEANUP_INTERVAL", ratelimit.DefaultConfig.CleanupInterval),
	}

	// S3
	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.S3Prefix = strings.TrimSpace(os.Getenv("S3_PREFIX"))
	cfg.S3PollInterval = parseDurationOrDefault("S3_POLL_INTERVAL", storage.DefaultS3PollInterval)

	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Errors = append(problems, verr.Errors...)
			return nil, verr
		}
		return nil, err
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Errors: problems}
	}
	return cfg, nil
}

// Validate checks that all required configuration is present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.ListenAddr == "" {
		errs = append(errs, "LISTEN_ADDR must not be empty")
	}

	if !c.StorageBackend.Valid() {
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND %q is not one of %s", c.StorageBackend, kindList()))
	}
	if c.RecordName == "" || strings.ContainsAny(c.RecordName, `/\`) {
		errs = append(errs, "RECORD_NAME must be non-empty and must not contain path separators")
	}

	switch c.StorageBackend {
	case storage.KindFile, storage.KindSQLite:
		if c.DataDir == "" {
			errs = append(errs, "DATA_DIR is required for the file and sqlite backends")
		}
	case storage.KindS3:
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required for the s3 backend")
		}
		if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
			errs = append(errs, "AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together")
		}
	}

	if c.SQLiteKey != "" {
		if _, err := crypto.ParseMasterKey(c.SQLiteKey); err != nil {
			errs = append(errs, "SQLITE_KEY must be 64 hex characters (32 bytes)")
		}
	}
	if c.MasterKey != "" {
		if _, err := crypto.ParseMasterKey(c.MasterKey); err != nil {
			errs = append(errs, "MASTER_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if c.PersistTimeout <= 0 {
		errs = append(errs, "PERSIST_TIMEOUT must be positive")
	}
	if c.StorageBackend == storage.KindS3 && c.S3PollInterval <= 0 {
		errs = append(errs, "S3_POLL_INTERVAL must be positive")
	}
	if c.RateLimitConfig.RPS <= 0 {
		errs = append(errs, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitConfig.Burst <= 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be positive")
	}
	if wc := c.RateLimitConfig.WriteCost; wc <= 0 || wc > c.RateLimitConfig.Burst {
		errs = append(errs, "RATE_LIMIT_WRITE_COST must be between 1 and RATE_LIMIT_BURST")
	}
	if c.RateLimitConfig.CleanupInterval <= 0 {
		errs = append(errs, "RATE_LIMIT_CLEANUP_INTERVAL must be positive")
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Encrypted reports whether records are encrypted at rest with MASTER_KEY.
func (c *Config) Encrypted() bool {
	return c.MasterKey != ""
}

// StorageOptions converts the configuration into storage.Open options.
func (c *Config) StorageOptions() (storage.Options, error) {
	opts := storage.Options{
		Kind:       c.StorageBackend,
		Dir:        c.DataDir,
		RecordName: c.RecordName,
		S3: s3client.Config{
			Endpoint:        c.AWSEndpointS3,
			Region:          c.AWSRegion,
			AccessKeyID:     c.AWSAccessKeyID,
			SecretAccessKey: c.AWSSecretAccessKey,
			BucketName:      c.AWSBucketName,
			Prefix:          c.S3Prefix,
			UsePathStyle:    c.AWSEndpointS3 != "",
		},
	}
	opts.S3PollInterval = c.S3PollInterval
	if c.SQLiteKey != "" {
		key, err := crypto.ParseMasterKey(c.SQLiteKey)
		if err != nil {
			return storage.Options{}, fmt.Errorf("SQLITE_KEY: %w", err)
		}
		opts.SQLiteKey = key
	}
	if c.MasterKey != "" {
		key, err := crypto.ParseMasterKey(c.MasterKey)
		if err != nil {
			return storage.Options{}, fmt.Errorf("MASTER_KEY: %w", err)
		}
		opts.MasterKey = key
	}
	return opts, nil
}

// PrintStartupSummary prints a human-readable summary of the configuration to w.
func (c *Config) PrintStartupSummary(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "pocketnotes server starting...")

	switch c.StorageBackend {
	case storage.KindMemory:
		fmt.Fprintln(w, "  Storage: In-memory (not persisted)")
	case storage.KindFile:
		fmt.Fprintf(w, "  Storage: File (dir: %s, watch: %t)\n", c.DataDir, c.WatchStorage)
	case storage.KindSQLite:
		fmt.Fprintf(w, "  Storage: SQLCipher (dir: %s, key: %s)\n", c.DataDir, logutil.RedactSecret(c.SQLiteKey))
	case storage.KindS3:
		fmt.Fprintf(w, "  Storage: S3 (bucket: %s, prefix: %q, endpoint: %s, secret: %s, watch: %t every %s)\n",
			c.AWSBucketName, c.S3Prefix, c.AWSEndpointS3, logutil.RedactSecret(c.AWSSecretAccessKey), c.WatchStorage, c.S3PollInterval)
	}
	fmt.Fprintf(w, "  Record:  %s\n", c.RecordName)
	if c.Encrypted() {
		fmt.Fprintf(w, "  Master:  %s (encryption at rest)\n", logutil.RedactSecret(c.MasterKey))
	} else {
		fmt.Fprintln(w, "  Master:  (unset, records stored in plaintext)")
	}
	fmt.Fprintf(w, "  Limits:  %.4g req/s, burst %d\n", c.RateLimitConfig.RPS, c.RateLimitConfig.Burst)
	fmt.Fprintf(w, "  Listen:  %s\n", c.ListenAddr)
	fmt.Fprintln(w, "")
}

func kindList() string {
	names := make([]string, len(storage.Kinds))
	for i, k := range storage.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads configuration and panics if validation fails.
// Use this in main() when you want the application to fail fast on bad config.
func MustLoadConfig(flags Flags) *Config {
	cfg, err := LoadConfig(flags)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
