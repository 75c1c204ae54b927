// Package config loads VaultStream's runtime configuration from the
// environment, with defaults and validation, the way the corpus's
// viper-backed config loaders do it.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the full runtime configuration for the core.
type Config struct {
	Port string `mapstructure:"PORT"`

	Production bool `mapstructure:"PRODUCTION"`

	DatabaseDSN string `mapstructure:"DATABASE_DSN"`

	SignerSecret    string `mapstructure:"SIGNER_SECRET"`
	SignedURLTTLSec int    `mapstructure:"SIGNED_URL_TTL_SEC"`
	JWTSecret       string `mapstructure:"JWT_SECRET"`

	PassphraseTimeCost     uint32 `mapstructure:"PASSPHRASE_TIME_COST"`
	PassphraseMemoryCostKB uint32 `mapstructure:"PASSPHRASE_MEMORY_COST_KB"`
	PassphraseThreads      uint8  `mapstructure:"PASSPHRASE_THREADS"`

	AllowedExtensions []string `mapstructure:"-"`
	AllowedExtCSV     string   `mapstructure:"ALLOWED_SOURCE_EXTENSIONS"`
	MaxUploadMiB      int64    `mapstructure:"MAX_UPLOAD_MIB"`

	HLSSegmentSeconds int `mapstructure:"HLS_SEGMENT_SECONDS"`
	NominalFPS        int `mapstructure:"NOMINAL_FPS"`

	StorageBackend string `mapstructure:"STORAGE_BACKEND"` // "local" | "s3"
	LocalRoot      string `mapstructure:"LOCAL_STORAGE_ROOT"`
	ScratchDir     string `mapstructure:"SCRATCH_DIR"`
	S3Endpoint     string `mapstructure:"S3_ENDPOINT"`
	S3Region       string `mapstructure:"S3_REGION"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	S3AccessKey    string `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey    string `mapstructure:"S3_SECRET_KEY"`
	S3UsePathStyle bool   `mapstructure:"S3_USE_PATH_STYLE"`

	RedisHost           string `mapstructure:"REDIS_HOST"`
	RedisPort           string `mapstructure:"REDIS_PORT"`
	RedisPassword       string `mapstructure:"REDIS_PASSWORD"`
	PlaylistCacheTTLSec int    `mapstructure:"PLAYLIST_CACHE_TTL_SEC"`

	CORSOrigins        []string `mapstructure:"-"`
	CORSOriginsCSV     string   `mapstructure:"CORS_ORIGINS"`
	RateLimitWindowSec int      `mapstructure:"RATE_LIMIT_WINDOW_SEC"`
	RateLimitCeiling   int      `mapstructure:"RATE_LIMIT_CEILING"`

	PipelineWorkers     int `mapstructure:"PIPELINE_WORKERS"`
	RenditionTimeoutSec int `mapstructure:"RENDITION_TIMEOUT_SEC"`
}

// getSecret reads a secret from a mounted file, falling back to an
// environment variable. Mirrors the StreamHive services' convention of
// mounting secrets-store-csi files under /mnt/secrets-store.
func getSecret(filePath, envVar string) string {
	if data, err := os.ReadFile(filePath); err == nil {
		return strings.TrimSpace(string(data))
	}
	return os.Getenv(envVar)
}

// Load reads configuration from the environment (and an optional .env
// file), applies defaults, and validates production constraints.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	// Keys without a default must be bound explicitly, or Unmarshal never
	// sees their environment values.
	for _, key := range []string{"DATABASE_DSN", "SIGNER_SECRET", "JWT_SECRET", "S3_ENDPOINT", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY", "REDIS_PASSWORD"} {
		_ = viper.BindEnv(key)
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("PRODUCTION", false)
	viper.SetDefault("SIGNED_URL_TTL_SEC", 3600)
	viper.SetDefault("PASSPHRASE_TIME_COST", 2)
	viper.SetDefault("PASSPHRASE_MEMORY_COST_KB", 19*1024)
	viper.SetDefault("PASSPHRASE_THREADS", 1)
	viper.SetDefault("ALLOWED_SOURCE_EXTENSIONS", "mp4,mov,avi,mkv,webm")
	viper.SetDefault("MAX_UPLOAD_MIB", 2048)
	viper.SetDefault("HLS_SEGMENT_SECONDS", 4)
	viper.SetDefault("NOMINAL_FPS", 24)
	viper.SetDefault("STORAGE_BACKEND", "local")
	viper.SetDefault("LOCAL_STORAGE_ROOT", "./data/videos")
	viper.SetDefault("SCRATCH_DIR", "./data/scratch")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_USE_PATH_STYLE", true)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("PLAYLIST_CACHE_TTL_SEC", 2)
	viper.SetDefault("CORS_ORIGINS", "*")
	viper.SetDefault("RATE_LIMIT_WINDOW_SEC", 60)
	viper.SetDefault("RATE_LIMIT_CEILING", 120)
	viper.SetDefault("PIPELINE_WORKERS", 4)
	viper.SetDefault("RENDITION_TIMEOUT_SEC", 3600)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if s := getSecret("/mnt/secrets-store/vaultstream-signer-secret", "SIGNER_SECRET"); s != "" {
		cfg.SignerSecret = s
	}
	if s := getSecret("/mnt/secrets-store/vaultstream-s3-access-key", "S3_ACCESS_KEY"); s != "" {
		cfg.S3AccessKey = s
	}
	if s := getSecret("/mnt/secrets-store/vaultstream-s3-secret-key", "S3_SECRET_KEY"); s != "" {
		cfg.S3SecretKey = s
	}

	cfg.AllowedExtensions = splitCSV(cfg.AllowedExtCSV)
	cfg.CORSOrigins = splitCSV(cfg.CORSOriginsCSV)

	if cfg.Production && len(cfg.SignerSecret) < 32 {
		return nil, fmt.Errorf("SIGNER_SECRET must be at least 32 bytes in production mode")
	}
	if cfg.SignerSecret == "" {
		cfg.SignerSecret = "dev-only-insecure-signer-secret-do-not-ship-this"
	}

	return &cfg, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AllowsExtension reports whether ext (without the leading dot, any case)
// is in the configured allow-list.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range c.AllowedExtensions {
		if a == ext {
			return true
		}
	}
	return false
}
