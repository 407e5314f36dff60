package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matozai/scribe/internal/blob"
)

// EnvPrefix is the namespace prefix for all Scribe environment variables.
const EnvPrefix = "SCRIBE_"

// DefaultMaxUploadBytes caps multipart create requests (40 MB, matching
// the platform's upload limit).
const DefaultMaxUploadBytes = 40 << 20

// Config holds all application configuration. Secrets (JWT signing secret,
// object store credentials) are loaded exclusively from environment
// variables and never appear in the config file.
type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	DBPath          string `yaml:"db_path"`
	LogLevel        string `yaml:"log_level"`
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
	StorageBackend  string `yaml:"storage_backend"`
	UploadDir       string `yaml:"upload_dir"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	S3Region        string `yaml:"s3_region"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3PublicBaseURL string `yaml:"s3_public_base_url"`

	// Secrets — env vars only, never serialized to YAML.
	JWTSecret         string `yaml:"-"`
	S3AccessKeyID     string `yaml:"-"`
	S3SecretAccessKey string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:     ":3001",
		DBPath:         "data/scribe.db",
		LogLevel:       "info",
		MaxUploadBytes: DefaultMaxUploadBytes,
		StorageBackend: blob.BackendLocal,
		UploadDir:      "data/uploads",
		S3Bucket:       "scribe-audio",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// cannot be parsed or the configuration is unusable (for the remote
// backend, missing credentials fail here, at startup, not at first use).
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := warn(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, warnings, err
	}
	return cfg, warnings, nil
}

// Blob maps the storage settings onto the blob backend configuration.
func (c *Config) Blob() blob.Config {
	return blob.Config{
		Backend:         c.StorageBackend,
		LocalDir:        c.UploadDir,
		Endpoint:        c.S3Endpoint,
		Region:          c.S3Region,
		AccessKeyID:     c.S3AccessKeyID,
		SecretAccessKey: c.S3SecretAccessKey,
		Bucket:          c.S3Bucket,
		PublicBaseURL:   c.S3PublicBaseURL,
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv(EnvPrefix + "UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv(EnvPrefix + "S3_ENDPOINT"); v != "" {
		cfg.S3Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "S3_REGION"); v != "" {
		cfg.S3Region = v
	}
	if v := os.Getenv(EnvPrefix + "S3_BUCKET"); v != "" {
		cfg.S3Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "S3_PUBLIC_BASE_URL"); v != "" {
		cfg.S3PublicBaseURL = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.JWTSecret = os.Getenv(EnvPrefix + "JWT_SECRET")
	cfg.S3AccessKeyID = os.Getenv(EnvPrefix + "S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv(EnvPrefix + "S3_SECRET_ACCESS_KEY")
}

func warn(cfg *Config) []string {
	var warnings []string

	if len(cfg.JWTSecret) > 0 && len(cfg.JWTSecret) < 32 {
		warnings = append(warnings, "JWT secret is shorter than 32 characters.")
	}
	if cfg.StorageBackend == blob.BackendRemote && cfg.S3PublicBaseURL == "" {
		warnings = append(warnings, "s3_public_base_url not set — public URLs will be derived from the endpoint.")
	}

	return warnings
}

func validate(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required — set %sJWT_SECRET", EnvPrefix)
	}

	switch cfg.StorageBackend {
	case blob.BackendLocal:
	case blob.BackendRemote:
		if cfg.S3Endpoint == "" || cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" || cfg.S3Bucket == "" {
			return fmt.Errorf(
				"remote storage requires s3_endpoint, s3_bucket, %sS3_ACCESS_KEY_ID and %sS3_SECRET_ACCESS_KEY",
				EnvPrefix, EnvPrefix,
			)
		}
	default:
		return fmt.Errorf("unknown storage_backend %q (expected %q or %q)",
			cfg.StorageBackend, blob.BackendLocal, blob.BackendRemote)
	}

	return nil
}
