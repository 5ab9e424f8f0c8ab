// Package config holds operator-level configuration for an assistant
// deployment: storage locations, signing keys, provider credentials and
// request limits.
//
// Values come from env vars (ASSISTANT_*), the config file
// (assistant.config.yaml) and defaults, merged by viper. Crypto keys have no
// baked-in defaults; when unset a deterministic per-machine fallback is
// derived and a warning is logged.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/hrm8/assistant/internal/cryptoutil"
)

// EnvPrefix is prepended to every viper key when read from the environment
// (e.g. "jwt_secret" → ASSISTANT_JWT_SECRET).
const EnvPrefix = "ASSISTANT"

// Viper keys.
const (
	KeyDataDir            = "data_dir"
	KeySigningKey         = "signing_key"
	KeyJWTSecret          = "jwt_secret"
	KeyJWTIssuer          = "jwt_issuer"
	KeyOpenAIAPIKey       = "openai_api_key"
	KeyOpenAIBaseURL      = "openai_base_url"
	KeyAnthropicAPIKey    = "anthropic_api_key"
	KeyModel              = "model"
	KeyDatabaseURL        = "database_url"
	KeyPolicyFile         = "policy_file"
	KeyAuditRetentionDays = "audit_retention_days"
	KeyRateLimitRPS       = "rate_limit_rps"
	KeyCORSOrigins        = "cors_origins"
)

// Defaults that do not involve crypto material.
const (
	DefaultJWTIssuer          = "hrm8"
	DefaultModel              = "gpt-4o"
	DefaultAuditRetentionDays = 365
	DefaultRateLimitRPS       = 5.0
)

// Config holds resolved configuration for an assistant process.
type Config struct {
	DataDir            string   // Base directory for local state (~/.hrm8-assistant)
	SigningKey         string   // HMAC-SHA256 key for audit entries (≥32 bytes)
	JWTSecret          string   // HS256 secret for actor tokens (≥32 bytes)
	JWTIssuer          string   // Expected "iss" claim
	OpenAIAPIKey       string   // Also used for OpenAI-compatible gateways
	OpenAIBaseURL      string   // Empty = api.openai.com
	AnthropicAPIKey    string   // Used when the model is a claude-* model
	Model              string   // Chat model identifier
	DatabaseURL        string   // Postgres DSN; empty = sqlite in DataDir
	PolicyFile         string   // Operator tool overlay; empty = no overlay
	AuditRetentionDays int      // Audit entries older than this are purged
	RateLimitRPS       float64  // Per-actor request rate; 0 disables limiting
	CORSOrigins        []string // Allowed browser origins

	usingDefaultSigningKey bool
	usingDefaultJWTSecret  bool
}

// UsingDefaultKeys returns true if either crypto key fell back to a derived
// default. Commands should warn when this is the case.
func (c *Config) UsingDefaultKeys() bool {
	return c.usingDefaultSigningKey || c.usingDefaultJWTSecret
}

// UsingDefaultSigningKey reports whether the audit signing key was derived.
func (c *Config) UsingDefaultSigningKey() bool { return c.usingDefaultSigningKey }

// UsingDefaultJWTSecret reports whether the token secret was derived.
func (c *Config) UsingDefaultJWTSecret() bool { return c.usingDefaultJWTSecret }

// BusinessDBPath returns the path of the sqlite business store.
func (c *Config) BusinessDBPath() string {
	return filepath.Join(c.DataDir, "business.db")
}

// AuditDBPath returns the path of the sqlite audit log.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKeys logs a warning when crypto keys are not explicitly set.
func (c *Config) WarnIfDefaultKeys() {
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default ASSISTANT_SIGNING_KEY; set it via env var or config file for production")
	}
	if c.usingDefaultJWTSecret {
		log.Warn().Msg("Using generated default ASSISTANT_JWT_SECRET; set it via env var or config file for production")
	}
}

// SetDefaults registers env binding and defaults on viper. Called from init
// and by tests after viper.Reset.
func SetDefaults() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault(KeyJWTIssuer, DefaultJWTIssuer)
	viper.SetDefault(KeyModel, DefaultModel)
	viper.SetDefault(KeyAuditRetentionDays, DefaultAuditRetentionDays)
	viper.SetDefault(KeyRateLimitRPS, DefaultRateLimitRPS)
	viper.SetDefault(KeyCORSOrigins, []string{"*"})
}

func init() {
	SetDefaults()
}

// Load reads configuration from viper and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:            resolveDataDir(),
		SigningKey:         viper.GetString(KeySigningKey),
		JWTSecret:          viper.GetString(KeyJWTSecret),
		JWTIssuer:          viper.GetString(KeyJWTIssuer),
		OpenAIAPIKey:       firstNonEmpty(viper.GetString(KeyOpenAIAPIKey), os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:      viper.GetString(KeyOpenAIBaseURL),
		AnthropicAPIKey:    firstNonEmpty(viper.GetString(KeyAnthropicAPIKey), os.Getenv("ANTHROPIC_API_KEY")),
		Model:              viper.GetString(KeyModel),
		DatabaseURL:        viper.GetString(KeyDatabaseURL),
		PolicyFile:         viper.GetString(KeyPolicyFile),
		AuditRetentionDays: viper.GetInt(KeyAuditRetentionDays),
		RateLimitRPS:       viper.GetFloat64(KeyRateLimitRPS),
		CORSOrigins:        splitOrigins(viper.GetStringSlice(KeyCORSOrigins)),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "audit-signing")
		cfg.usingDefaultSigningKey = true
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = deriveDefaultKey(cfg.DataDir, "actor-tokens")
		cfg.usingDefaultJWTSecret = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hrm8-assistant"
	}
	return filepath.Join(home, ".hrm8-assistant")
}

// deriveDefaultKey produces a deterministic 32-byte hex key from the data
// directory and a salt. Not cryptographically strong; it only lets a fresh
// install start without configuration.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("hrm8-assistant:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

// splitOrigins accepts both YAML lists and a comma-separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, v := range in {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Config) validate() error {
	if err := validateKey(KeySigningKey, c.SigningKey); err != nil {
		return err
	}
	if err := validateKey(KeyJWTSecret, c.JWTSecret); err != nil {
		return err
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("audit_retention_days must be positive")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must not be negative")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// validateKey accepts either ≥32 raw bytes or ≥64 hex characters.
func validateKey(name, key string) error {
	if _, err := cryptoutil.DecodeKey(key); err != nil {
		return fmt.Errorf("%s must be at least 32 bytes or 64+ hex characters (got %d); set %s_%s",
			name, len(key), EnvPrefix, strings.ToUpper(name))
	}
	return nil
}
