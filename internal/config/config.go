package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderCredentials holds the OAuth2 client credentials for one provider.
// Both fields must be set for the provider to be available.
type ProviderCredentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Config holds all process configuration. It is built once at startup and
// passed explicitly into the registry, vault, and services; nothing reads
// the environment after Load returns.
type Config struct {
	DatabaseURL       string `yaml:"database_url"`
	TemporalAddress   string `yaml:"temporal_address"`
	HTTPListenAddr    string `yaml:"http_listen_addr"`
	MetricsListenAddr string `yaml:"metrics_listen_addr"`
	LogLevel          string `yaml:"log_level"`
	ServiceName       string `yaml:"service_name"`

	// AppBaseURL is the externally reachable base URL of this service,
	// used to build OAuth redirect URIs.
	AppBaseURL string `yaml:"app_base_url"`
	// UIRedirectURL is where the OAuth callback sends the user's browser
	// after the flow completes, with a result query parameter appended.
	UIRedirectURL string `yaml:"ui_redirect_url"`

	// MasterKeySecret is the base64-encoded 32-byte master secret from
	// which the vault and state-codec keys are derived. Absence is a fatal
	// startup condition for any service that encrypts or decrypts.
	MasterKeySecret string `yaml:"master_key_secret"`
	// VaultKeyVersion selects the derivation used for new ciphertexts.
	// Older versions remain decryptable.
	VaultKeyVersion int `yaml:"vault_key_version"`

	GitHub ProviderCredentials `yaml:"github"`
	Vercel ProviderCredentials `yaml:"vercel"`

	// Audit archival.
	AuditRetentionDays int    `yaml:"audit_retention_days"`
	S3Endpoint         string `yaml:"s3_endpoint"`
	S3Bucket           string `yaml:"s3_bucket"`
	S3AccessKey        string `yaml:"s3_access_key"`
	S3SecretKey        string `yaml:"s3_secret_key"`

	TemporalTLSCert       string `yaml:"temporal_tls_cert"`
	TemporalTLSKey        string `yaml:"temporal_tls_key"`
	TemporalTLSCACert     string `yaml:"temporal_tls_ca_cert"`
	TemporalTLSServerName string `yaml:"temporal_tls_server_name"`
}

// Load builds the Config from environment variables, with an optional YAML
// overlay file (CONFIG_FILE) applied on top for values the environment does
// not set.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		TemporalAddress:       getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:        getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsListenAddr:     getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		ServiceName:           getEnv("SERVICE_NAME", ""),
		AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:8090"),
		UIRedirectURL:         getEnv("UI_REDIRECT_URL", "/settings/integrations"),
		MasterKeySecret:       getEnv("MASTER_KEY_SECRET", ""),
		VaultKeyVersion:       getEnvInt("VAULT_KEY_VERSION", 1),
		AuditRetentionDays:    getEnvInt("AUDIT_RETENTION_DAYS", 90),
		S3Endpoint:            getEnv("S3_ENDPOINT", ""),
		S3Bucket:              getEnv("S3_BUCKET", ""),
		S3AccessKey:           getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:           getEnv("S3_SECRET_KEY", ""),
		TemporalTLSCert:       getEnv("TEMPORAL_TLS_CERT", ""),
		TemporalTLSKey:        getEnv("TEMPORAL_TLS_KEY", ""),
		TemporalTLSCACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
		TemporalTLSServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		GitHub: ProviderCredentials{
			ClientID:     getEnv("GITHUB_CLIENT_ID", ""),
			ClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		},
		Vercel: ProviderCredentials{
			ClientID:     getEnv("VERCEL_CLIENT_ID", ""),
			ClientSecret: getEnv("VERCEL_CLIENT_SECRET", ""),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// applyFile overlays values from a YAML file onto cfg. Environment values
// take precedence: only fields the environment left empty are overlaid.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	overlay := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
		}
	}
	overlay(&c.DatabaseURL, file.DatabaseURL)
	overlay(&c.MasterKeySecret, file.MasterKeySecret)
	overlay(&c.ServiceName, file.ServiceName)
	overlay(&c.S3Endpoint, file.S3Endpoint)
	overlay(&c.S3Bucket, file.S3Bucket)
	overlay(&c.S3AccessKey, file.S3AccessKey)
	overlay(&c.S3SecretKey, file.S3SecretKey)
	overlay(&c.GitHub.ClientID, file.GitHub.ClientID)
	overlay(&c.GitHub.ClientSecret, file.GitHub.ClientSecret)
	overlay(&c.Vercel.ClientID, file.Vercel.ClientID)
	overlay(&c.Vercel.ClientSecret, file.Vercel.ClientSecret)

	return nil
}

// Validate checks that the fields required by the given service are present.
// A missing master key is a configuration error, never silently degraded.
func (c *Config) Validate(service string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s: DATABASE_URL is required", service)
	}
	if c.MasterKeySecret == "" {
		return fmt.Errorf("%s: MASTER_KEY_SECRET is required", service)
	}
	if c.VaultKeyVersion < 1 {
		return fmt.Errorf("%s: VAULT_KEY_VERSION must be >= 1", service)
	}
	if service == "worker" && c.TemporalAddress == "" {
		return fmt.Errorf("worker: TEMPORAL_ADDRESS is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
