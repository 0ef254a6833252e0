package envx

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by LoadConfig. Each overrides the
// corresponding YAML field.
const (
	EnvBackend     = "ENVX_BACKEND"
	EnvKeyID       = "ENVX_KEY_ID"
	EnvAADTag      = "ENVX_AAD_TAG"
	EnvRegion      = "ENVX_REGION"
	EnvBucket      = "ENVX_BUCKET"
	EnvCompression = "ENVX_COMPRESSION"
	EnvLedgerPath  = "ENVX_LEDGER_PATH"
)

// LoadConfig reads configuration in three layers: a .env file in the working
// directory (if present), the YAML file at path (if path is non-empty), and
// finally ENVX_* environment variables, which win over both. The result is
// validated before return.
func LoadConfig(path string) (Config, error) {
	// missing .env is fine; it only exists in development setups
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: failed to read config file %s: %w", ErrInvalidConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: failed to parse config file %s: %w", ErrInvalidConfiguration, path, err)
		}
	}

	applyEnvOverride(&cfg.Backend, EnvBackend)
	applyEnvOverride(&cfg.KeyID, EnvKeyID)
	applyEnvOverride(&cfg.AADTag, EnvAADTag)
	applyEnvOverride(&cfg.Region, EnvRegion)
	applyEnvOverride(&cfg.Bucket, EnvBucket)
	applyEnvOverride(&cfg.Compression, EnvCompression)
	applyEnvOverride(&cfg.LedgerPath, EnvLedgerPath)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
