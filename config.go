package envx

import (
	"fmt"

	"github.com/hengadev/errsx"
)

// Backend names accepted by Config.Backend.
const (
	BackendAWSKMS = "awskms"
	BackendVault  = "vault"
	BackendLocal  = "local"
)

// Config holds the settings the envx CLI (and other embedders) need to
// construct a Manager and its collaborators. The library API itself takes
// explicit values; this struct only carries data and can be loaded from any
// source.
type Config struct {
	// Backend selects the key-management backend: awskms, vault, or local.
	Backend string `yaml:"backend"`

	// KeyID is the master key identifier: a KMS key ID/ARN/alias, a Vault
	// Transit key name, or any label for the local backend.
	KeyID string `yaml:"key_id"`

	// AADTag is the associated-data tag bound into every authentication
	// check. Envelopes sealed under one tag will not unseal under another.
	AADTag string `yaml:"aad_tag"`

	// Region is the AWS region for the awskms backend and the S3 object
	// storage. Optional; the AWS SDK's own resolution applies when empty.
	Region string `yaml:"region"`

	// Bucket is the S3 bucket used by the push/pull pipelines. Required
	// only for those commands.
	Bucket string `yaml:"bucket"`

	// Compression selects the pipeline codec: zstd (default) or gzip.
	Compression string `yaml:"compression"`

	// LedgerPath is the sqlite file recording pipeline runs.
	// Default: .envx/ledger.db
	LedgerPath string `yaml:"ledger_path"`
}

// Default config values.
const (
	DefaultCompression = "zstd"
	DefaultLedgerPath  = ".envx/ledger.db"
)

// Validate checks the configuration and applies defaults for the optional
// fields. All problems are reported at once.
func (c *Config) Validate() error {
	var errs errsx.Map

	switch c.Backend {
	case BackendAWSKMS, BackendVault, BackendLocal:
	case "":
		errs.Set("backend", fmt.Errorf("%w: backend is required", ErrInvalidConfiguration))
	default:
		errs.Set("backend", fmt.Errorf("%w: unknown backend %q", ErrInvalidConfiguration, c.Backend))
	}

	if c.KeyID == "" {
		errs.Set("key_id", fmt.Errorf("%w: key_id is required", ErrInvalidConfiguration))
	}

	if c.Compression == "" {
		c.Compression = DefaultCompression
	}
	switch c.Compression {
	case "zstd", "gzip":
	default:
		errs.Set("compression", fmt.Errorf("%w: unknown compression %q", ErrInvalidConfiguration, c.Compression))
	}

	if c.LedgerPath == "" {
		c.LedgerPath = DefaultLedgerPath
	}

	return errs.AsError()
}
