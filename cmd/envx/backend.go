package main

import (
	"context"
	"os"

	"github.com/hengadev/envx"
	"github.com/hengadev/envx/compress"
	"github.com/hengadev/envx/internal/ledger"
	"github.com/hengadev/envx/providers/awskms"
	"github.com/hengadev/envx/providers/local"
	s3store "github.com/hengadev/envx/providers/s3"
	"github.com/hengadev/envx/providers/vault"
)

// EnvPassphrase supplies the passphrase for the local backend.
const EnvPassphrase = "ENVX_PASSPHRASE"

// setup loads config and builds the Manager and ledger shared by the
// subcommands.
func setup(ctx context.Context, configPath string) (envx.Config, *envx.Manager, *ledger.Ledger) {
	cfg, err := envx.LoadConfig(configPath)
	if err != nil {
		fatalf("%v", err)
	}

	kms := newKMS(ctx, cfg)

	codec, err := compress.New(compress.Algorithm(cfg.Compression), compress.DefaultZstdLevel)
	if err != nil {
		fatalf("%v", err)
	}

	manager, err := envx.New(kms, cfg.KeyID, cfg.AADTag, envx.WithCompressor(codec))
	if err != nil {
		fatalf("%v", err)
	}

	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		fatalf("%v", err)
	}
	return cfg, manager, led
}

func newKMS(ctx context.Context, cfg envx.Config) envx.KeyManagementService {
	switch cfg.Backend {
	case envx.BackendAWSKMS:
		svc, err := awskms.New(ctx, awskms.Config{Region: cfg.Region})
		if err != nil {
			fatalf("%v", err)
		}
		return svc

	case envx.BackendVault:
		svc, err := vault.New(vault.Config{})
		if err != nil {
			fatalf("%v", err)
		}
		return svc

	case envx.BackendLocal:
		passphrase := os.Getenv(EnvPassphrase)
		if passphrase == "" {
			fatalf("%s is required for the local backend", EnvPassphrase)
		}
		svc, err := local.New([]byte(passphrase), local.Params{})
		if err != nil {
			fatalf("%v", err)
		}
		return svc
	}

	// unreachable: Config.Validate rejects unknown backends
	fatalf("unknown backend %q", cfg.Backend)
	return nil
}

func newStorage(ctx context.Context, cfg envx.Config) envx.ObjectStorage {
	storage, err := s3store.New(ctx, s3store.Config{Region: cfg.Region})
	if err != nil {
		fatalf("%v", err)
	}
	return storage
}
