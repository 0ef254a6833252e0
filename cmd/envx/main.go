// Command envx seals and unseals files with envelope encryption, and pushes
// and pulls compressed sealed archives to and from object storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hengadev/envx"
	"github.com/hengadev/envx/internal/ledger"
	"github.com/hengadev/envx/internal/randutil"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "seal":
		sealCommand(os.Args[2:])
	case "unseal":
		unsealCommand(os.Args[2:])
	case "push":
		pushCommand(os.Args[2:])
	case "pull":
		pullCommand(os.Args[2:])
	case "history":
		historyCommand(os.Args[2:])
	case "version":
		fmt.Println(envx.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  seal     Envelope-encrypt a file\n")
	fmt.Fprintf(os.Stderr, "  unseal   Decrypt a sealed file\n")
	fmt.Fprintf(os.Stderr, "  push     Compress, seal, and upload a file to object storage\n")
	fmt.Fprintf(os.Stderr, "  pull     Download, unseal, and decompress an object\n")
	fmt.Fprintf(os.Stderr, "  history  Show recent pipeline runs\n")
	fmt.Fprintf(os.Stderr, "  version  Show version information\n")
	fmt.Fprintf(os.Stderr, "\nRun '%s <command> -h' for help on a specific command.\n", os.Args[0])
}

func sealCommand(args []string) {
	fs := flag.NewFlagSet("seal", flag.ExitOnError)
	configPath := fs.String("config", "envx.yaml", "Path to configuration file")
	src := fs.String("src", "", "Source file to seal")
	dst := fs.String("dst", "", "Destination file (default: <src>.sealed)")
	fs.Parse(args)

	if *src == "" {
		fatalf("seal: -src is required")
	}
	if *dst == "" {
		*dst = *src + ".sealed"
	}

	ctx := context.Background()
	_, manager, led := setup(ctx, *configPath)
	defer led.Close()

	if err := manager.SealFile(ctx, *src, *dst); err != nil {
		fatalf("seal: %v", err)
	}
	record(ctx, led, "seal", *src, "", "", *dst)
	fmt.Printf("sealed %s to %s\n", *src, *dst)
}

func unsealCommand(args []string) {
	fs := flag.NewFlagSet("unseal", flag.ExitOnError)
	configPath := fs.String("config", "envx.yaml", "Path to configuration file")
	src := fs.String("src", "", "Sealed file to decrypt")
	dst := fs.String("dst", "", "Destination file")
	fs.Parse(args)

	if *src == "" || *dst == "" {
		fatalf("unseal: -src and -dst are required")
	}

	ctx := context.Background()
	_, manager, led := setup(ctx, *configPath)
	defer led.Close()

	if err := manager.UnsealFile(ctx, *src, *dst); err != nil {
		fatalf("unseal: %v", err)
	}
	record(ctx, led, "unseal", *src, "", "", *dst)
	fmt.Printf("unsealed %s to %s\n", *src, *dst)
}

func pushCommand(args []string) {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	configPath := fs.String("config", "envx.yaml", "Path to configuration file")
	src := fs.String("src", "", "Source file to push")
	key := fs.String("key", "", "Object key (default: random)")
	fs.Parse(args)

	if *src == "" {
		fatalf("push: -src is required")
	}
	if *key == "" {
		*key = randutil.String(16) + ".zstd.sealed"
	}

	ctx := context.Background()
	cfg, manager, led := setup(ctx, *configPath)
	defer led.Close()

	if cfg.Bucket == "" {
		fatalf("push: bucket is not configured")
	}
	storage := newStorage(ctx, cfg)
	if err := manager.CompressSealPut(ctx, storage, *src, cfg.Bucket, *key); err != nil {
		fatalf("push: %v", err)
	}
	record(ctx, led, "push", *src, cfg.Bucket, *key, *src)
	fmt.Printf("pushed %s to s3://%s/%s\n", *src, cfg.Bucket, *key)
}

func pullCommand(args []string) {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	configPath := fs.String("config", "envx.yaml", "Path to configuration file")
	key := fs.String("key", "", "Object key to pull")
	dst := fs.String("dst", "", "Destination file")
	fs.Parse(args)

	if *key == "" || *dst == "" {
		fatalf("pull: -key and -dst are required")
	}

	ctx := context.Background()
	cfg, manager, led := setup(ctx, *configPath)
	defer led.Close()

	if cfg.Bucket == "" {
		fatalf("pull: bucket is not configured")
	}
	storage := newStorage(ctx, cfg)
	if err := manager.GetUnsealDecompress(ctx, storage, cfg.Bucket, *key, *dst); err != nil {
		fatalf("pull: %v", err)
	}
	record(ctx, led, "pull", *dst, cfg.Bucket, *key, *dst)
	fmt.Printf("pulled s3://%s/%s to %s\n", cfg.Bucket, *key, *dst)
}

func historyCommand(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "envx.yaml", "Path to configuration file")
	n := fs.Int("n", 20, "Number of runs to show")
	fs.Parse(args)

	ctx := context.Background()
	cfg, err := envx.LoadConfig(*configPath)
	if err != nil {
		fatalf("history: %v", err)
	}
	led, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		fatalf("history: %v", err)
	}
	defer led.Close()

	records, err := led.Recent(ctx, *n)
	if err != nil {
		fatalf("history: %v", err)
	}
	for _, r := range records {
		loc := r.LocalPath
		if r.Bucket != "" {
			loc = fmt.Sprintf("%s <-> s3://%s/%s", r.LocalPath, r.Bucket, r.Key)
		}
		fmt.Printf("%s  %-6s  %s  (%d bytes)\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Op, loc, r.SizeBytes)
	}
}

// record appends a ledger entry; ledger failures are warnings, never fatal.
func record(ctx context.Context, led *ledger.Ledger, op, localPath, bucket, key, sizedFile string) {
	var size int64
	if fi, err := os.Stat(sizedFile); err == nil {
		size = fi.Size()
	}
	if err := led.Append(ctx, ledger.Record{
		Op:        op,
		LocalPath: localPath,
		Bucket:    bucket,
		Key:       key,
		SizeBytes: size,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
