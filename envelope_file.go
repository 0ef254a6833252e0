package envx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hengadev/envx/internal/randutil"
)

// SealFile reads srcFile in full, envelope-encrypts it, and writes the
// sealed envelope to dstFile. A failed read or write is a non-retryable
// error distinct from the codec's own errors.
func (m *Manager) SealFile(ctx context.Context, srcFile string, dstFile string) error {
	m.logger.Info("envelope-encrypting file", "src", srcFile, "dst", dstFile)

	d, err := os.ReadFile(srcFile)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", ErrSealFailed, srcFile, err)
	}
	sealed, err := m.Seal(ctx, d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dstFile, sealed, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrSealFailed, dstFile, err)
	}
	return nil
}

// UnsealFile reads the sealed envelope in srcFile, decrypts it, and writes
// the plaintext to dstFile.
func (m *Manager) UnsealFile(ctx context.Context, srcFile string, dstFile string) error {
	m.logger.Info("envelope-decrypting file", "src", srcFile, "dst", dstFile)

	d, err := os.ReadFile(srcFile)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", ErrUnsealFailed, srcFile, err)
	}
	plaintext, err := m.Unseal(ctx, d)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dstFile, plaintext, 0o600); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrUnsealFailed, dstFile, err)
	}
	return nil
}

// CompressSeal compresses srcFile with the configured compressor and seals
// the compressed form into dstFile. The intermediate file is removed on all
// exit paths.
func (m *Manager) CompressSeal(ctx context.Context, srcFile string, dstFile string) error {
	compressedPath := randutil.TmpPath(10)
	defer m.removeIntermediate(compressedPath)

	m.logger.Info("compress-seal: compressing file", "src", srcFile)
	if err := m.compressor.Pack(srcFile, compressedPath); err != nil {
		return fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}

	m.logger.Info("compress-seal: sealing compressed file", "path", compressedPath)
	return m.SealFile(ctx, compressedPath, dstFile)
}

// UnsealDecompress reverses CompressSeal: it unseals srcFile into an
// intermediate file and decompresses that into dstFile.
func (m *Manager) UnsealDecompress(ctx context.Context, srcFile string, dstFile string) error {
	unsealedPath := randutil.TmpPath(10)
	defer m.removeIntermediate(unsealedPath)

	m.logger.Info("unseal-decompress: unsealing file", "src", srcFile)
	if err := m.UnsealFile(ctx, srcFile, unsealedPath); err != nil {
		return err
	}

	m.logger.Info("unseal-decompress: decompressing file", "path", unsealedPath)
	if err := m.compressor.Unpack(unsealedPath, dstFile); err != nil {
		return fmt.Errorf("%w: %w", ErrCompressionFailed, err)
	}
	return nil
}

// CompressSealPut compresses and seals srcFile, then uploads the result to
// bucket/key through the given object storage. A failed upload is not
// retried here and earlier stages are not rolled back; the intermediate
// local file is always removed.
func (m *Manager) CompressSealPut(ctx context.Context, storage ObjectStorage, srcFile string, bucket string, key string) error {
	if storage == nil {
		return fmt.Errorf("%w: object storage cannot be nil", ErrInvalidConfiguration)
	}

	sealedPath := randutil.TmpPath(10)
	defer m.removeIntermediate(sealedPath)

	m.logger.Info("compress-seal-put: compress and seal", "src", srcFile)
	if err := m.CompressSeal(ctx, srcFile, sealedPath); err != nil {
		return err
	}

	m.logger.Info("compress-seal-put: uploading object", "bucket", bucket, "key", key)
	if err := storage.PutFile(ctx, sealedPath, bucket, key); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailed, err)
	}
	return nil
}

// GetUnsealDecompress reverses CompressSealPut: it downloads bucket/key,
// unseals it, and decompresses the result into dstFile.
func (m *Manager) GetUnsealDecompress(ctx context.Context, storage ObjectStorage, bucket string, key string, dstFile string) error {
	if storage == nil {
		return fmt.Errorf("%w: object storage cannot be nil", ErrInvalidConfiguration)
	}

	downloadedPath := randutil.TmpPath(10)
	defer m.removeIntermediate(downloadedPath)

	m.logger.Info("get-unseal-decompress: downloading object", "bucket", bucket, "key", key)
	if err := storage.GetFile(ctx, bucket, key, downloadedPath); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageFailed, err)
	}

	m.logger.Info("get-unseal-decompress: unseal and decompress", "path", downloadedPath)
	return m.UnsealDecompress(ctx, downloadedPath, dstFile)
}

// removeIntermediate deletes a pipeline hand-off file. A failed removal is
// logged, not returned: it must not mask the outcome of an already-completed
// stage.
func (m *Manager) removeIntermediate(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("failed to remove intermediate file", "path", path, "error", err)
	}
}
