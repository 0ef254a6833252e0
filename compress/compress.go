// Package compress packs files to and from compressed form for the envelope
// pipelines. zstd is the default; gzip is kept for interoperability with
// older archives.
package compress

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Algorithm selects the compression codec.
type Algorithm string

const (
	Zstd Algorithm = "zstd"
	Gzip Algorithm = "gzip"
)

// DefaultZstdLevel matches zstd's own default compression level.
const DefaultZstdLevel = 3

// Codec implements file-to-file Pack/Unpack for one algorithm. It satisfies
// the envx.Compressor interface. A Codec is stateless and safe for
// concurrent use.
type Codec struct {
	algorithm Algorithm
	level     int
}

// New returns a Codec for the given algorithm and level. For zstd the level
// follows the zstd scale (1 fastest, 19+ slowest); for gzip the standard
// 1..9 scale.
func New(algorithm Algorithm, level int) (*Codec, error) {
	switch algorithm {
	case Zstd, Gzip:
	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", algorithm)
	}
	return &Codec{algorithm: algorithm, level: level}, nil
}

// NewZstd returns a zstd Codec at the default level.
func NewZstd() *Codec {
	return &Codec{algorithm: Zstd, level: DefaultZstdLevel}
}

// NewGzip returns a gzip Codec at the default level.
func NewGzip() *Codec {
	return &Codec{algorithm: Gzip, level: gzip.DefaultCompression}
}

// Algorithm returns the codec's algorithm name.
func (c *Codec) Algorithm() Algorithm { return c.algorithm }

// Pack compresses srcFile into dstFile, streaming so arbitrarily large
// files never have to fit in memory.
func (c *Codec) Pack(srcFile string, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcFile, err)
	}
	defer src.Close()

	dst, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dstFile, err)
	}
	defer dst.Close()

	switch c.algorithm {
	case Zstd:
		enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(c.level)))
		if err != nil {
			return fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		if _, err := io.Copy(enc, src); err != nil {
			enc.Close()
			return fmt.Errorf("failed to compress %s: %w", srcFile, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to flush zstd encoder: %w", err)
		}

	case Gzip:
		enc, err := gzip.NewWriterLevel(dst, c.level)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		if _, err := io.Copy(enc, src); err != nil {
			enc.Close()
			return fmt.Errorf("failed to compress %s: %w", srcFile, err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to flush gzip writer: %w", err)
		}
	}

	return dst.Sync()
}

// Unpack decompresses srcFile into dstFile.
func (c *Codec) Unpack(srcFile string, dstFile string) error {
	src, err := os.Open(srcFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", srcFile, err)
	}
	defer src.Close()

	dst, err := os.Create(dstFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dstFile, err)
	}
	defer dst.Close()

	switch c.algorithm {
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		if _, err := io.Copy(dst, dec.IOReadCloser()); err != nil {
			return fmt.Errorf("failed to decompress %s: %w", srcFile, err)
		}

	case Gzip:
		dec, err := gzip.NewReader(src)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer dec.Close()
		if _, err := io.Copy(dst, dec); err != nil {
			return fmt.Errorf("failed to decompress %s: %w", srcFile, err)
		}
	}

	return dst.Sync()
}
