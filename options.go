package envx

import (
	"fmt"
	"io"
	"log/slog"
)

// Option configures a Manager at construction time.
type Option func(*Manager) error

// WithRandom sets the random source used for nonce generation. The default
// is crypto/rand.Reader. The source must be cryptographically secure; inject
// a deterministic reader only in tests.
func WithRandom(r io.Reader) Option {
	return func(m *Manager) error {
		if r == nil {
			return fmt.Errorf("%w: random source cannot be nil", ErrInvalidConfiguration)
		}
		m.random = r
		return nil
	}
}

// WithLogger sets the structured logger used by the Manager. The default is
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			return fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfiguration)
		}
		m.logger = logger
		return nil
	}
}

// WithCompressor sets the compressor used by the pipeline compositions
// (CompressSeal, UnsealDecompress, and the object-storage variants). The
// default is zstd.
func WithCompressor(c Compressor) Option {
	return func(m *Manager) error {
		if c == nil {
			return fmt.Errorf("%w: compressor cannot be nil", ErrInvalidConfiguration)
		}
		m.compressor = c
		return nil
	}
}
