package envx

import (
	"errors"
	"fmt"
)

var (
	// High-level operation errors
	ErrSealFailed   = errors.New("seal failed")
	ErrUnsealFailed = errors.New("unseal failed")

	// Envelope validation errors
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrInvalidDEK      = errors.New("invalid data encryption key")

	// Collaborator errors
	ErrKeyServiceUnavailable = errors.New("key service unavailable")
	ErrCompressionFailed     = errors.New("compression failed")
	ErrStorageFailed         = errors.New("object storage failed")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// KeyServiceError is the failure of a key-management backend call
// (data-key generation or decryption). Retryable reports whether the
// underlying cause was transient (timeout, dispatch I/O failure, internal
// service fault) as classified by the backend; malformed requests, missing
// keys, and access denials are not retryable.
//
// KeyServiceError matches ErrKeyServiceUnavailable under errors.Is, so
// callers can use either the type or the sentinel.
type KeyServiceError struct {
	// Op is the backend operation that failed ("generate data key", "decrypt").
	Op string
	// Message describes the failure.
	Message string
	// Retryable reports whether retrying the call may succeed.
	Retryable bool
	// Err is the underlying backend error, if any.
	Err error
}

func (e *KeyServiceError) Error() string {
	return fmt.Sprintf("key service: failed %s (retryable %v): %s", e.Op, e.Retryable, e.Message)
}

func (e *KeyServiceError) Unwrap() error { return e.Err }

// Is makes KeyServiceError match the ErrKeyServiceUnavailable sentinel.
func (e *KeyServiceError) Is(target error) bool {
	return target == ErrKeyServiceUnavailable
}

// NewKeyServiceError builds a KeyServiceError wrapping err.
func NewKeyServiceError(op string, err error, retryable bool) *KeyServiceError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &KeyServiceError{Op: op, Message: msg, Retryable: retryable, Err: err}
}

// IsRetryableError returns true if the error represents a transient failure
// that might succeed on retry. Only key-service failures carry a retryable
// classification; validation, crypto, and I/O failures never do.
func IsRetryableError(err error) bool {
	var kse *KeyServiceError
	if errors.As(err, &kse) {
		return kse.Retryable
	}
	return false
}

// IsValidationError returns true if the error represents a malformed envelope
// or an API contract violation (wrong nonce length, wrapped-DEK length out of
// bounds, unexpected DEK size).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidEnvelope) || errors.Is(err, ErrInvalidDEK)
}

// IsOperationError returns true if the error came from a seal or unseal
// operation, including AEAD tag-verification failure.
func IsOperationError(err error) bool {
	return errors.Is(err, ErrSealFailed) || errors.Is(err, ErrUnsealFailed)
}

// IsConfigurationError returns true if the error represents a configuration
// problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}
