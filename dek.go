package envx

// DEKLength is the raw key size of an AES-256 data encryption key.
const DEKLength = 32

// DEK is an ephemeral data encryption key in its two representations.
//
// Plaintext is the raw 32-byte AES-256 key material. It is held only in
// process memory for the duration of a single seal or unseal call and is
// never persisted. Ciphertext is the same key wrapped by the key-management
// service under the chosen master key; it is safe to store alongside the
// data it protects and is what gets embedded in a sealed envelope.
type DEK struct {
	Plaintext  []byte
	Ciphertext []byte
}
