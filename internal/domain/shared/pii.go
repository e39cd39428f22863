package shared

// SealFn encrypts one personal field with the owning user's key.
type SealFn func(plaintext string) (string, error)

// OpenFn decrypts one personal field with the owning user's key.
type OpenFn func(sealed string) (string, error)

// Sensitive is implemented by events that carry personal fields. The
// command layer seals those fields before appending and opens them again
// during rehydration; the rest of the pipeline treats them as opaque.
type Sensitive interface {
	SealPII(seal SealFn) error
	OpenPII(open OpenFn) error
}
