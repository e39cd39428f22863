package crypto

import (
	crand "crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/budget-hub/budget-envelope-hub/internal/domain/shared"
)

// Seal encrypts one field value with the given key. The random nonce is
// prepended to the ciphertext and the whole blob is base64-encoded for
// JSON transport.
func Seal(key []byte, plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", shared.WrapError("crypto", "Seal", shared.ErrSealFailed, "init cipher", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := crand.Read(nonce); err != nil {
		return "", shared.WrapError("crypto", "Seal", shared.ErrSealFailed, "generate nonce", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a field value sealed by Seal with the same key.
func Open(key []byte, sealed string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", shared.WrapError("crypto", "Open", shared.ErrOpenFailed, "decode sealed blob", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", shared.WrapError("crypto", "Open", shared.ErrOpenFailed, "init cipher", err)
	}

	if len(blob) < aead.NonceSize() {
		return "", shared.NewDomainError("crypto", "Open", shared.ErrOpenFailed, "sealed blob too short")
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", shared.WrapError("crypto", "Open", shared.ErrOpenFailed, "authenticate and decrypt", err)
	}
	return string(plaintext), nil
}
