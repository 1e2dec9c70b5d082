package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

// AlgorithmAESGCM is the cipher identifier recorded on encrypted archives.
const AlgorithmAESGCM = "aes-256-gcm"

var errShortCiphertext = errors.New("ciphertext shorter than nonce")

// NewKey returns a fresh random 256-bit key.
func NewKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, NewKeyError("", "generate", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-256-GCM under key. The random nonce is
// prepended to the returned ciphertext.
func Seal(key, plaintext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, NewKeyError("", "seal", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal.
func Open(key, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, NewKeyError("", "open", errShortCiphertext)
	}

	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, NewKeyError("", "open", err)
	}

	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, NewKeyError("", "cipher",
			errors.New("key must be 32 bytes"))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, NewKeyError("", "cipher", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewKeyError("", "cipher", err)
	}

	return aead, nil
}
