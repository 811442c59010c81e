// Package crypto seals Onesie request payloads and opens Onesie response
// payloads. The platform hands out a single 32-byte client key; the first
// half keys AES-128-CTR, the second half keys HMAC-SHA256.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

const (
	// KeyLength is the required client key length in bytes.
	KeyLength = 32

	ivLength = 16
)

var (
	// ErrInvalidKeyLength indicates the client key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("invalid client key length")
	// ErrAuthentication indicates the response HMAC did not verify.
	ErrAuthentication = errors.New("hmac verification failed")
)

// Sealed is an encrypted payload with its per-call IV and authentication tag.
type Sealed struct {
	Ciphertext []byte
	IV         []byte
	HMAC       []byte
}

// Seal encrypts plaintext with AES-128-CTR under key[0:16] using a fresh
// random 16-byte IV, then authenticates ciphertext||iv with HMAC-SHA256
// under key[16:32].
func Seal(key, plaintext []byte) (Sealed, error) {
	if len(key) != KeyLength {
		return Sealed{}, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key))
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("generate iv: %w", err)
	}

	ciphertext := ctrApply(key[:16], iv, plaintext)

	return Sealed{
		Ciphertext: ciphertext,
		IV:         iv,
		HMAC:       computeTag(key[16:], ciphertext, iv),
	}, nil
}

// Open verifies the HMAC over ciphertext||iv and, only after verification
// succeeds, decrypts. Verification before decryption is an invariant: the
// ciphertext must never reach the cipher while unauthenticated.
func Open(key, iv, mac, ciphertext []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(key))
	}
	if len(iv) != ivLength {
		return nil, fmt.Errorf("invalid iv length: got %d bytes", len(iv))
	}

	expected := computeTag(key[16:], ciphertext, iv)
	if !hmac.Equal(mac, expected) {
		return nil, ErrAuthentication
	}

	return ctrApply(key[:16], iv, ciphertext), nil
}

// ctrApply runs AES-CTR over data. CTR is symmetric, so the same routine
// serves both directions.
func ctrApply(aesKey, iv, data []byte) []byte {
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		// aes.NewCipher only fails on bad key sizes, which the callers
		// have already ruled out.
		panic(err)
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(out, data)
	return out
}

func computeTag(hmacKey, ciphertext, iv []byte) []byte {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(ciphertext)
	mac.Write(iv)
	return mac.Sum(nil)
}
