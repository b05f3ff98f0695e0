package keystore

import (
	"context"
	"errors"
)

// Authentication errors. ErrAuthFailed (wrong PIN, declined biometric) is
// an expected user flow and must stay distinguishable from ErrNoKeyMaterial
// (nothing to decrypt at all).
var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrNoKeyMaterial = errors.New("no key material present")
)

// Authenticator gates access to encrypted key material. Implementations may
// block on user interaction (PIN prompt, biometric), hence the context.
type Authenticator interface {
	// Decrypt returns the plaintext for ciphertext, or ErrAuthFailed when
	// the PIN is wrong or the user declines. Plaintext must not be cached;
	// each call re-derives it.
	Decrypt(ctx context.Context, ciphertext []byte, pin string) ([]byte, error)
}

// PinAuthenticator authenticates with the Argon2id-derived PIN key alone.
// Platform biometric unlock wraps this with its own prompt and falls back
// to the PIN path.
type PinAuthenticator struct {
	params EncryptionParams
}

// NewPinAuthenticator creates a PIN authenticator with the given KDF params.
func NewPinAuthenticator(params EncryptionParams) *PinAuthenticator {
	return &PinAuthenticator{params: params}
}

// Decrypt implements Authenticator. An AEAD open failure means the PIN was
// wrong and maps to ErrAuthFailed.
func (a *PinAuthenticator) Decrypt(_ context.Context, ciphertext []byte, pin string) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrNoKeyMaterial
	}
	plain, err := Decrypt(ciphertext, []byte(pin))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plain, nil
}

// Encrypt seals plaintext under the PIN with this authenticator's params.
func (a *PinAuthenticator) Encrypt(plaintext []byte, pin string) ([]byte, error) {
	return Encrypt(plaintext, []byte(pin), a.params)
}
