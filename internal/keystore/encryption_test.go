package keystore

import (
	"bytes"
	"testing"
)

// fastParams returns low-cost Argon2 params for fast tests.
func fastParams() EncryptionParams {
	return EncryptionParams{
		Memory:      64, // 64 KiB (minimal)
		Iterations:  1,
		Parallelism: 1,
	}
}

func TestEncryptDecrypt_Roundtrip(t *testing.T) {
	plaintext := []byte("secret wallet data")
	pin := []byte("123456")

	encrypted, err := Encrypt(plaintext, pin, fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	decrypted, err := Decrypt(encrypted, pin)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}

	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptDecrypt_WrongPin(t *testing.T) {
	encrypted, err := Encrypt([]byte("data"), []byte("right"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := Decrypt(encrypted, []byte("wrong")); err == nil {
		t.Error("Decrypt() with wrong PIN should fail")
	}
}

func TestEncryptDecrypt_EmptyData(t *testing.T) {
	encrypted, err := Encrypt([]byte{}, []byte("pin"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	decrypted, err := Decrypt(encrypted, []byte("pin"))
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}

	if len(decrypted) != 0 {
		t.Errorf("decrypted empty data should be empty, got %d bytes", len(decrypted))
	}
}

func TestEncrypt_UniqueOutputs(t *testing.T) {
	// Fresh salt and nonce per call: same input never encrypts identically.
	a, err := Encrypt([]byte("same"), []byte("pin"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	b, err := Encrypt([]byte("same"), []byte("pin"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two Encrypt() calls produced identical ciphertext")
	}
}

func TestDecrypt_TruncatedInput(t *testing.T) {
	if _, err := Decrypt([]byte("too short"), []byte("pin")); err == nil {
		t.Error("Decrypt() of truncated input should fail")
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	encrypted, err := Encrypt([]byte("payload"), []byte("pin"), fastParams())
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Flip a bit in the ciphertext tail.
	encrypted[len(encrypted)-1] ^= 0x01

	if _, err := Decrypt(encrypted, []byte("pin")); err == nil {
		t.Error("Decrypt() of tampered ciphertext should fail")
	}
}
