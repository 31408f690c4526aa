// Package crypto provides envelope encryption for persisted note records.
//
// Two key tiers are used:
//   - KEK (key encryption key): derived from the master key with HKDF-SHA256,
//     scoped to a record name and a key version.
//   - DEK (data encryption key): random 32 bytes per record, stored next to the
//     ciphertext wrapped by the KEK.
//
// Rotating the master key or the KEK version only rewraps the DEK.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of both KEKs and DEKs in bytes (AES-256).
	KeySize = 32

	// NonceSize is the size of the AES-GCM nonce in bytes.
	NonceSize = 12

	// tagSize is the GCM authentication tag length.
	tagSize = 16
)

// ErrDecrypt is returned when a ciphertext fails authentication.
var ErrDecrypt = errors.New("crypto: decryption failed")

// ParseMasterKey decodes a hex master key. It must encode exactly KeySize bytes.
func ParseMasterKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("master key must be %d bytes (%d hex chars), got %d bytes", KeySize, KeySize*2, len(key))
	}
	return key, nil
}

// DeriveKEK derives the key encryption key for one record.
// info = "record:" + recordName + ":v" + version keeps records and versions separated.
func DeriveKEK(masterKey []byte, recordName string, version int) []byte {
	info := fmt.Sprintf("record:%s:v%d", recordName, version)
	r := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	kek := make([]byte, KeySize)
	if _, err := io.ReadFull(r, kek); err != nil {
		// HKDF-SHA256 can produce up to 255*32 bytes; 32 never fails.
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return kek
}

// GenerateDEK returns a fresh random data encryption key.
func GenerateDEK() ([]byte, error) {
	dek := make([]byte, KeySize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}
	return dek, nil
}

// WrapDEK encrypts a DEK with a KEK.
func WrapDEK(kek, dek []byte) ([]byte, error) {
	if len(dek) != KeySize {
		return nil, fmt.Errorf("DEK must be %d bytes, got %d", KeySize, len(dek))
	}
	return Seal(kek, dek, nil)
}

// UnwrapDEK decrypts a DEK wrapped by WrapDEK.
func UnwrapDEK(kek, wrapped []byte) ([]byte, error) {
	dek, err := Open(kek, wrapped, nil)
	if err != nil {
		return nil, err
	}
	if len(dek) != KeySize {
		return nil, fmt.Errorf("unwrapped DEK must be %d bytes, got %d", KeySize, len(dek))
	}
	return dek, nil
}

// Seal encrypts plaintext with AES-256-GCM under key, binding aad.
// Output format: nonce (12 bytes) || ciphertext || auth tag (16 bytes).
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+tagSize)
	if _, err := rand.Read(out); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(out, out[:NonceSize], plaintext, aad), nil
}

// Open reverses Seal. Tampered input, a wrong key or mismatched aad yield ErrDecrypt.
func Open(key, sealed, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < NonceSize+tagSize {
		return nil, fmt.Errorf("%w: ciphertext too short (%d bytes)", ErrDecrypt, len(sealed))
	}

	plaintext, err := gcm.Open(nil, sealed[:NonceSize], sealed[NonceSize:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
