// Package secrets decrypts the environment variables handed to a run.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// EncryptedPrefix marks a value sealed by SecretboxStore.
const EncryptedPrefix = "encrypted:"

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrInvalidKey       = errors.New("secret key must be 32 bytes")
	ErrDecryptionFailed = errors.New("secret decryption failed")
	ErrSecretNotFound   = errors.New("secret not found")
	ErrMalformedCipher  = errors.New("malformed encrypted secret")
)

// Store turns a stored value into its plaintext.
type Store interface {
	Decrypt(value string) (string, error)
}

// SecretboxStore seals values with NaCl secretbox under a single key.
type SecretboxStore struct {
	key [keySize]byte
}

// NewSecretboxStore accepts a raw 32 byte key or its base64 encoding.
func NewSecretboxStore(key string) (*SecretboxStore, error) {
	raw := []byte(key)

	if len(raw) != keySize {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil || len(decoded) != keySize {
			return nil, ErrInvalidKey
		}

		raw = decoded
	}

	s := &SecretboxStore{}
	copy(s.key[:], raw)

	return s, nil
}

// Encrypt seals plaintext and returns it with EncryptedPrefix.
func (s *SecretboxStore) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)

	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens values carrying EncryptedPrefix and passes others through.
func (s *SecretboxStore) Decrypt(value string) (string, error) {
	if !strings.HasPrefix(value, EncryptedPrefix) {
		return value, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil || len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrMalformedCipher
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecryptionFailed
	}

	return string(plain), nil
}

// MapStore looks values up by reference; unknown references are errors.
// Values without the "secret:" prefix pass through.
type MapStore map[string]string

func (m MapStore) Decrypt(value string) (string, error) {
	name, ok := strings.CutPrefix(value, "secret:")
	if !ok {
		return value, nil
	}

	secret, found := m[name]
	if !found {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}

	return secret, nil
}

// ResolveAll decrypts every variable. The first failure names its variable.
func ResolveAll(store Store, variables map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(variables))

	for name, value := range variables {
		plain, err := store.Decrypt(value)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}

		resolved[name] = plain
	}

	return resolved, nil
}
