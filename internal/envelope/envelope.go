// Package envelope implements the two-tier encryption used for user
// credentials: a master key derived from the operator secret wraps a random
// per-user key, and the per-user key wraps each stored secret.
//
// Every wrapped value has the form "<ivHex>:<authTagHex>:<ciphertextHex>"
// and is sealed with AES-256-GCM under a fresh random IV.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the size of master and user keys in bytes.
	KeySize = 32
	// IVSize is the GCM nonce size used for every seal.
	IVSize = 16
	// TagSize is the GCM authentication tag size.
	TagSize = 16

	separator = ":"
)

// MasterKey is the server-wide key derived from the operator secret.
type MasterKey [KeySize]byte

// UserKey is a per-user random key.
type UserKey [KeySize]byte

var (
	// ErrMissingSecret is returned when no operator secret is configured.
	ErrMissingSecret = errors.New("envelope: operator secret is not configured")

	// ErrMalformed is returned when a wrapped value does not have the
	// iv:tag:ciphertext shape or one of its parts does not decode.
	ErrMalformed = errors.New("envelope: malformed wrapped value")

	// ErrIntegrity is returned when authentication of a wrapped value fails.
	ErrIntegrity = errors.New("envelope: authentication failed")

	// ErrInvalidKey is returned when an unwrapped user key has the wrong size.
	ErrInvalidKey = errors.New("envelope: invalid user key")
)

// IsCorrupted reports whether err means stored ciphertext cannot be trusted.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrIntegrity) || errors.Is(err, ErrInvalidKey)
}

// GenerateUserKey returns a new random user key.
func GenerateUserKey() (UserKey, error) {
	var k UserKey
	if _, err := rand.Read(k[:]); err != nil {
		return UserKey{}, fmt.Errorf("generate user key: %w", err)
	}
	return k, nil
}

// WrapUserKey seals the base64 text of uk under mk.
func WrapUserKey(uk UserKey, mk MasterKey) (string, error) {
	text := base64.StdEncoding.EncodeToString(uk[:])
	wrapped, err := seal(mk[:], []byte(text))
	if err != nil {
		return "", fmt.Errorf("wrap user key: %w", err)
	}
	return wrapped, nil
}

// UnwrapUserKey opens a value produced by WrapUserKey.
func UnwrapUserKey(wrapped string, mk MasterKey) (UserKey, error) {
	text, err := open(mk[:], wrapped)
	if err != nil {
		return UserKey{}, fmt.Errorf("unwrap user key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil || len(raw) != KeySize {
		return UserKey{}, fmt.Errorf("unwrap user key: %w", ErrInvalidKey)
	}
	var uk UserKey
	copy(uk[:], raw)
	return uk, nil
}

// WrapSecret seals plaintext under uk.
func WrapSecret(plaintext string, uk UserKey) (string, error) {
	wrapped, err := seal(uk[:], []byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("wrap secret: %w", err)
	}
	return wrapped, nil
}

// UnwrapSecret opens a value produced by WrapSecret.
func UnwrapSecret(wrapped string, uk UserKey) (string, error) {
	plain, err := open(uk[:], wrapped)
	if err != nil {
		return "", fmt.Errorf("unwrap secret: %w", err)
	}
	return string(plain), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

func seal(key, plaintext []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// Seal appends the tag to the ciphertext; the stored form keeps them apart.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	}, separator), nil
}

func open(key []byte, wrapped string) ([]byte, error) {
	iv, tag, ct, err := split(wrapped)
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plain, nil
}

func split(wrapped string) (iv, tag, ct []byte, err error) {
	parts := strings.Split(wrapped, separator)
	if len(parts) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrMalformed, len(parts))
	}

	decoded := make([][]byte, 3)
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: part %d: %v", ErrMalformed, i, err)
		}
		decoded[i] = b
	}
	iv, tag, ct = decoded[0], decoded[1], decoded[2]

	if len(iv) != IVSize {
		return nil, nil, nil, fmt.Errorf("%w: iv is %d bytes", ErrMalformed, len(iv))
	}
	if len(tag) != TagSize {
		return nil, nil, nil, fmt.Errorf("%w: auth tag is %d bytes", ErrMalformed, len(tag))
	}
	return iv, tag, ct, nil
}
