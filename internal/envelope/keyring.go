package envelope

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/scrypt"
)

// MasterSalt is the fixed salt for master key derivation. The master key has
// to come out the same on every start, so the salt cannot be random.
const MasterSalt = "learn-code-master-salt"

// scrypt cost parameters.
const (
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// DeriveMasterKey derives the master key from the operator secret.
func DeriveMasterKey(secret string) (MasterKey, error) {
	if secret == "" {
		return MasterKey{}, ErrMissingSecret
	}
	raw, err := scrypt.Key([]byte(secret), []byte(MasterSalt), scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return MasterKey{}, fmt.Errorf("derive master key: %w", err)
	}
	var mk MasterKey
	copy(mk[:], raw)
	return mk, nil
}

// Keyring holds the operator secret and derives the master key on first use.
// A missing secret is reported by MasterKey, not by NewKeyring.
type Keyring struct {
	secret string

	once sync.Once
	key  MasterKey
	err  error
}

// NewKeyring creates a Keyring for the given operator secret.
func NewKeyring(secret string) *Keyring {
	return &Keyring{secret: secret}
}

// MasterKey returns the derived master key, deriving it once.
func (k *Keyring) MasterKey() (MasterKey, error) {
	k.once.Do(func() {
		k.key, k.err = DeriveMasterKey(k.secret)
	})
	return k.key, k.err
}
