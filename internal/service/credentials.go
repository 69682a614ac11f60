// Package service provides the business logic for AI credentials and step
// chats, delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/learncode/internal/envelope"
	"github.com/atinyakov/learncode/internal/lock"
	"github.com/atinyakov/learncode/internal/models"
	"github.com/atinyakov/learncode/internal/tutor"
	"go.uber.org/zap"
)

var (
	// ErrNothingToRotate is returned when a user has no stored secrets.
	ErrNothingToRotate = errors.New("no API key to rotate")
	// ErrNoConfig is returned when a user has not configured an AI provider
	// or has no key stored for it.
	ErrNoConfig = errors.New("AI configuration not found")
	// ErrAPIKeyRequired is returned when a provider that needs a key is
	// saved without one and none is stored yet.
	ErrAPIKeyRequired = errors.New("API key is required for this provider")
)

// SecretStore persists settings, the wrapped user key and wrapped secrets.
type SecretStore interface {
	// Get returns nil settings when the user has none.
	Get(ctx context.Context, userID string) (*models.UserSettings, []models.WrappedSecret, error)
	// Put swaps prevWrappedKey for wrappedKey and upserts secrets
	// atomically. It returns models.ErrStaleKey when the stored key is no
	// longer prevWrappedKey.
	Put(ctx context.Context, userID, prevWrappedKey, wrappedKey string, secrets []models.WrappedSecret) error
	UpsertSettings(ctx context.Context, userID, provider, model string) error
	Delete(ctx context.Context, userID string) error
}

// KeySource yields the master key. *envelope.Keyring implements it.
type KeySource interface {
	MasterKey() (envelope.MasterKey, error)
}

// SettingsInput is a settings update. An empty APIKey keeps the stored one.
type SettingsInput struct {
	Provider string `json:"provider" validate:"required,oneof=openai anthropic ollama"`
	Model    string `json:"model" validate:"required,max=128"`
	APIKey   string `json:"apiKey,omitempty" validate:"max=512"`
}

// SettingsView is what a user may see about their settings. The API key
// itself is never part of it.
type SettingsView struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	ModelLabel string    `json:"modelLabel"`
	HasAPIKey  bool      `json:"hasApiKey"`
	KeyHint    string    `json:"keyHint,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ActiveConfig is the decrypted configuration used to call a provider.
type ActiveConfig struct {
	Provider tutor.Provider
	Model    string
	APIKey   string
}

// RotateResult reports a completed key rotation.
type RotateResult struct {
	Rotated int `json:"rotated"`
}

// CredentialService stores provider API keys under the two-tier envelope:
// each secret is sealed with a per-user key, and that key is sealed with
// the master key.
type CredentialService struct {
	store  SecretStore
	keys   KeySource
	locker lock.Locker
	log    *zap.Logger
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(store SecretStore, keys KeySource, locker lock.Locker, log *zap.Logger) *CredentialService {
	return &CredentialService{store: store, keys: keys, locker: locker, log: log}
}

// staleRetries bounds how often fn is rerun after losing a race on the
// wrapped key to a writer outside our lock.
const staleRetries = 3

// withUserLock runs fn under the user's lock. fn must read the store
// itself, since it is rerun when its write finds the wrapped key stale.
func (s *CredentialService) withUserLock(ctx context.Context, userID string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, "credentials:"+userID)
	if err != nil {
		return fmt.Errorf("lock user %s: %w", userID, err)
	}
	defer unlock()

	for attempt := 1; ; attempt++ {
		err = fn()
		if !errors.Is(err, models.ErrStaleKey) || attempt == staleRetries {
			return err
		}
		s.log.Warn("wrapped key changed concurrently, retrying",
			zap.String("user", userID), zap.Int("attempt", attempt))
	}
}

// SaveSettings stores provider and model and, when given, the API key.
// The first stored key creates the user's data key; later ones reuse it.
func (s *CredentialService) SaveSettings(ctx context.Context, userID string, in SettingsInput) (*SettingsView, error) {
	p, err := tutor.ParseProvider(in.Provider)
	if err != nil {
		return nil, err
	}

	err = s.withUserLock(ctx, userID, func() error {
		st, secrets, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		name := models.APIKeySecretName(string(p))
		if in.APIKey == "" && p.RequiresKey() && findSecret(secrets, name) == nil {
			return ErrAPIKeyRequired
		}

		var (
			prevKey    string
			wrappedKey string
			wrapped    string
		)
		if st != nil {
			prevKey = st.WrappedKey
		}
		if in.APIKey != "" {
			mk, err := s.keys.MasterKey()
			if err != nil {
				return err
			}
			var uk envelope.UserKey
			if st == nil || st.WrappedKey == "" {
				if uk, err = envelope.GenerateUserKey(); err != nil {
					return err
				}
				if wrappedKey, err = envelope.WrapUserKey(uk, mk); err != nil {
					return err
				}
			} else {
				if uk, err = envelope.UnwrapUserKey(st.WrappedKey, mk); err != nil {
					return fmt.Errorf("unwrap user key: %w", err)
				}
				wrappedKey = st.WrappedKey
			}
			if wrapped, err = envelope.WrapSecret(in.APIKey, uk); err != nil {
				return err
			}
		}

		if err := s.store.UpsertSettings(ctx, userID, string(p), in.Model); err != nil {
			return err
		}
		if in.APIKey != "" {
			return s.store.Put(ctx, userID, prevKey, wrappedKey, []models.WrappedSecret{{Name: name, Ciphertext: wrapped}})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ai settings saved", zap.String("user", userID), zap.String("provider", string(p)))
	return s.Settings(ctx, userID)
}

// Settings returns the user's settings with a masked hint of the key.
func (s *CredentialService) Settings(ctx context.Context, userID string) (*SettingsView, error) {
	st, secrets, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoConfig
	}

	view := &SettingsView{
		Provider:   st.Provider,
		Model:      st.Model,
		ModelLabel: tutor.ModelLabel(tutor.Provider(st.Provider), st.Model),
		UpdatedAt:  st.UpdatedAt,
	}
	sec := findSecret(secrets, models.APIKeySecretName(st.Provider))
	if sec == nil {
		return view, nil
	}
	key, err := s.decrypt(st, sec)
	if err != nil {
		return nil, err
	}
	view.HasAPIKey = true
	view.KeyHint = MaskKey(key)
	return view, nil
}

// APIKey returns the decrypted API key stored for provider.
func (s *CredentialService) APIKey(ctx context.Context, userID string, provider tutor.Provider) (string, error) {
	st, secrets, err := s.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", ErrNoConfig
	}
	sec := findSecret(secrets, models.APIKeySecretName(string(provider)))
	if sec == nil {
		return "", ErrNoConfig
	}
	return s.decrypt(st, sec)
}

// Active returns the configured provider, model and decrypted key.
func (s *CredentialService) Active(ctx context.Context, userID string) (*ActiveConfig, error) {
	st, secrets, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoConfig
	}
	p, err := tutor.ParseProvider(st.Provider)
	if err != nil {
		return nil, err
	}

	cfg := &ActiveConfig{Provider: p, Model: st.Model}
	sec := findSecret(secrets, models.APIKeySecretName(string(p)))
	if sec == nil {
		if p.RequiresKey() {
			return nil, ErrNoConfig
		}
		return cfg, nil
	}
	if cfg.APIKey, err = s.decrypt(st, sec); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeleteSettings removes settings and every stored secret of the user.
func (s *CredentialService) DeleteSettings(ctx context.Context, userID string) error {
	err := s.withUserLock(ctx, userID, func() error {
		return s.store.Delete(ctx, userID)
	})
	if err != nil {
		return err
	}
	s.log.Info("ai settings deleted", zap.String("user", userID))
	return nil
}

// RotateUserKey replaces the user's data key and re-seals every secret
// under the new one. Nothing is written unless every secret could be
// opened with the old key. Plaintexts are unchanged, so running it twice
// is harmless.
func (s *CredentialService) RotateUserKey(ctx context.Context, userID string) (RotateResult, error) {
	var res RotateResult
	err := s.withUserLock(ctx, userID, func() error {
		st, secrets, err := s.store.Get(ctx, userID)
		if err != nil {
			return err
		}
		if st == nil || len(secrets) == 0 {
			return ErrNothingToRotate
		}

		mk, err := s.keys.MasterKey()
		if err != nil {
			return err
		}
		oldKey, err := envelope.UnwrapUserKey(st.WrappedKey, mk)
		if err != nil {
			return fmt.Errorf("unwrap user key: %w", err)
		}

		plain := make([]string, len(secrets))
		for i, sec := range secrets {
			if plain[i], err = envelope.UnwrapSecret(sec.Ciphertext, oldKey); err != nil {
				return fmt.Errorf("unwrap secret %s: %w", sec.Name, err)
			}
		}

		newKey, err := envelope.GenerateUserKey()
		if err != nil {
			return err
		}
		rewrapped := make([]models.WrappedSecret, len(secrets))
		for i, sec := range secrets {
			ct, err := envelope.WrapSecret(plain[i], newKey)
			if err != nil {
				return err
			}
			rewrapped[i] = models.WrappedSecret{Name: sec.Name, Ciphertext: ct}
		}
		wrappedKey, err := envelope.WrapUserKey(newKey, mk)
		if err != nil {
			return err
		}

		if err := s.store.Put(ctx, userID, st.WrappedKey, wrappedKey, rewrapped); err != nil {
			return err
		}
		res.Rotated = len(rewrapped)
		return nil
	})
	if err != nil {
		return RotateResult{}, err
	}

	s.log.Info("user key rotated", zap.String("user", userID), zap.Int("secrets", res.Rotated))
	return res, nil
}

func (s *CredentialService) decrypt(st *models.UserSettings, sec *models.WrappedSecret) (string, error) {
	mk, err := s.keys.MasterKey()
	if err != nil {
		return "", err
	}
	uk, err := envelope.UnwrapUserKey(st.WrappedKey, mk)
	if err != nil {
		return "", fmt.Errorf("unwrap user key: %w", err)
	}
	key, err := envelope.UnwrapSecret(sec.Ciphertext, uk)
	if err != nil {
		return "", fmt.Errorf("unwrap secret %s: %w", sec.Name, err)
	}
	return key, nil
}

func findSecret(secrets []models.WrappedSecret, name string) *models.WrappedSecret {
	for i := range secrets {
		if secrets[i].Name == name {
			return &secrets[i]
		}
	}
	return nil
}

// MaskKey keeps the first three and last four characters of a key.
func MaskKey(key string) string {
	r := []rune(key)
	if len(r) <= 10 {
		return "••••"
	}
	return string(r[:3]) + "…" + string(r[len(r)-4:])
}
