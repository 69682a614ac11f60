// Package repository provides PostgreSQL persistence for AI settings,
// wrapped secrets and step chats.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/learncode/internal/models"
)

// ErrSettingsNotFound is returned by Put when the user has no settings row
// to attach the wrapped key to.
var ErrSettingsNotFound = errors.New("settings not found")

// PostgresSecretStore implements the settings and secret store against a
// PostgreSQL database.
type PostgresSecretStore struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresSecretStore creates a new PostgresSecretStore using the provided *sql.DB.
func NewPostgresSecretStore(db *sql.DB) *PostgresSecretStore {
	return &PostgresSecretStore{DB: db}
}

// Get returns the user's settings and every wrapped secret, ordered by name.
// A user without settings yields (nil, nil, nil).
//
// Both reads share one repeatable-read snapshot, so a concurrent Put is
// seen entirely or not at all.
func (s *PostgresSecretStore) Get(ctx context.Context, userID string) (*models.UserSettings, []models.WrappedSecret, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var st models.UserSettings
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, ai_provider, ai_model, key_encryption_key, created_at, updated_at
		FROM user_settings WHERE user_id = $1
	`, userID).Scan(&st.UserID, &st.Provider, &st.Model, &st.WrappedKey, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get settings: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT name, ciphertext FROM user_secrets WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("get secrets: %w", err)
	}
	defer rows.Close()

	var secrets []models.WrappedSecret
	for rows.Next() {
		var sec models.WrappedSecret
		if err := rows.Scan(&sec.Name, &sec.Ciphertext); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		secrets = append(secrets, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate secrets: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, fmt.Errorf("close rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}
	return &st, secrets, nil
}

// Put replaces prevWrappedKey with wrappedKey and upserts secrets in one
// transaction. Either all of them are written or none is.
//
// prevWrappedKey is the value the caller read ("" before the first
// secret). If the stored key differs, nothing is written and
// models.ErrStaleKey is returned: the secrets were sealed under a key that
// is no longer current.
func (s *PostgresSecretStore) Put(ctx context.Context, userID, prevWrappedKey, wrappedKey string, secrets []models.WrappedSecret) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE user_settings SET key_encryption_key = $2, updated_at = now()
		WHERE user_id = $1 AND key_encryption_key = $3
	`, userID, wrappedKey, prevWrappedKey)
	if err != nil {
		return fmt.Errorf("update wrapped key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM user_settings WHERE user_id = $1)
		`, userID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check settings: %w", err)
		}
		if !exists {
			return ErrSettingsNotFound
		}
		return models.ErrStaleKey
	}

	for _, sec := range secrets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_secrets (user_id, name, ciphertext, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (user_id, name) DO UPDATE SET
				ciphertext = EXCLUDED.ciphertext,
				updated_at = now()
		`, userID, sec.Name, sec.Ciphertext)
		if err != nil {
			return fmt.Errorf("upsert secret: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertSettings creates or updates the provider and model of a user.
// The wrapped key is left untouched.
func (s *PostgresSecretStore) UpsertSettings(ctx context.Context, userID, provider, model string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, ai_provider, ai_model)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			ai_provider = EXCLUDED.ai_provider,
			ai_model = EXCLUDED.ai_model,
			updated_at = now()
	`, userID, provider, model)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// Delete removes the user's settings. Secrets go with them through the
// foreign key cascade.
func (s *PostgresSecretStore) Delete(ctx context.Context, userID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM user_settings WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}
