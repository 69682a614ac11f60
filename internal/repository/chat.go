package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/learncode/internal/models"
	"github.com/lib/pq"
)

// PostgresChatRepository stores step chats in PostgreSQL.
type PostgresChatRepository struct {
	DB *sql.DB
}

// NewPostgresChatRepository creates a new PostgresChatRepository.
func NewPostgresChatRepository(db *sql.DB) *PostgresChatRepository {
	return &PostgresChatRepository{DB: db}
}

// Get returns the user's chat with the given ID, or nil when there is none.
func (r *PostgresChatRepository) Get(ctx context.Context, userID, id string) (*models.StepChat, error) {
	var (
		chat models.StepChat
		raw  []byte
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, user_id, course_id, item_id, step_id, messages, created_at, updated_at
		FROM step_chats WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&chat.ID, &chat.UserID, &chat.CourseID, &chat.ItemID, &chat.StepID, &raw, &chat.CreatedAt, &chat.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if err := json.Unmarshal(raw, &chat.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return &chat, nil
}

// Save inserts the chat or replaces the messages of an existing one.
func (r *PostgresChatRepository) Save(ctx context.Context, chat models.StepChat) error {
	msgs := chat.Messages
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	// jsonb is passed as text; lib/pq would send []byte as bytea.
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO step_chats (id, user_id, course_id, item_id, step_id, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			messages = EXCLUDED.messages,
			updated_at = now()
	`, chat.ID, chat.UserID, chat.CourseID, chat.ItemID, chat.StepID, string(raw))
	if err != nil {
		return fmt.Errorf("save chat: %w", err)
	}
	return nil
}

// Delete removes the user's chats with the given IDs and reports how many
// were removed.
func (r *PostgresChatRepository) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM step_chats WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete chats: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
