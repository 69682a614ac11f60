// Package models defines the persisted data structures for AI settings,
// wrapped secrets and step chats.
package models

import (
	"errors"
	"time"
)

// ErrStaleKey is returned by a secret store when the wrapped key changed
// since it was read. The caller must read again and redo its work.
var ErrStaleKey = errors.New("wrapped key changed concurrently")

// UserSettings is a user's AI provider configuration.
type UserSettings struct {
	// UserID is the owner of the settings.
	UserID string `json:"userId"`
	// Provider is the AI provider name ("openai", "anthropic", "ollama").
	Provider string `json:"provider"`
	// Model is the provider model identifier.
	Model string `json:"model"`
	// WrappedKey is the user's data key sealed under the master key.
	// It is empty until the first secret is stored.
	WrappedKey string `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// WrappedSecret is one named secret sealed under the user's data key.
type WrappedSecret struct {
	// Name identifies the secret, e.g. "api_key:openai".
	Name string
	// Ciphertext is in the "<iv>:<tag>:<ciphertext>" hex format.
	Ciphertext string
}

// APIKeySecretName returns the secret name used for a provider's API key.
func APIKeySecretName(provider string) string {
	return "api_key:" + provider
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	// RoleUser marks messages written by the student.
	RoleUser ChatRole = "user"
	// RoleAssistant marks messages produced by the tutor.
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single entry of a step chat.
type ChatMessage struct {
	ID      string   `json:"id"`
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// StepChat is the chat history a user keeps for one course step.
type StepChat struct {
	// ID is "<userId>:<courseId>:<itemId>:<stepId>".
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	CourseID  string        `json:"courseId"`
	ItemID    string        `json:"itemId"`
	StepID    string        `json:"stepId"`
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// StepRef addresses a step inside the content tree.
type StepRef struct {
	CourseID string
	ItemID   string
	StepID   string
}

// ChatID builds the StepChat primary key for userID and ref.
func ChatID(userID string, ref StepRef) string {
	return userID + ":" + ref.CourseID + ":" + ref.ItemID + ":" + ref.StepID
}
