package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/learncode/internal/content"
	"github.com/atinyakov/learncode/internal/models"
	"github.com/atinyakov/learncode/internal/tutor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatRepository persists step chats.
type ChatRepository interface {
	// Get returns nil when the chat does not exist.
	Get(ctx context.Context, userID, id string) (*models.StepChat, error)
	Save(ctx context.Context, chat models.StepChat) error
	Delete(ctx context.Context, userID string, ids []string) (int64, error)
}

// StepSource resolves course content. *content.Catalog implements it.
type StepSource interface {
	Course(id string) (*content.Course, error)
	Step(courseID, itemID, stepID string) (*content.StepView, error)
}

// CredentialSource yields a user's decrypted provider configuration.
type CredentialSource interface {
	Active(ctx context.Context, userID string) (*ActiveConfig, error)
}

// ClientFactory builds a tutor client. tutor.NewClient is the default.
type ClientFactory func(p tutor.Provider, cfg tutor.Config) (tutor.Client, error)

// ChatService keeps per-step chat histories and runs tutor conversations.
type ChatService struct {
	repo      ChatRepository
	steps     StepSource
	creds     CredentialSource
	newClient ClientFactory
	baseURLs  map[tutor.Provider]string
	log       *zap.Logger
}

// NewChatService constructs a ChatService. baseURLs overrides provider
// endpoints; missing entries use the provider default.
func NewChatService(
	repo ChatRepository,
	steps StepSource,
	creds CredentialSource,
	newClient ClientFactory,
	baseURLs map[tutor.Provider]string,
	log *zap.Logger,
) *ChatService {
	if newClient == nil {
		newClient = tutor.NewClient
	}
	return &ChatService{
		repo:      repo,
		steps:     steps,
		creds:     creds,
		newClient: newClient,
		baseURLs:  baseURLs,
		log:       log,
	}
}

// History returns the messages of a step chat, oldest first.
func (s *ChatService) History(ctx context.Context, userID string, ref models.StepRef) ([]models.ChatMessage, error) {
	if _, err := s.steps.Step(ref.CourseID, ref.ItemID, ref.StepID); err != nil {
		return nil, err
	}
	chat, err := s.repo.Get(ctx, userID, models.ChatID(userID, ref))
	if err != nil {
		return nil, err
	}
	if chat == nil || chat.Messages == nil {
		return []models.ChatMessage{}, nil
	}
	return chat.Messages, nil
}

// SaveHistory replaces the messages of a step chat.
func (s *ChatService) SaveHistory(ctx context.Context, userID string, ref models.StepRef, msgs []models.ChatMessage) error {
	if _, err := s.steps.Step(ref.CourseID, ref.ItemID, ref.StepID); err != nil {
		return err
	}
	return s.repo.Save(ctx, newChat(userID, ref, msgs))
}

// ClearHistory deletes a step chat.
func (s *ChatService) ClearHistory(ctx context.Context, userID string, ref models.StepRef) error {
	_, err := s.repo.Delete(ctx, userID, []string{models.ChatID(userID, ref)})
	return err
}

// ClearCourse deletes every chat the user has in a course.
func (s *ChatService) ClearCourse(ctx context.Context, userID, courseID string) (int64, error) {
	course, err := s.steps.Course(courseID)
	if err != nil {
		return 0, err
	}
	var ids []string
	for _, item := range course.Items {
		for _, step := range item.Steps {
			ids = append(ids, models.ChatID(userID, models.StepRef{CourseID: courseID, ItemID: item.ID, StepID: step.ID}))
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.Delete(ctx, userID, ids)
}

// Ask sends question to the user's tutor with the step as context and
// streams the answer through onDelta. The question and the full answer are
// appended to the step chat once the stream completes.
func (s *ChatService) Ask(
	ctx context.Context,
	userID string,
	ref models.StepRef,
	question string,
	onDelta func(string) error,
) (*models.ChatMessage, error) {
	view, err := s.steps.Step(ref.CourseID, ref.ItemID, ref.StepID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.creds.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	chat, err := s.repo.Get(ctx, userID, models.ChatID(userID, ref))
	if err != nil {
		return nil, err
	}

	var history []models.ChatMessage
	if chat != nil {
		history = chat.Messages
	}
	userMsg := newMessage(models.RoleUser, question)

	req := tutor.Request{
		Model:    cfg.Model,
		System:   tutor.BuildSystemPrompt(view.Step.Title, view.Step.Content),
		Messages: make([]tutor.Message, 0, len(history)+1),
	}
	for _, m := range history {
		req.Messages = append(req.Messages, tutor.Message{Role: string(m.Role), Content: m.Content})
	}
	req.Messages = append(req.Messages, tutor.Message{Role: string(userMsg.Role), Content: userMsg.Content})

	client, err := s.newClient(cfg.Provider, tutor.Config{APIKey: cfg.APIKey, BaseURL: s.baseURLs[cfg.Provider]})
	if err != nil {
		return nil, err
	}

	var answer strings.Builder
	err = client.Stream(ctx, req, func(delta string) error {
		answer.WriteString(delta)
		return onDelta(delta)
	})
	if err != nil {
		s.log.Warn("tutor stream failed",
			zap.String("user", userID),
			zap.String("provider", string(cfg.Provider)),
			zap.Error(err))
		return nil, fmt.Errorf("tutor stream: %w", err)
	}

	reply := newMessage(models.RoleAssistant, answer.String())
	msgs := append(append(history[:len(history):len(history)], userMsg), reply)
	// the answer is already delivered; keep it even if the client went away
	if err := s.repo.Save(context.WithoutCancel(ctx), newChat(userID, ref, msgs)); err != nil {
		return nil, err
	}
	return &reply, nil
}

func newChat(userID string, ref models.StepRef, msgs []models.ChatMessage) models.StepChat {
	return models.StepChat{
		ID:       models.ChatID(userID, ref),
		UserID:   userID,
		CourseID: ref.CourseID,
		ItemID:   ref.ItemID,
		StepID:   ref.StepID,
		Messages: msgs,
	}
}

func newMessage(role models.ChatRole, text string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   text,
		Timestamp: time.Now().UnixMilli(),
	}
}
