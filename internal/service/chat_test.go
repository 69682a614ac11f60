package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/atinyakov/learncode/internal/content"
	"github.com/atinyakov/learncode/internal/models"
	"github.com/atinyakov/learncode/internal/service"
	"github.com/atinyakov/learncode/internal/tutor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockChatRepo struct {
	GetFunc    func(ctx context.Context, userID, id string) (*models.StepChat, error)
	SaveFunc   func(ctx context.Context, chat models.StepChat) error
	DeleteFunc func(ctx context.Context, userID string, ids []string) (int64, error)
}

func (m *mockChatRepo) Get(ctx context.Context, userID, id string) (*models.StepChat, error) {
	return m.GetFunc(ctx, userID, id)
}
func (m *mockChatRepo) Save(ctx context.Context, chat models.StepChat) error {
	return m.SaveFunc(ctx, chat)
}
func (m *mockChatRepo) Delete(ctx context.Context, userID string, ids []string) (int64, error) {
	return m.DeleteFunc(ctx, userID, ids)
}

type fakeSteps struct{}

func (fakeSteps) Course(id string) (*content.Course, error) {
	if id != "learning-c" {
		return nil, content.ErrNotFound
	}
	return &content.Course{ID: id, Items: []content.Item{
		{ID: "hello", Steps: []content.Step{{ID: "s1"}, {ID: "s2"}}},
		{ID: "empty"},
	}}, nil
}

func (fakeSteps) Step(courseID, itemID, stepID string) (*content.StepView, error) {
	if courseID != "learning-c" || itemID != "hello" || stepID != "s1" {
		return nil, content.ErrNotFound
	}
	return &content.StepView{Step: content.Step{ID: "s1", Title: "Pointers", Content: "A pointer holds an address."}}, nil
}

type fakeCreds struct {
	cfg *service.ActiveConfig
	err error
}

func (f fakeCreds) Active(context.Context, string) (*service.ActiveConfig, error) {
	return f.cfg, f.err
}

type fakeClient struct {
	deltas []string
	err    error
	got    tutor.Request
}

func (c *fakeClient) Stream(_ context.Context, req tutor.Request, onDelta func(string) error) error {
	c.got = req
	for _, d := range c.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return c.err
}

var ref = models.StepRef{CourseID: "learning-c", ItemID: "hello", StepID: "s1"}

func TestChat_History(t *testing.T) {
	repo := &mockChatRepo{
		GetFunc: func(_ context.Context, userID, id string) (*models.StepChat, error) {
			if userID != "u1" || id != "u1:learning-c:hello:s1" {
				return nil, fmt.Errorf("unexpected lookup %s %s", userID, id)
			}
			return nil, nil
		},
	}
	svc := service.NewChatService(repo, fakeSteps{}, fakeCreds{}, nil, nil, zap.NewNop())

	msgs, err := svc.History(context.Background(), "u1", ref)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	_, err = svc.History(context.Background(), "u1", models.StepRef{CourseID: "learning-c", ItemID: "hello", StepID: "nope"})
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestChat_SaveHistory(t *testing.T) {
	var saved models.StepChat
	repo := &mockChatRepo{SaveFunc: func(_ context.Context, chat models.StepChat) error {
		saved = chat
		return nil
	}}
	svc := service.NewChatService(repo, fakeSteps{}, fakeCreds{}, nil, nil, zap.NewNop())

	msgs := []models.ChatMessage{{ID: "1", Role: models.RoleUser, Content: "hi", Timestamp: 1}}
	require.NoError(t, svc.SaveHistory(context.Background(), "u1", ref, msgs))

	assert.Equal(t, "u1:learning-c:hello:s1", saved.ID)
	assert.Equal(t, "s1", saved.StepID)
	assert.Equal(t, msgs, saved.Messages)
}

func TestChat_ClearCourse(t *testing.T) {
	var gotIDs []string
	repo := &mockChatRepo{DeleteFunc: func(_ context.Context, userID string, ids []string) (int64, error) {
		gotIDs = ids
		return int64(len(ids)), nil
	}}
	svc := service.NewChatService(repo, fakeSteps{}, fakeCreds{}, nil, nil, zap.NewNop())

	n, err := svc.ClearCourse(context.Background(), "u1", "learning-c")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []string{"u1:learning-c:hello:s1", "u1:learning-c:hello:s2"}, gotIDs)

	_, err = svc.ClearCourse(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestChat_Ask(t *testing.T) {
	history := []models.ChatMessage{
		{ID: "a", Role: models.RoleUser, Content: "what is a pointer?"},
		{ID: "b", Role: models.RoleAssistant, Content: "an address"},
	}
	var saved models.StepChat
	repo := &mockChatRepo{
		GetFunc: func(context.Context, string, string) (*models.StepChat, error) {
			return &models.StepChat{Messages: history}, nil
		},
		SaveFunc: func(_ context.Context, chat models.StepChat) error {
			saved = chat
			return nil
		},
	}
	client := &fakeClient{deltas: []string{"Use ", "&x."}}
	var gotProvider tutor.Provider
	var gotCfg tutor.Config
	factory := func(p tutor.Provider, cfg tutor.Config) (tutor.Client, error) {
		gotProvider, gotCfg = p, cfg
		return client, nil
	}
	creds := fakeCreds{cfg: &service.ActiveConfig{Provider: tutor.OpenAI, Model: "gpt-4o", APIKey: "sk-test123"}}
	svc := service.NewChatService(repo, fakeSteps{}, creds, factory,
		map[tutor.Provider]string{tutor.OpenAI: "http://proxy"}, zap.NewNop())

	var streamed string
	reply, err := svc.Ask(context.Background(), "u1", ref, "how do I take an address?", func(d string) error {
		streamed += d
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Use &x.", streamed)
	assert.Equal(t, "Use &x.", reply.Content)
	assert.Equal(t, models.RoleAssistant, reply.Role)

	assert.Equal(t, tutor.OpenAI, gotProvider)
	assert.Equal(t, tutor.Config{APIKey: "sk-test123", BaseURL: "http://proxy"}, gotCfg)
	assert.Equal(t, "gpt-4o", client.got.Model)
	assert.Contains(t, client.got.System, `"Pointers"`)
	assert.Contains(t, client.got.System, "A pointer holds an address.")
	require.Len(t, client.got.Messages, 3)
	assert.Equal(t, tutor.Message{Role: "user", Content: "how do I take an address?"}, client.got.Messages[2])

	require.Len(t, saved.Messages, 4)
	assert.Equal(t, "how do I take an address?", saved.Messages[2].Content)
	assert.Equal(t, reply.ID, saved.Messages[3].ID)
	assert.Len(t, history, 2, "history slice not modified")
}

func TestChat_AskErrors(t *testing.T) {
	repo := &mockChatRepo{
		GetFunc: func(context.Context, string, string) (*models.StepChat, error) { return nil, nil },
		SaveFunc: func(context.Context, models.StepChat) error {
			t.Fatal("nothing should be saved")
			return nil
		},
	}
	okCreds := fakeCreds{cfg: &service.ActiveConfig{Provider: tutor.Ollama, Model: "llama3.2"}}
	streamErr := &tutor.ProviderError{Provider: tutor.Ollama, StatusCode: 500, Message: "boom"}

	tests := []struct {
		name    string
		ref     models.StepRef
		creds   fakeCreds
		client  *fakeClient
		wantErr error
	}{
		{"unknown step", models.StepRef{CourseID: "x"}, okCreds, &fakeClient{}, content.ErrNotFound},
		{"no config", ref, fakeCreds{err: service.ErrNoConfig}, &fakeClient{}, service.ErrNoConfig},
		{"provider failure", ref, okCreds, &fakeClient{deltas: []string{"par"}, err: streamErr}, tutor.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := func(tutor.Provider, tutor.Config) (tutor.Client, error) { return tt.client, nil }
			svc := service.NewChatService(repo, fakeSteps{}, tt.creds, factory, nil, zap.NewNop())

			_, err := svc.Ask(context.Background(), "u1", tt.ref, "q", func(string) error { return nil })
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
