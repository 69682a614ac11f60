package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultOllamaURL = "http://localhost:11434"

type ollamaClient struct {
	http    *http.Client
	baseURL string
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// Stream calls /api/chat, which answers with newline-delimited JSON.
func (c *ollamaClient) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Messages...)

	resp, err := postJSON(ctx, c.http, Ollama, c.baseURL+"/api/chat", nil, map[string]any{
		"model":    req.Model,
		"messages": msgs,
		"stream":   true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return finish(streamNDJSON(resp.Body, func(line []byte) error {
		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("decode ollama chunk: %w", err)
		}
		if chunk.Error != "" {
			return &ProviderError{Provider: Ollama, Message: chunk.Error}
		}
		if chunk.Message.Content != "" {
			if err := onDelta(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return errStopStream
		}
		return nil
	}))
}
