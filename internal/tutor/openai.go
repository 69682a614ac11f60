package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const defaultOpenAIURL = "https://api.openai.com"

type openAIClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream calls the chat completions endpoint with stream=true.
func (c *openAIClient) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	msgs := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, req.Messages...)

	resp, err := postJSON(ctx, c.http, OpenAI, c.baseURL+"/v1/chat/completions",
		map[string]string{
			"Authorization": "Bearer " + c.apiKey,
			"Accept":        "text/event-stream",
		},
		map[string]any{
			"model":    req.Model,
			"messages": msgs,
			"stream":   true,
		})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return finish(streamSSE(resp.Body, func(_ string, data string) error {
		if data == "[DONE]" {
			return errStopStream
		}
		var chunk openAIChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("decode openai chunk: %w", err)
		}
		if chunk.Error != nil {
			return &ProviderError{Provider: OpenAI, Message: chunk.Error.Message}
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if err := onDelta(ch.Delta.Content); err != nil {
				return err
			}
		}
		return nil
	}))
}
