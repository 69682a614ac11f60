package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	anthropicVersion    = "2023-06-01"
	anthropicMaxTokens  = 4096
)

type anthropicClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Stream calls the messages endpoint with stream=true.
func (c *anthropicClient) Stream(ctx context.Context, req Request, onDelta func(string) error) error {
	body := map[string]any{
		"model":      req.Model,
		"max_tokens": anthropicMaxTokens,
		"messages":   req.Messages,
		"stream":     true,
	}
	if req.System != "" {
		body["system"] = req.System
	}

	resp, err := postJSON(ctx, c.http, Anthropic, c.baseURL+"/v1/messages",
		map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": anthropicVersion,
			"Accept":            "text/event-stream",
		}, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return finish(streamSSE(resp.Body, func(_ string, data string) error {
		var ev anthropicEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decode anthropic event: %w", err)
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				return onDelta(ev.Delta.Text)
			}
		case "message_stop":
			return errStopStream
		case "error":
			return &ProviderError{Provider: Anthropic, Message: ev.Error.Message}
		}
		return nil
	}))
}
