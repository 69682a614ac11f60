package tutor

import "fmt"

const systemPromptTemplate = `You are a helpful programming tutor. The student is learning from a course step titled "%s".

Here is the content they are studying:
---
%s
---

The student has a question about this specific content. Answer clearly and concisely, using examples from the content when relevant. If they ask something outside the scope of this content, gently guide them back to the topic.`

// BuildSystemPrompt scopes the tutor to one step's title and content.
func BuildSystemPrompt(stepTitle, stepContent string) string {
	return fmt.Sprintf(systemPromptTemplate, stepTitle, stepContent)
}

// Model is a selectable provider model.
type Model struct {
	ID    string `json:"value"`
	Label string `json:"label"`
}

var catalog = map[Provider][]Model{
	OpenAI: {
		{ID: "gpt-4o", Label: "GPT-4o"},
		{ID: "gpt-4o-mini", Label: "GPT-4o Mini"},
		{ID: "gpt-4-turbo", Label: "GPT-4 Turbo"},
		{ID: "gpt-3.5-turbo", Label: "GPT-3.5 Turbo"},
	},
	Anthropic: {
		{ID: "claude-opus-4-5", Label: "Claude Opus 4.5"},
		{ID: "claude-sonnet-4-5", Label: "Claude Sonnet 4.5"},
		{ID: "claude-3-5-sonnet-20241022", Label: "Claude 3.5 Sonnet"},
		{ID: "claude-3-5-haiku-20241022", Label: "Claude 3.5 Haiku"},
	},
	Ollama: {
		{ID: "llama3.2", Label: "Llama 3.2"},
		{ID: "llama3.1", Label: "Llama 3.1"},
		{ID: "mistral", Label: "Mistral"},
		{ID: "codellama", Label: "Code Llama"},
	},
}

// Models returns the selectable models of p. The first one is the default.
func Models(p Provider) []Model {
	return append([]Model(nil), catalog[p]...)
}

// ModelLabel returns the display label of a model, or the ID itself for
// models outside the catalog.
func ModelLabel(p Provider, id string) string {
	for _, m := range catalog[p] {
		if m.ID == id {
			return m.Label
		}
	}
	return id
}
