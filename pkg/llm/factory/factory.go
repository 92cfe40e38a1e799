package factory

import (
	"fmt"
	"time"

	"kb-chat-be/pkg/llm"
	"kb-chat-be/pkg/llm/ollama"
	"kb-chat-be/pkg/llm/openai"
)

func NewProvider(providerType, modelName, baseURL, apiKey string, timeout time.Duration) (llm.Provider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewProvider(baseURL, modelName, timeout), nil
	case "openai":
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return openai.NewProvider(baseURL, apiKey, modelName, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
