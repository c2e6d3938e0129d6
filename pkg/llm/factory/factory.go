package factory

import (
	"context"
	"fmt"

	"docchat-be/pkg/llm"
	"docchat-be/pkg/llm/ark"
	"docchat-be/pkg/llm/ollama"
	"docchat-be/pkg/llm/openai"
)

func NewLLMProvider(ctx context.Context, providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai", "deepseek":
		return openai.NewProvider(apiKey, baseURL, modelName), nil
	case "ark":
		return ark.NewProvider(ctx, apiKey, baseURL, modelName)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
