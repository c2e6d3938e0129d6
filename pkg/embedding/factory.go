package embedding

import "fmt"

func NewEmbeddingProvider(providerType, model, baseURL, apiKey string) (EmbeddingProvider, error) {
	switch providerType {
	case "ollama", "":
		return NewOllamaProvider(baseURL, model), nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini embedding provider requires an API key")
		}
		return NewGeminiProvider(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", providerType)
	}
}
