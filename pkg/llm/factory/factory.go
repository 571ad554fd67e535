package factory

import (
	"fmt"

	"bchat-be/pkg/llm"
	"bchat-be/pkg/llm/gemini"
	"bchat-be/pkg/llm/ollama"
)

type Settings struct {
	Provider      string
	Model         string
	GeminiAPIKey  string
	OllamaBaseURL string
}

func NewLLMProvider(s Settings) (llm.LLMProvider, error) {
	switch s.Provider {
	case "ollama":
		baseURL := s.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, s.Model), nil
	case "gemini", "":
		if s.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY")
		}
		return gemini.NewGeminiProvider(s.GeminiAPIKey, s.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
