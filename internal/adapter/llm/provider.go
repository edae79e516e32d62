// Package llm wraps the hosted LLM providers (Groq, Gemini) behind the
// domain.AnswerProvider port.
package llm

import (
	"context"
	"fmt"
	"quiz-solver/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

// groqModels is the free-tier rotation list used when a model reports
// a rate limit.
var groqModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.1-70b-versatile",
	"mixtral-8x7b-32768",
	"gemma2-9b-it",
}

// newModel builds the langchaingo client for the statically selected
// provider. The choice is made once at startup; there is no dynamic
// routing between providers.
func newModel(ctx context.Context, cfg *config.Config) (llms.Model, error) {
	switch cfg.Provider() {
	case config.ProviderGroq:
		model, err := openai.New(
			openai.WithToken(cfg.LLM.GroqAPIKey),
			openai.WithBaseURL(groqBaseURL),
			openai.WithModel(cfg.LLM.GroqModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Groq client: %w", err)
		}
		return model, nil
	case config.ProviderGemini:
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.LLM.GeminiAPIKey),
			googleai.WithDefaultModel(cfg.LLM.GeminiModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("no LLM provider configured")
	}
}
